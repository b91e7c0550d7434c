package train

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/monodepth/config"
	"go.viam.com/monodepth/logging"
)

// StepReport is what reporters receive after every training step.
type StepReport struct {
	Step        int       `json:"step"`
	Sample      string    `json:"sample"`
	Loss        float64   `json:"loss"`
	ScaleLosses []float64 `json:"scale_losses,omitempty"`
	Elapsed     float64   `json:"elapsed_sec"`
	Time        time.Time `json:"time"`
}

// A Reporter receives per-step losses.
type Reporter interface {
	Report(ctx context.Context, report StepReport) error
	Close() error
}

// LogReporter writes one structured log line per step.
type LogReporter struct {
	logger logging.Logger
}

// NewLogReporter returns a reporter logging to logger.
func NewLogReporter(logger logging.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report logs the step.
func (r *LogReporter) Report(ctx context.Context, report StepReport) error {
	r.logger.Infow("step", "step", report.Step, "sample", report.Sample, "loss", report.Loss,
		"elapsed", time.Duration(report.Elapsed*float64(time.Second)))
	if len(report.ScaleLosses) > 1 {
		r.logger.Debugw("scale losses", "step", report.Step, "losses", report.ScaleLosses)
	}
	return nil
}

// Close does nothing.
func (r *LogReporter) Close() error {
	return nil
}

// mqttPublisher is the part of an mqtt.Client the reporter uses.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttDisconnectMs   = 250
)

// MQTTReporter publishes every step as JSON to "<topic_prefix>/loss".
type MQTTReporter struct {
	client     mqttPublisher
	topic      string
	logger     logging.Logger
	published  atomic.Int64
	disconnect func()
}

// NewMQTTReporter connects to the configured broker.
func NewMQTTReporter(ctx context.Context, cfg *config.MQTTConfig, logger logging.Logger) (*MQTTReporter, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "monodepth-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warnw("lost connection to mqtt broker", "broker", cfg.Broker, "error", err)
		})
	client := mqtt.NewClient(opts)

	token := client.Connect()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-token.Done():
	case <-time.After(mqttConnectTimeout):
		return nil, errors.Errorf("timed out connecting to mqtt broker %q", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "cannot connect to mqtt broker %q", cfg.Broker)
	}
	logger.Infow("connected to mqtt broker", "broker", cfg.Broker, "client_id", clientID)

	r := newMQTTReporter(client, cfg.TopicPrefix, logger)
	r.disconnect = func() { client.Disconnect(mqttDisconnectMs) }
	return r, nil
}

func newMQTTReporter(client mqttPublisher, topicPrefix string, logger logging.Logger) *MQTTReporter {
	return &MQTTReporter{client: client, topic: topicPrefix + "/loss", logger: logger}
}

// Topic returns the topic reports are published to.
func (r *MQTTReporter) Topic() string {
	return r.topic
}

// Report publishes the step and waits for the broker to accept it.
func (r *MQTTReporter) Report(ctx context.Context, report StepReport) error {
	if !r.client.IsConnected() {
		return errors.New("mqtt client not connected")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	token := r.client.Publish(r.topic, 0, false, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	case <-time.After(mqttPublishTimeout):
		return errors.Errorf("timed out publishing to %q", r.topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "error publishing to %q", r.topic)
	}
	r.published.Inc()
	return nil
}

// Published returns how many reports the broker accepted.
func (r *MQTTReporter) Published() int64 {
	return r.published.Load()
}

// Close disconnects from the broker.
func (r *MQTTReporter) Close() error {
	r.logger.Debugw("closing mqtt reporter", "topic", r.topic, "published", r.Published())
	if r.disconnect != nil {
		r.disconnect()
	}
	return nil
}

// CloseReporters closes every reporter, combining their errors.
func CloseReporters(reporters []Reporter) error {
	var err error
	for _, r := range reporters {
		err = multierr.Combine(err, r.Close())
	}
	return err
}

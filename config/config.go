// Package config defines the configuration of a training run.
package config

import (
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Defaults match the KITTI setup the depth network was designed around.
const (
	DefaultWidth       = 640
	DefaultHeight      = 192
	DefaultScales      = 1
	DefaultVisInterval = 250
)

// DefaultRefFrameOffsets are the previous and next frames.
var DefaultRefFrameOffsets = []int{-1, 1}

// Config describes a training run.
type Config struct {
	DataPath        string                `json:"data_path" yaml:"data_path"`
	TrainSplit      string                `json:"train_split" yaml:"train_split"`
	ValSplit        string                `json:"val_split,omitempty" yaml:"val_split,omitempty"`
	Width           int                   `json:"width" yaml:"width"`
	Height          int                   `json:"height" yaml:"height"`
	RefFrameOffsets []int                 `json:"ref_frame_offsets" yaml:"ref_frame_offsets"`
	Intrinsics      *NormalizedIntrinsics `json:"intrinsics,omitempty" yaml:"intrinsics,omitempty"`
	IntrinsicsFile  string                `json:"intrinsics_file,omitempty" yaml:"intrinsics_file,omitempty"`
	MaxSteps        int                   `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
	Scales          int                   `json:"scales,omitempty" yaml:"scales,omitempty"`
	VisDir          string                `json:"vis_dir,omitempty" yaml:"vis_dir,omitempty"`
	VisInterval     int                   `json:"vis_interval,omitempty" yaml:"vis_interval,omitempty"`
	LossPlot        string                `json:"loss_plot,omitempty" yaml:"loss_plot,omitempty"`
	Debug           bool                  `json:"debug,omitempty" yaml:"debug,omitempty"`
	LogFile         string                `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	MQTT            *MQTTConfig           `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

// NormalizedIntrinsics are camera intrinsics expressed as fractions of the image size, so they
// hold for any working resolution.
type NormalizedIntrinsics struct {
	Fx  float64 `json:"fx" yaml:"fx"`
	Fy  float64 `json:"fy" yaml:"fy"`
	Ppx float64 `json:"ppx" yaml:"ppx"`
	Ppy float64 `json:"ppy" yaml:"ppy"`
}

// MQTTConfig enables publishing per-step losses to an MQTT broker.
type MQTTConfig struct {
	Broker      string `json:"broker" yaml:"broker"`
	TopicPrefix string `json:"topic_prefix,omitempty" yaml:"topic_prefix,omitempty"`
	ClientID    string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
}

// applyDefaults fills unset fields.
func (config *Config) applyDefaults() {
	if config.Width == 0 {
		config.Width = DefaultWidth
	}
	if config.Height == 0 {
		config.Height = DefaultHeight
	}
	if len(config.RefFrameOffsets) == 0 {
		config.RefFrameOffsets = append([]int(nil), DefaultRefFrameOffsets...)
	}
	if config.Scales == 0 {
		config.Scales = DefaultScales
	}
	if config.VisDir != "" && config.VisInterval == 0 {
		config.VisInterval = DefaultVisInterval
	}
	if config.MQTT != nil && config.MQTT.TopicPrefix == "" {
		config.MQTT.TopicPrefix = "monodepth"
	}
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if config.DataPath == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "data_path")
	}
	if config.TrainSplit == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "train_split")
	}
	if config.Width < 2 || config.Height < 2 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("width and height must be at least 2, got %dx%d", config.Width, config.Height))
	}
	if len(config.RefFrameOffsets) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "ref_frame_offsets")
	}
	for idx, offset := range config.RefFrameOffsets {
		if offset == 0 {
			return utils.NewConfigValidationError(fmt.Sprintf("%s.%s.%d", path, "ref_frame_offsets", idx),
				errors.New("reference frame offset cannot be 0, that is the target frame"))
		}
	}
	if config.Scales < 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("scales must be positive, got %d", config.Scales))
	}
	if coarsest := 1 << (config.Scales - 1); config.Width/coarsest < 2 || config.Height/coarsest < 2 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("%d scales leave less than 2 pixels at the coarsest scale of %dx%d", config.Scales, config.Width, config.Height))
	}
	if config.MaxSteps < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("max_steps cannot be negative, got %d", config.MaxSteps))
	}
	if config.VisInterval < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("vis_interval cannot be negative, got %d", config.VisInterval))
	}
	if config.Intrinsics != nil && config.IntrinsicsFile != "" {
		return utils.NewConfigValidationError(path, errors.New("only one of intrinsics and intrinsics_file can be set"))
	}
	if config.Intrinsics != nil {
		if err := config.Intrinsics.Validate(fmt.Sprintf("%s.%s", path, "intrinsics")); err != nil {
			return err
		}
	}
	if config.MQTT != nil {
		if err := config.MQTT.Validate(fmt.Sprintf("%s.%s", path, "mqtt")); err != nil {
			return err
		}
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (ni *NormalizedIntrinsics) Validate(path string) error {
	if ni.Fx <= 0 || ni.Fy <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("focal lengths must be positive, got (%v, %v)", ni.Fx, ni.Fy))
	}
	if ni.Ppx < 0 || ni.Ppy < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("principal point cannot be negative, got (%v, %v)", ni.Ppx, ni.Ppy))
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (mc *MQTTConfig) Validate(path string) error {
	if mc.Broker == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "broker")
	}
	return nil
}

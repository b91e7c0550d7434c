package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/monodepth/config"
	"go.viam.com/monodepth/data"
	"go.viam.com/monodepth/logging"
	"go.viam.com/monodepth/ml"
	"go.viam.com/monodepth/rimage/transform"
	"go.viam.com/monodepth/spatialmath"
	"go.viam.com/monodepth/train"
)

// TrainAction is the corresponding action for 'train'.
func TrainAction(c *cli.Context) (err error) {
	logger := newLogger(c, "monodepth")
	configPath := c.String(generalFlagConfig)
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}
	if c.IsSet(trainFlagMaxSteps) {
		cfg.MaxSteps = c.Int(trainFlagMaxSteps)
		if err := cfg.Validate(""); err != nil {
			return err
		}
	}
	if cfg.Debug {
		logger.SetLevel(logging.DEBUG)
	}
	if cfg.LogFile != "" {
		fileAppender := logging.NewFileAppender(resolvePath(configPath, cfg.LogFile), 0)
		logger.AddAppender(fileAppender)
		defer func() {
			err = multierr.Combine(err, logger.Sync(), fileAppender.Close())
		}()
	}
	cfg.DataPath = resolvePath(configPath, cfg.DataPath)
	cfg.VisDir = resolvePath(configPath, cfg.VisDir)
	cfg.LossPlot = resolvePath(configPath, cfg.LossPlot)
	cfg.IntrinsicsFile = resolvePath(configPath, cfg.IntrinsicsFile)

	trainSet, err := newDataset(cfg, resolvePath(configPath, cfg.TrainSplit))
	if err != nil {
		return err
	}
	var valSet *data.KITTIDataset
	if cfg.ValSplit != "" {
		if valSet, err = newDataset(cfg, resolvePath(configPath, cfg.ValSplit)); err != nil {
			return err
		}
	}

	if c.Bool(trainFlagDryRun) {
		printf(c.App.Writer, "train split: %d samples at %dx%d with %d reference frames",
			trainSet.Len(), cfg.Width, cfg.Height, len(cfg.RefFrameOffsets))
		in := trainSet.Intrinsics()
		printf(c.App.Writer, "camera: fx=%.2f fy=%.2f ppx=%.2f ppy=%.2f", in.Fx, in.Fy, in.Ppx, in.Ppy)
		if valSet != nil {
			printf(c.App.Writer, "val split: %d samples", valSet.Len())
		}
		return nil
	}
	if trainSet.Len() == 0 {
		warningf(c.App.ErrWriter, "train split %q is empty", cfg.TrainSplit)
	}

	reporters := []train.Reporter{train.NewLogReporter(logger.Sublogger("steps"))}
	if cfg.MQTT != nil {
		mqttReporter, err := train.NewMQTTReporter(c.Context, cfg.MQTT, logger.Sublogger("mqtt"))
		if err != nil {
			return errors.Wrap(err, "cannot set up loss reporting")
		}
		reporters = append(reporters, mqttReporter)
	}

	depthNet := &ml.StaticDepthNetwork{Disparity: c.Float64(trainFlagDisparity), Scales: cfg.Scales}
	poseNet := &ml.StaticPoseNetwork{Poses: make([]spatialmath.PoseVector, len(cfg.RefFrameOffsets))}
	trainer, err := train.NewTrainer(cfg, trainSet, depthNet, poseNet, logger, reporters...)
	if err != nil {
		return multierr.Combine(err, train.CloseReporters(reporters))
	}
	defer func() {
		err = multierr.Combine(err, trainer.Close())
	}()

	summary, err := trainer.Run(c.Context)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "trained %d steps", summary.Steps)
	printf(c.App.Writer, "%s", summary)
	if summary.Steps > 1 {
		if err := summary.WriteHistogram(c.App.Writer, trainHistogramBins); err != nil {
			warningf(c.App.ErrWriter, "cannot draw loss histogram: %v", err)
		}
	}

	if valSet != nil {
		valSummary, err := trainer.Evaluate(c.Context, valSet)
		if err != nil {
			return err
		}
		printf(c.App.Writer, "validated %d samples", valSummary.Steps)
		printf(c.App.Writer, "%s", valSummary)
	}
	return nil
}

func newDataset(cfg *config.Config, splitPath string) (*data.KITTIDataset, error) {
	splits, err := data.ReadSplits(splitPath)
	if err != nil {
		return nil, err
	}
	ds, err := data.NewKITTIDataset(cfg.DataPath, splits, cfg.Width, cfg.Height, cfg.RefFrameOffsets)
	if err != nil {
		return nil, err
	}
	if in := cfg.Intrinsics; in != nil {
		ds.SetIntrinsics(in.Fx, in.Fy, in.Ppx, in.Ppy)
	}
	if cfg.IntrinsicsFile != "" {
		intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(cfg.IntrinsicsFile)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read intrinsics_file %q", cfg.IntrinsicsFile)
		}
		if err := ds.SetCameraIntrinsics(intrinsics); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// Package train runs the depth and pose networks over a dataset and scores every sample with the
// photometric reconstruction loss.
package train

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/monodepth/config"
	"go.viam.com/monodepth/data"
	"go.viam.com/monodepth/logging"
	"go.viam.com/monodepth/losses"
	"go.viam.com/monodepth/ml"
	"go.viam.com/monodepth/rimage"
	"go.viam.com/monodepth/rimage/transform"
)

// Dataset serves samples by index.
type Dataset interface {
	Len() int
	Get(ctx context.Context, i int) (*data.Sample, error)
}

// StepResult is the outcome of scoring one sample.
type StepResult struct {
	Loss        float64
	ScaleLosses []float64
	// Disparity is the finest disparity map the depth network predicted.
	Disparity *rimage.DepthMap
}

// Trainer scores samples with the photometric loss. The networks are opaque, so parameter
// updates happen outside of it.
type Trainer struct {
	cfg        *config.Config
	dataset    Dataset
	depthNet   ml.DepthNetwork
	poseNet    ml.PoseNetwork
	reporters  []Reporter
	logger     logging.Logger
	loss       *losses.PhotometricLoss
	multiScale *losses.MultiScaleLoss
	clk        clock.Clock
}

// NewTrainer returns a trainer over dataset. The trainer owns the reporters and closes them in
// Close.
func NewTrainer(
	cfg *config.Config,
	dataset Dataset,
	depthNet ml.DepthNetwork,
	poseNet ml.PoseNetwork,
	logger logging.Logger,
	reporters ...Reporter,
) (*Trainer, error) {
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	if dataset == nil || depthNet == nil || poseNet == nil {
		return nil, errors.New("trainer needs a dataset, a depth network, and a pose network")
	}
	t := &Trainer{
		cfg:       cfg,
		dataset:   dataset,
		depthNet:  depthNet,
		poseNet:   poseNet,
		reporters: reporters,
		logger:    logger,
		loss:      losses.NewPhotometricLoss(cfg.Width, cfg.Height),
		clk:       clock.New(),
	}
	if cfg.Scales > 1 {
		t.multiScale = losses.NewMultiScaleLoss()
	}
	return t, nil
}

// Step runs both networks on sample and returns its loss.
func (t *Trainer) Step(ctx context.Context, sample *data.Sample) (StepResult, error) {
	if sample.Intrinsics == nil {
		return StepResult{}, transform.NewNoIntrinsicsError("sample has no intrinsics")
	}
	imgTensor, err := ml.ImagesToTensor(sample.Target)
	if err != nil {
		return StepResult{}, err
	}
	dispTensors, err := t.depthNet.Forward(ctx, imgTensor)
	if err != nil {
		return StepResult{}, errors.Wrap(err, "depth network failed")
	}
	if len(dispTensors) == 0 {
		return StepResult{}, errors.New("depth network returned no disparity maps")
	}
	disparities := make([]*rimage.DepthMap, len(dispTensors))
	for i, dt := range dispTensors {
		if disparities[i], err = ml.DepthMapFromTensor(dt); err != nil {
			return StepResult{}, errors.Wrapf(err, "disparity scale %d", i)
		}
	}

	poseInput, err := ml.ImagesToTensor(append([]*rimage.Image{sample.Target}, sample.Refs...)...)
	if err != nil {
		return StepResult{}, err
	}
	poseTensor, err := t.poseNet.Forward(ctx, poseInput)
	if err != nil {
		return StepResult{}, errors.Wrap(err, "pose network failed")
	}
	poses, err := ml.PoseVectorsFromTensor(poseTensor, len(sample.Refs))
	if err != nil {
		return StepResult{}, err
	}

	result := StepResult{Disparity: disparities[len(disparities)-1]}
	if t.multiScale != nil {
		result.Loss, result.ScaleLosses, err = t.multiScale.Compute(
			sample.Target, sample.Refs, sample.Intrinsics, disparities, poses)
	} else {
		result.Loss, err = t.loss.Compute(
			sample.Target, sample.Refs, sample.Intrinsics.GetCameraMatrix(), disparities, poses)
	}
	if err != nil {
		return StepResult{}, err
	}
	return result, nil
}

// Run scores the dataset in order, up to max_steps samples. It stops between steps when ctx is
// done and returns the summary of the completed steps along with the context error.
func (t *Trainer) Run(ctx context.Context) (Summary, error) {
	steps := t.dataset.Len()
	if t.cfg.MaxSteps > 0 && t.cfg.MaxSteps < steps {
		steps = t.cfg.MaxSteps
	}
	t.logger.Infow("starting training", "steps", steps, "width", t.cfg.Width, "height", t.cfg.Height,
		"refs", len(t.cfg.RefFrameOffsets), "scales", t.cfg.Scales)

	lossHistory := make([]float64, 0, steps)
	for step := 0; step < steps; step++ {
		if err := ctx.Err(); err != nil {
			t.logger.Infow("training stopped", "completed_steps", step)
			summary, sErr := NewSummary(lossHistory)
			return summary, multierr.Combine(err, sErr)
		}
		start := t.clk.Now()
		sample, err := t.dataset.Get(ctx, step)
		if err != nil {
			return Summary{}, errors.Wrapf(err, "cannot load sample %d", step)
		}
		result, err := t.Step(ctx, sample)
		if err != nil {
			return Summary{}, errors.Wrapf(err, "step %d (%s)", step, sample.Split)
		}
		if math.IsNaN(result.Loss) || math.IsInf(result.Loss, 0) {
			t.logger.Warnw("non-finite loss", "step", step, "sample", sample.Split.String())
		}
		lossHistory = append(lossHistory, result.Loss)
		t.report(ctx, StepReport{
			Step:        step,
			Sample:      sample.Split.String(),
			Loss:        result.Loss,
			ScaleLosses: result.ScaleLosses,
			Elapsed:     t.clk.Since(start).Seconds(),
			Time:        t.clk.Now(),
		})
		if t.cfg.VisDir != "" && t.cfg.VisInterval > 0 && step%t.cfg.VisInterval == 0 {
			if err := t.visualize(step, result.Disparity); err != nil {
				t.logger.Warnw("cannot write disparity visualization", "step", step, "error", err)
			}
		}
	}

	summary, err := NewSummary(lossHistory)
	if err != nil {
		return summary, err
	}
	t.logger.Infow("training finished", "steps", summary.Steps, "mean", summary.Mean,
		"median", summary.Median, "min", summary.Min, "max", summary.Max)
	if t.cfg.LossPlot != "" && len(lossHistory) > 0 {
		if err := PlotLoss(t.cfg.LossPlot, lossHistory); err != nil {
			return summary, err
		}
		t.logger.Infow("wrote loss plot", "path", t.cfg.LossPlot)
	}
	return summary, nil
}

// Evaluate scores every sample of dataset without reporting or visualizing.
func (t *Trainer) Evaluate(ctx context.Context, dataset Dataset) (Summary, error) {
	lossHistory := make([]float64, 0, dataset.Len())
	for i := 0; i < dataset.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		sample, err := dataset.Get(ctx, i)
		if err != nil {
			return Summary{}, errors.Wrapf(err, "cannot load validation sample %d", i)
		}
		result, err := t.Step(ctx, sample)
		if err != nil {
			return Summary{}, errors.Wrapf(err, "validation sample %d (%s)", i, sample.Split)
		}
		lossHistory = append(lossHistory, result.Loss)
	}
	summary, err := NewSummary(lossHistory)
	if err != nil {
		return summary, err
	}
	t.logger.Infow("validation finished", "samples", summary.Steps, "mean", summary.Mean, "median", summary.Median)
	return summary, nil
}

// Close closes the reporters.
func (t *Trainer) Close() error {
	return CloseReporters(t.reporters)
}

func (t *Trainer) report(ctx context.Context, report StepReport) {
	for _, r := range t.reporters {
		if err := r.Report(ctx, report); err != nil {
			t.logger.Warnw("reporter failed", "step", report.Step, "error", err)
		}
	}
}

// VisualizationPath returns where the disparity of step is written.
func VisualizationPath(dir string, step int) string {
	return filepath.Join(dir, fmt.Sprintf("disp_%06d.png", step))
}

func (t *Trainer) visualize(step int, disp *rimage.DepthMap) error {
	if err := os.MkdirAll(t.cfg.VisDir, 0o750); err != nil {
		return err
	}
	img, err := rimage.ColorizeDisparity(disp)
	if err != nil {
		return err
	}
	return rimage.WriteImageToFile(VisualizationPath(t.cfg.VisDir, step), img)
}

package train

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/monodepth/config"
	"go.viam.com/monodepth/data"
	"go.viam.com/monodepth/logging"
	"go.viam.com/monodepth/ml"
	"go.viam.com/monodepth/rimage"
	"go.viam.com/monodepth/rimage/transform"
	"go.viam.com/monodepth/spatialmath"
)

const (
	testWidth  = 16
	testHeight = 8
)

type memDataset struct {
	samples []*data.Sample
}

func (ds *memDataset) Len() int {
	return len(ds.samples)
}

func (ds *memDataset) Get(ctx context.Context, i int) (*data.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ds.samples[i], nil
}

func texturedImage() *rimage.Image {
	img := rimage.NewImage(3, testWidth, testHeight)
	for c := 0; c < 3; c++ {
		for y := 0; y < testHeight; y++ {
			for x := 0; x < testWidth; x++ {
				img.Set(c, x, y, 0.5+0.4*math.Sin(0.7*float64(x)+0.3*float64(y)+float64(c)))
			}
		}
	}
	return img
}

// staticScene returns n samples whose references equal their target.
func staticScene(n int) *memDataset {
	ds := &memDataset{}
	for i := 0; i < n; i++ {
		target := texturedImage()
		ds.samples = append(ds.samples, &data.Sample{
			Split:      data.Split{Folder: "drive", Frame: i + 1, Side: "l"},
			Target:     target,
			Refs:       []*rimage.Image{target.Clone(), target.Clone()},
			Intrinsics: transform.NewNormalizedPinholeCameraIntrinsics(testWidth, testHeight, 0.58, 1.92, 0.5, 0.5),
		})
	}
	return ds
}

func testConfig() *config.Config {
	return &config.Config{
		DataPath:        "unused",
		TrainSplit:      "unused",
		Width:           testWidth,
		Height:          testHeight,
		RefFrameOffsets: []int{-1, 1},
		Scales:          1,
	}
}

func identityPoses() *ml.StaticPoseNetwork {
	return &ml.StaticPoseNetwork{Poses: []spatialmath.PoseVector{{}, {}}}
}

type recordingReporter struct {
	reports []StepReport
	err     error
	onStep  func(StepReport)
	closed  bool
}

func (r *recordingReporter) Report(ctx context.Context, report StepReport) error {
	r.reports = append(r.reports, report)
	if r.onStep != nil {
		r.onStep(report)
	}
	return r.err
}

func (r *recordingReporter) Close() error {
	r.closed = true
	return nil
}

func TestNewTrainerValidates(t *testing.T) {
	logger := logging.NewTestLogger(t)
	cfg := testConfig()
	cfg.DataPath = ""
	_, err := NewTrainer(cfg, staticScene(1), &ml.StaticDepthNetwork{Disparity: 0.5}, identityPoses(), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "data_path")

	_, err = NewTrainer(testConfig(), nil, &ml.StaticDepthNetwork{Disparity: 0.5}, identityPoses(), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRunStaticScene(t *testing.T) {
	logger := logging.NewTestLogger(t)
	reporter := &recordingReporter{}
	trainer, err := NewTrainer(testConfig(), staticScene(3), &ml.StaticDepthNetwork{Disparity: 0.5}, identityPoses(),
		logger, reporter)
	test.That(t, err, test.ShouldBeNil)

	summary, err := trainer.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Steps, test.ShouldEqual, 3)
	test.That(t, summary.Max, test.ShouldBeLessThan, 1e-5)
	test.That(t, summary.Min, test.ShouldBeGreaterThanOrEqualTo, 0)

	test.That(t, reporter.reports, test.ShouldHaveLength, 3)
	test.That(t, reporter.reports[2].Step, test.ShouldEqual, 2)
	test.That(t, reporter.reports[2].Sample, test.ShouldEqual, "drive 3 l")
	test.That(t, reporter.reports[2].ScaleLosses, test.ShouldBeNil)

	test.That(t, trainer.Close(), test.ShouldBeNil)
	test.That(t, reporter.closed, test.ShouldBeTrue)
}

func TestRunMovedCameraHasLoss(t *testing.T) {
	logger := logging.NewTestLogger(t)
	poses := &ml.StaticPoseNetwork{Poses: []spatialmath.PoseVector{
		{0, 0.05, 0, 0.2, 0, 0},
		{0, -0.05, 0, -0.2, 0, 0},
	}}
	trainer, err := NewTrainer(testConfig(), staticScene(1), &ml.StaticDepthNetwork{Disparity: 0.5}, poses, logger)
	test.That(t, err, test.ShouldBeNil)
	summary, err := trainer.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Mean, test.ShouldBeGreaterThan, 1e-3)
}

func TestRunMaxSteps(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSteps = 2
	trainer, err := NewTrainer(cfg, staticScene(5), &ml.StaticDepthNetwork{Disparity: 0.5}, identityPoses(),
		logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	summary, err := trainer.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Steps, test.ShouldEqual, 2)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reporter := &recordingReporter{onStep: func(r StepReport) {
		if r.Step == 1 {
			cancel()
		}
	}}
	trainer, err := NewTrainer(testConfig(), staticScene(5), &ml.StaticDepthNetwork{Disparity: 0.5}, identityPoses(),
		logging.NewTestLogger(t), reporter)
	test.That(t, err, test.ShouldBeNil)

	summary, err := trainer.Run(ctx)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, summary.Steps, test.ShouldEqual, 2)
}

func TestRunReporterFailureDoesNotStopTraining(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	reporter := &recordingReporter{err: errors.New("broker down")}
	trainer, err := NewTrainer(testConfig(), staticScene(2), &ml.StaticDepthNetwork{Disparity: 0.5}, identityPoses(),
		logger, reporter)
	test.That(t, err, test.ShouldBeNil)

	summary, err := trainer.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Steps, test.ShouldEqual, 2)
	test.That(t, logs.FilterMessage("reporter failed").Len(), test.ShouldEqual, 2)
}

func TestRunMultiScale(t *testing.T) {
	cfg := testConfig()
	cfg.Scales = 2
	reporter := &recordingReporter{}
	trainer, err := NewTrainer(cfg, staticScene(1), &ml.StaticDepthNetwork{Disparity: 0.5, Scales: 2}, identityPoses(),
		logging.NewTestLogger(t), reporter)
	test.That(t, err, test.ShouldBeNil)

	summary, err := trainer.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Steps, test.ShouldEqual, 1)
	test.That(t, reporter.reports[0].ScaleLosses, test.ShouldHaveLength, 2)
	test.That(t, summary.Mean, test.ShouldBeLessThan, 1e-5)
}

func TestRunWritesVisualizationsAndPlot(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.VisDir = filepath.Join(dir, "vis")
	cfg.VisInterval = 2
	cfg.LossPlot = filepath.Join(dir, "loss.png")
	trainer, err := NewTrainer(cfg, staticScene(3), &ml.StaticDepthNetwork{Disparity: 0.5}, identityPoses(),
		logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, err = trainer.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)

	_, err = os.Stat(VisualizationPath(cfg.VisDir, 0))
	test.That(t, err, test.ShouldBeNil)
	_, err = os.Stat(VisualizationPath(cfg.VisDir, 2))
	test.That(t, err, test.ShouldBeNil)
	_, err = os.Stat(VisualizationPath(cfg.VisDir, 1))
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)

	img, err := rimage.ReadImageFromFile(VisualizationPath(cfg.VisDir, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, testWidth)

	_, err = os.Stat(cfg.LossPlot)
	test.That(t, err, test.ShouldBeNil)
}

func TestStepErrors(t *testing.T) {
	trainer, err := NewTrainer(testConfig(), staticScene(1), &ml.StaticDepthNetwork{Disparity: 0.5},
		&ml.StaticPoseNetwork{Poses: []spatialmath.PoseVector{{}}}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	_, err = trainer.Run(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "step 0")

	sample := staticScene(1).samples[0]
	sample.Intrinsics = nil
	_, err = trainer.Step(context.Background(), sample)
	test.That(t, errors.Is(err, transform.ErrNoIntrinsics), test.ShouldBeTrue)
}

func TestEvaluate(t *testing.T) {
	reporter := &recordingReporter{}
	trainer, err := NewTrainer(testConfig(), staticScene(1), &ml.StaticDepthNetwork{Disparity: 0.5}, identityPoses(),
		logging.NewTestLogger(t), reporter)
	test.That(t, err, test.ShouldBeNil)

	summary, err := trainer.Evaluate(context.Background(), staticScene(4))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Steps, test.ShouldEqual, 4)
	test.That(t, summary.Max, test.ShouldBeLessThan, 1e-5)
	test.That(t, reporter.reports, test.ShouldBeEmpty)
}

func TestRunReportsClockTime(t *testing.T) {
	reporter := &recordingReporter{}
	trainer, err := NewTrainer(testConfig(), staticScene(2), &ml.StaticDepthNetwork{Disparity: 0.5}, identityPoses(),
		logging.NewTestLogger(t), reporter)
	test.That(t, err, test.ShouldBeNil)
	mock := clock.NewMock()
	trainer.clk = mock

	_, err = trainer.Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reporter.reports, test.ShouldHaveLength, 2)
	for _, r := range reporter.reports {
		test.That(t, r.Time.Equal(mock.Now()), test.ShouldBeTrue)
		test.That(t, r.Elapsed, test.ShouldEqual, 0.)
	}
}

package losses

import (
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/monodepth/rimage"
	"go.viam.com/monodepth/rimage/transform"
	"go.viam.com/monodepth/spatialmath"
)

// MultiScaleLoss supervises every disparity scale. Each scale is scored by an independent
// PhotometricLoss at that scale's resolution, with images resized and intrinsics rescaled to
// match, and the per-scale losses are averaged.
type MultiScaleLoss struct {
	mu      sync.Mutex
	engines map[[2]int]*PhotometricLoss
}

// NewMultiScaleLoss returns an empty multi-scale loss. Per-resolution engines are built on first use.
func NewMultiScaleLoss() *MultiScaleLoss {
	return &MultiScaleLoss{engines: map[[2]int]*PhotometricLoss{}}
}

func (l *MultiScaleLoss) engine(width, height int) *PhotometricLoss {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := [2]int{width, height}
	if e, ok := l.engines[key]; ok {
		return e
	}
	e := NewPhotometricLoss(width, height)
	l.engines[key] = e
	return e
}

// Compute returns the mean of the single-scale losses over all disparity scales. intrinsics
// must describe the target image's resolution.
func (l *MultiScaleLoss) Compute(
	target *rimage.Image,
	refs []*rimage.Image,
	intrinsics *transform.PinholeCameraIntrinsics,
	disparities []*rimage.DepthMap,
	poses []spatialmath.PoseVector,
) (float64, []float64, error) {
	if len(refs) == 0 {
		return 0, nil, ErrEmptyReferenceSet
	}
	if len(disparities) == 0 {
		return 0, nil, errors.New("no disparity maps were given")
	}
	if err := intrinsics.CheckValid(); err != nil {
		return 0, nil, err
	}
	if intrinsics.Width != target.Width() || intrinsics.Height != target.Height() {
		return 0, nil, rimage.NewShapeMismatchError("intrinsics", intrinsics.Width, intrinsics.Height,
			target.Width(), target.Height())
	}

	perScale := make([]float64, len(disparities))
	total := 0.
	for s, disp := range disparities {
		width, height := disp.Width(), disp.Height()
		scaledTarget, err := target.Resize(width, height)
		if err != nil {
			return 0, nil, err
		}
		scaledRefs := make([]*rimage.Image, len(refs))
		for i, ref := range refs {
			if scaledRefs[i], err = ref.Resize(width, height); err != nil {
				return 0, nil, err
			}
		}
		k := intrinsics.Scale(width, height).GetCameraMatrix()
		loss, err := l.engine(width, height).Compute(scaledTarget, scaledRefs, k, []*rimage.DepthMap{disp}, poses)
		if err != nil {
			return 0, nil, errors.Wrapf(err, "scale %d (%dx%d)", s, width, height)
		}
		perScale[s] = loss
		total += loss
	}
	return total / float64(len(disparities)), perScale, nil
}

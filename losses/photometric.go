// Package losses computes the self-supervised photometric reconstruction loss that trains depth
// and pose networks from monocular video.
package losses

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/monodepth/rimage"
	"go.viam.com/monodepth/rimage/transform"
	"go.viam.com/monodepth/spatialmath"
)

// ErrEmptyReferenceSet is returned when a loss is requested without any reference frames.
var ErrEmptyReferenceSet = errors.New("photometric loss needs at least one reference frame")

// PhotometricLoss warps reference frames into the target view and scores how well they match.
// It is configured for one resolution and holds no per-call state, so one instance can serve
// every training step.
type PhotometricLoss struct {
	width, height int
	backproject   *transform.BackprojectDepth
	project       *transform.Project3D
}

// NewPhotometricLoss returns a loss for width x height images.
func NewPhotometricLoss(width, height int) *PhotometricLoss {
	return &PhotometricLoss{
		width:       width,
		height:      height,
		backproject: transform.NewBackprojectDepth(width, height),
		project:     transform.NewProject3D(width, height),
	}
}

// Width returns the configured image width.
func (l *PhotometricLoss) Width() int {
	return l.width
}

// Height returns the configured image height.
func (l *PhotometricLoss) Height() int {
	return l.height
}

// Compute returns the mean over pixels of the smallest reconstruction error across reference
// frames. Only the last (finest) disparity map is used. poses[i] is the pose of refs[i]
// relative to the target.
func (l *PhotometricLoss) Compute(
	target *rimage.Image,
	refs []*rimage.Image,
	k mat.Matrix,
	disparities []*rimage.DepthMap,
	poses []spatialmath.PoseVector,
) (float64, error) {
	minErr, err := l.MinError(target, refs, k, disparities, poses)
	if err != nil {
		return math.NaN(), err
	}
	return floats.Sum(minErr.Data()) / float64(len(minErr.Data())), nil
}

// MinError returns the per-pixel minimum of the reference error maps.
func (l *PhotometricLoss) MinError(
	target *rimage.Image,
	refs []*rimage.Image,
	k mat.Matrix,
	disparities []*rimage.DepthMap,
	poses []spatialmath.PoseVector,
) (*rimage.DepthMap, error) {
	errMaps, err := l.ErrorMaps(target, refs, k, disparities, poses)
	if err != nil {
		return nil, err
	}
	return MinReduce(errMaps)
}

// ErrorMaps returns one single channel error map per reference frame, in reference order.
func (l *PhotometricLoss) ErrorMaps(
	target *rimage.Image,
	refs []*rimage.Image,
	k mat.Matrix,
	disparities []*rimage.DepthMap,
	poses []spatialmath.PoseVector,
) ([]*rimage.DepthMap, error) {
	if len(refs) == 0 {
		return nil, ErrEmptyReferenceSet
	}
	if len(poses) != len(refs) {
		return nil, errors.Wrapf(rimage.ErrShapeMismatch, "got %d poses for %d reference frames", len(poses), len(refs))
	}
	if len(disparities) == 0 {
		return nil, errors.New("no disparity maps were given")
	}
	if target.Width() != l.width || target.Height() != l.height {
		return nil, rimage.NewShapeMismatchError("target image", target.Width(), target.Height(), l.width, l.height)
	}
	for i, ref := range refs {
		if !ref.SameShape(target) {
			return nil, errors.Wrapf(
				rimage.NewShapeMismatchError("reference image", ref.Width(), ref.Height(), l.width, l.height),
				"reference %d", i)
		}
	}

	var kInv mat.Dense
	if err := kInv.Inverse(k); err != nil {
		return nil, errors.Wrap(err, "camera matrix is not invertible")
	}
	depth := rimage.DisparityToDepth(disparities[len(disparities)-1])
	points, err := l.backproject.Backproject(depth, &kInv)
	if err != nil {
		return nil, err
	}

	errMaps := make([]*rimage.DepthMap, len(refs))
	for i, ref := range refs {
		grid, err := l.project.Project(points, k, spatialmath.PoseVecToMatrix(poses[i]))
		if err != nil {
			return nil, err
		}
		warped, err := rimage.GridSample(ref, grid)
		if err != nil {
			return nil, err
		}
		if errMaps[i], err = PhotometricError(target, warped); err != nil {
			return nil, err
		}
	}
	return errMaps, nil
}

// PhotometricError is the per-pixel absolute difference between two images, averaged over
// channels.
func PhotometricError(target, warped *rimage.Image) (*rimage.DepthMap, error) {
	if !target.SameShape(warped) {
		return nil, rimage.NewShapeMismatchError("warped image", warped.Width(), warped.Height(),
			target.Width(), target.Height())
	}
	width, height, channels := target.Width(), target.Height(), target.Channels()
	out := rimage.NewEmptyDepthMap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum := 0.
			for c := 0; c < channels; c++ {
				sum += math.Abs(target.At(c, x, y) - warped.At(c, x, y))
			}
			out.Set(x, y, sum/float64(channels))
		}
	}
	return out, nil
}

// MinReduce takes the per-pixel minimum across same-sized maps. Only values are kept, so ties
// need no resolution. NaN wins so degenerate inputs stay visible in the loss.
func MinReduce(maps []*rimage.DepthMap) (*rimage.DepthMap, error) {
	if len(maps) == 0 {
		return nil, ErrEmptyReferenceSet
	}
	first := maps[0]
	out := rimage.NewEmptyDepthMap(first.Width(), first.Height())
	copy(out.Data(), first.Data())
	for _, m := range maps[1:] {
		if m.Width() != first.Width() || m.Height() != first.Height() {
			return nil, rimage.NewShapeMismatchError("error map", m.Width(), m.Height(), first.Width(), first.Height())
		}
		dst := out.Data()
		for i, v := range m.Data() {
			if v < dst[i] || math.IsNaN(v) {
				dst[i] = v
			}
		}
	}
	return out, nil
}

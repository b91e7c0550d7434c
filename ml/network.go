package ml

import (
	"context"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"go.viam.com/monodepth/spatialmath"
)

// DepthNetwork predicts disparity for a (1, 3, H, W) image tensor. It returns one disparity map
// per scale, ordered coarsest to finest, so the last element has the input resolution. Values
// are expected in (0, 1].
type DepthNetwork interface {
	Forward(ctx context.Context, img *tensor.Dense) ([]*tensor.Dense, error)
}

// PoseNetwork predicts the pose of every reference frame relative to the target from a
// (1, 3*(N+1), H, W) tensor holding the target followed by its N references. It returns an
// (N, 6) tensor of axis-angle rotations and translations.
type PoseNetwork interface {
	Forward(ctx context.Context, imgs *tensor.Dense) (*tensor.Dense, error)
}

// StaticDepthNetwork predicts the same disparity everywhere. It stands in for a trained network
// in dry runs.
type StaticDepthNetwork struct {
	Disparity float64
	Scales    int
}

// Forward returns Scales constant maps, each half the size of the next.
func (n *StaticDepthNetwork) Forward(ctx context.Context, img *tensor.Dense) ([]*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shape := img.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 3 {
		return nil, errors.Errorf("depth network expects a (1, 3, H, W) tensor, got %v", shape)
	}
	if n.Disparity <= 0 || n.Disparity > 1 {
		return nil, errors.Errorf("disparity must be in (0, 1], got %v", n.Disparity)
	}
	scales := n.Scales
	if scales < 1 {
		scales = 1
	}
	height, width := shape[2], shape[3]
	out := make([]*tensor.Dense, scales)
	for s := 0; s < scales; s++ {
		div := 1 << (scales - 1 - s)
		h, w := height/div, width/div
		backing := make([]float64, h*w)
		for i := range backing {
			backing[i] = n.Disparity
		}
		out[s] = tensor.New(tensor.WithShape(1, 1, h, w), tensor.WithBacking(backing))
	}
	return out, nil
}

// StaticPoseNetwork returns the same poses for every input.
type StaticPoseNetwork struct {
	Poses []spatialmath.PoseVector
}

// Forward returns the configured poses as an (N, 6) tensor.
func (n *StaticPoseNetwork) Forward(ctx context.Context, imgs *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shape := imgs.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[1]%3 != 0 {
		return nil, errors.Errorf("pose network expects a (1, 3*(N+1), H, W) tensor, got %v", shape)
	}
	if refs := shape[1]/3 - 1; refs != len(n.Poses) {
		return nil, errors.Errorf("pose network has %d poses but got %d reference frames", len(n.Poses), refs)
	}
	backing := make([]float64, 0, 6*len(n.Poses))
	for _, p := range n.Poses {
		backing = append(backing, p[:]...)
	}
	return tensor.New(tensor.WithShape(len(n.Poses), 6), tensor.WithBacking(backing)), nil
}

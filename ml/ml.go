// Package ml provides the tensor boundary between training code and the depth and pose
// networks, which are treated as opaque functions over gorgonia tensors.
package ml

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"gorgonia.org/tensor"

	"go.viam.com/monodepth/rimage"
	"go.viam.com/monodepth/spatialmath"
)

// ImagesToTensor concatenates same-sized images along the channel axis into a
// (1, sum(C), H, W) tensor. A single image gives the depth network input; the target followed
// by its references gives the pose network input.
func ImagesToTensor(imgs ...*rimage.Image) (*tensor.Dense, error) {
	if len(imgs) == 0 {
		return nil, errors.New("need at least one image to build a tensor")
	}
	first := imgs[0]
	channels := 0
	for i, img := range imgs {
		if img.Width() != first.Width() || img.Height() != first.Height() {
			return nil, errors.Wrapf(
				rimage.NewShapeMismatchError("image", img.Width(), img.Height(), first.Width(), first.Height()),
				"image %d", i)
		}
		channels += img.Channels()
	}
	backing := make([]float64, 0, channels*first.Width()*first.Height())
	for _, img := range imgs {
		backing = append(backing, img.Data()...)
	}
	return tensor.New(
		tensor.WithShape(1, channels, first.Height(), first.Width()),
		tensor.WithBacking(backing),
	), nil
}

// DepthMapFromTensor reads a single disparity or depth map out of a tensor shaped (H, W),
// (1, H, W) or (1, 1, H, W).
func DepthMapFromTensor(t *tensor.Dense) (*rimage.DepthMap, error) {
	shape := t.Shape()
	for len(shape) > 2 {
		if shape[0] != 1 {
			return nil, errors.Wrapf(rimage.ErrShapeMismatch, "expected a single map, got tensor of shape %v", t.Shape())
		}
		shape = shape[1:]
	}
	if len(shape) != 2 {
		return nil, errors.Wrapf(rimage.ErrShapeMismatch, "expected a 2D map, got tensor of shape %v", t.Shape())
	}
	data, err := convertToFloat64Slice(t.Data())
	if err != nil {
		return nil, err
	}
	return rimage.NewDepthMapFromData(shape[1], shape[0], append([]float64(nil), data...))
}

// PoseVectorsFromTensor splits an (N, 6) or (1, N, 6) pose tensor into N pose vectors.
func PoseVectorsFromTensor(t *tensor.Dense, n int) ([]spatialmath.PoseVector, error) {
	shape := t.Shape()
	if len(shape) == 3 && shape[0] == 1 {
		shape = shape[1:]
	}
	if len(shape) != 2 || shape[0] != n || shape[1] != len(spatialmath.PoseVector{}) {
		return nil, errors.Wrapf(rimage.ErrShapeMismatch, "expected %d pose vectors of 6 values, got tensor of shape %v",
			n, t.Shape())
	}
	data, err := convertToFloat64Slice(t.Data())
	if err != nil {
		return nil, err
	}
	poses := make([]spatialmath.PoseVector, n)
	for i := range poses {
		if poses[i], err = spatialmath.PoseVectorFromSlice(data[6*i : 6*i+6]); err != nil {
			return nil, err
		}
	}
	return poses, nil
}

// number interface for converting between numbers.
type number interface {
	constraints.Integer | constraints.Float
}

// convertNumberSlice converts any number slice into another number slice.
func convertNumberSlice[T1, T2 number](t1 []T1) []T2 {
	t2 := make([]T2, len(t1))
	for i := range t1 {
		t2[i] = T2(t1[i])
	}
	return t2
}

func convertToFloat64Slice(slice interface{}) ([]float64, error) {
	switch v := slice.(type) {
	case []float64:
		return v, nil
	case float64:
		return []float64{v}, nil
	case []float32:
		return convertNumberSlice[float32, float64](v), nil
	case float32:
		return []float64{float64(v)}, nil
	case []int:
		return convertNumberSlice[int, float64](v), nil
	case []int32:
		return convertNumberSlice[int32, float64](v), nil
	case []int64:
		return convertNumberSlice[int64, float64](v), nil
	case []uint8:
		return convertNumberSlice[uint8, float64](v), nil
	case []uint16:
		return convertNumberSlice[uint16, float64](v), nil
	default:
		return nil, errors.Errorf("dont know how to convert slice of %T into a []float64", slice)
	}
}

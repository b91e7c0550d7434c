package transform

import (
	"gonum.org/v1/gonum/mat"

	"go.viam.com/monodepth/rimage"
)

// projectionEpsilon keeps the perspective divide finite for points on the camera plane.
const projectionEpsilon = 1e-7

// Project3D projects homogeneous camera-frame points into a second view and returns the
// normalized sampling grid for a fixed resolution.
type Project3D struct {
	width, height int
}

// NewProject3D returns a projector for width x height images.
func NewProject3D(width, height int) *Project3D {
	return &Project3D{width: width, height: height}
}

// Project transforms points (4 x width*height) by the rigid transform t (4x4), applies the
// camera matrix k (3x3) and divides by depth. Pixel locations are normalized to [-1, 1] with
// x' = 2x/(width-1) - 1 and y' = 2y/(height-1) - 1. Points that land outside the reference
// image produce values outside that range.
func (p *Project3D) Project(points, k, t mat.Matrix) (*rimage.SamplingGrid, error) {
	n := p.width * p.height
	if r, c := points.Dims(); r != 4 || c != n {
		return nil, rimage.NewShapeMismatchError("camera points", c, r, n, 4)
	}
	if r, c := k.Dims(); r != 3 || c != 3 {
		return nil, rimage.NewShapeMismatchError("camera matrix", c, r, 3, 3)
	}
	if r, c := t.Dims(); r != 4 || c != 4 {
		return nil, rimage.NewShapeMismatchError("rigid transform", c, r, 4, 4)
	}

	k4 := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		k4.Set(i, i, 1)
	}
	k4.Slice(0, 3, 0, 3).(*mat.Dense).Copy(k)

	var proj mat.Dense
	proj.Mul(k4, t)

	var cam mat.Dense
	cam.Mul(proj.Slice(0, 3, 0, 4), points)
	xs, ys, zs := cam.RawRowView(0), cam.RawRowView(1), cam.RawRowView(2)

	grid := rimage.NewSamplingGrid(p.width, p.height)
	for v := 0; v < p.height; v++ {
		for u := 0; u < p.width; u++ {
			i := v*p.width + u
			z := zs[i] + projectionEpsilon
			grid.Set(u, v,
				rimage.NormalizeCoord(xs[i]/z, p.width),
				rimage.NormalizeCoord(ys[i]/z, p.height))
		}
	}
	return grid, nil
}

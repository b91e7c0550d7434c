package transform

import (
	"gonum.org/v1/gonum/mat"

	"go.viam.com/monodepth/rimage"
	"go.viam.com/monodepth/utils"
)

// BackprojectDepth lifts depth maps of a fixed resolution into homogeneous camera-frame points.
type BackprojectDepth struct {
	width, height int
	// pixelCoords is 3 x (width*height), columns are (u, v, 1) in row-major pixel order.
	pixelCoords *mat.Dense
}

// NewBackprojectDepth precomputes the homogeneous pixel grid for width x height depth maps.
func NewBackprojectDepth(width, height int) *BackprojectDepth {
	return &BackprojectDepth{width: width, height: height, pixelCoords: utils.PixelGrid(width, height)}
}

// Width returns the configured depth map width.
func (bp *BackprojectDepth) Width() int {
	return bp.width
}

// Height returns the configured depth map height.
func (bp *BackprojectDepth) Height() int {
	return bp.height
}

// Backproject returns a 4 x (width*height) matrix whose columns are the homogeneous points
// (X, Y, Z, 1) = (depth * K⁻¹ (u, v, 1), 1), in the same row-major order as the depth map.
func (bp *BackprojectDepth) Backproject(depth *rimage.DepthMap, kInv mat.Matrix) (*mat.Dense, error) {
	if depth.Width() != bp.width || depth.Height() != bp.height {
		return nil, rimage.NewShapeMismatchError("depth map", depth.Width(), depth.Height(), bp.width, bp.height)
	}
	if r, c := kInv.Dims(); r != 3 || c != 3 {
		return nil, rimage.NewShapeMismatchError("inverse camera matrix", c, r, 3, 3)
	}

	var rays mat.Dense
	rays.Mul(kInv, bp.pixelCoords)

	n := bp.width * bp.height
	points := mat.NewDense(4, n, nil)
	d := depth.Data()
	for r := 0; r < 3; r++ {
		ray := rays.RawRowView(r)
		row := points.RawRowView(r)
		for i := 0; i < n; i++ {
			row[i] = ray[i] * d[i]
		}
	}
	ones := points.RawRowView(3)
	for i := range ones {
		ones[i] = 1
	}
	return points, nil
}

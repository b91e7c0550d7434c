package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// DepthMap is a dense (height, width) grid of floats stored row-major. It holds either depth or
// disparity values depending on where it came from.
type DepthMap struct {
	width  int
	height int

	data []float64
}

// NewEmptyDepthMap returns a zeroed depth map.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{width, height, make([]float64, width*height)}
}

// NewDepthMapFromData wraps row-major data.
func NewDepthMapFromData(width, height int, data []float64) (*DepthMap, error) {
	if len(data) != width*height {
		return nil, errors.Wrapf(ErrShapeMismatch, "depth data has %d values, expected %dx%d", len(data), height, width)
	}
	return &DepthMap{width, height, data}, nil
}

// NewConstantDepthMap returns a map where every pixel is d.
func NewConstantDepthMap(width, height int, d float64) *DepthMap {
	dm := NewEmptyDepthMap(width, height)
	for i := range dm.data {
		dm.data[i] = d
	}
	return dm
}

// NewDepthMapFromStdImage reads the luminance of img as values in [0,1].
func NewDepthMapFromStdImage(img image.Image) *DepthMap {
	b := img.Bounds()
	dm := NewEmptyDepthMap(b.Dx(), b.Dy())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			dm.data[y*dm.width+x] = float64(g.Y) / 0xffff
		}
	}
	return dm
}

// Width returns the horizontal size in pixels.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical size in pixels.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the pixel rectangle covered by the map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// Data returns the row-major backing slice.
func (dm *DepthMap) Data() []float64 {
	return dm.data
}

// GetDepth returns the value at (x, y).
func (dm *DepthMap) GetDepth(x, y int) float64 {
	return dm.data[y*dm.width+x]
}

// Set sets the value at (x, y).
func (dm *DepthMap) Set(x, y int, val float64) {
	dm.data[y*dm.width+x] = val
}

// MinMax returns the smallest and largest values.
func (dm *DepthMap) MinMax() (float64, float64) {
	if len(dm.data) == 0 {
		return 0, 0
	}
	return floats.Min(dm.data), floats.Max(dm.data)
}

// DisparityToDepth converts a disparity map to depth with depth = 1/disparity. Disparities are
// produced by a sigmoid so they lie in (0,1]; no clamping is done here.
func DisparityToDepth(disp *DepthMap) *DepthMap {
	depth := NewEmptyDepthMap(disp.width, disp.height)
	for i, d := range disp.data {
		depth.data[i] = 1 / d
	}
	return depth
}

// DepthToDisparity converts depth to disparity. Zero depth marks a missing reading and stays zero.
func DepthToDisparity(depth *DepthMap) *DepthMap {
	disp := NewEmptyDepthMap(depth.width, depth.height)
	for i, d := range depth.data {
		if d != 0 {
			disp.data[i] = 1 / d
		}
	}
	return disp
}

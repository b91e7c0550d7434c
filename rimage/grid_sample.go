package rimage

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/monodepth/utils"
)

// SamplingGrid is a (height, width, 2) grid of sampling locations normalized to [-1, 1], where
// -1 is the center of the first pixel and 1 the center of the last one along each axis.
type SamplingGrid struct {
	width, height int
	data          []float64
}

// NewSamplingGrid returns a grid with every location at (0, 0).
func NewSamplingGrid(width, height int) *SamplingGrid {
	return &SamplingGrid{width, height, make([]float64, 2*width*height)}
}

// Width returns the number of grid columns.
func (g *SamplingGrid) Width() int {
	return g.width
}

// Height returns the number of grid rows.
func (g *SamplingGrid) Height() int {
	return g.height
}

// Data returns the (height, width, 2) backing slice.
func (g *SamplingGrid) Data() []float64 {
	return g.data
}

// At returns the normalized (x, y) sampling location for output pixel (u, v).
func (g *SamplingGrid) At(u, v int) (float64, float64) {
	k := 2 * (v*g.width + u)
	return g.data[k], g.data[k+1]
}

// Set stores the normalized sampling location for output pixel (u, v).
func (g *SamplingGrid) Set(u, v int, x, y float64) {
	k := 2 * (v*g.width + u)
	g.data[k] = x
	g.data[k+1] = y
}

// NormalizeCoord maps a pixel coordinate in [0, size-1] to [-1, 1].
func NormalizeCoord(p float64, size int) float64 {
	return 2*(p/float64(size-1)) - 1
}

// UnnormalizeCoord is the inverse of NormalizeCoord.
func UnnormalizeCoord(n float64, size int) float64 {
	return (n + 1) / 2 * float64(size-1)
}

// GridSample resamples img at the locations in grid using bilinear interpolation. Locations that
// fall outside the image read zeros. The output has img's channels and grid's size.
func GridSample(img *Image, grid *SamplingGrid) (*Image, error) {
	if img == nil || grid == nil {
		return nil, errors.New("cannot sample with a nil image or grid")
	}
	if img.width < 2 || img.height < 2 {
		return nil, errors.Wrapf(ErrShapeMismatch, "cannot sample a %dx%d image, need at least 2x2", img.width, img.height)
	}
	out := NewImage(img.channels, grid.width, grid.height)
	utils.ParallelForEachRow(grid.height, func(v int) {
		for u := 0; u < grid.width; u++ {
			gx, gy := grid.At(u, v)
			x := UnnormalizeCoord(gx, img.width)
			y := UnnormalizeCoord(gy, img.height)
			if math.IsNaN(x) || math.IsNaN(y) {
				for c := 0; c < img.channels; c++ {
					out.Set(c, u, v, math.NaN())
				}
				continue
			}
			if x <= -1 || y <= -1 || x >= float64(img.width) || y >= float64(img.height) {
				// every neighbour is padding; also keeps huge values away from int conversion
				continue
			}
			x0, y0 := math.Floor(x), math.Floor(y)
			wx, wy := x-x0, y-y0
			ix, iy := int(x0), int(y0)
			for c := 0; c < img.channels; c++ {
				val := (1-wx)*(1-wy)*img.atOrZero(c, ix, iy) +
					wx*(1-wy)*img.atOrZero(c, ix+1, iy) +
					(1-wx)*wy*img.atOrZero(c, ix, iy+1) +
					wx*wy*img.atOrZero(c, ix+1, iy+1)
				out.Set(c, u, v, val)
			}
		}
	})
	return out, nil
}

func (i *Image) atOrZero(c, x, y int) float64 {
	if x < 0 || y < 0 || x >= i.width || y >= i.height {
		return 0
	}
	return i.At(c, x, y)
}

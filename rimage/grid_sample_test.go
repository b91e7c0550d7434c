package rimage

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func rampImage(width, height int) *Image {
	img := NewImage(3, width, height)
	for c := 0; c < 3; c++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.Set(c, x, y, float64(c+1)*0.01*float64(x+width*y))
			}
		}
	}
	return img
}

func identityGrid(width, height int) *SamplingGrid {
	grid := NewSamplingGrid(width, height)
	for v := 0; v < height; v++ {
		for u := 0; u < width; u++ {
			grid.Set(u, v, NormalizeCoord(float64(u), width), NormalizeCoord(float64(v), height))
		}
	}
	return grid
}

func TestGridSampleIdentity(t *testing.T) {
	img := rampImage(5, 4)
	out, err := GridSample(img, identityGrid(5, 4))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.SameShape(img), test.ShouldBeTrue)
	for i, v := range out.Data() {
		test.That(t, v, test.ShouldAlmostEqual, img.Data()[i])
	}
}

func TestGridSampleBilinear(t *testing.T) {
	img := NewImage(1, 2, 2)
	img.Set(0, 0, 0, 0)
	img.Set(0, 1, 0, 1)
	img.Set(0, 0, 1, 2)
	img.Set(0, 1, 1, 3)

	grid := NewSamplingGrid(1, 1)
	grid.Set(0, 0, 0, 0) // halfway between all four pixels
	out, err := GridSample(img, grid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.At(0, 0, 0), test.ShouldAlmostEqual, 1.5)

	grid.Set(0, 0, 1, -1) // exactly on the top right pixel
	out, err = GridSample(img, grid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.At(0, 0, 0), test.ShouldAlmostEqual, 1)
}

func TestGridSampleZeroPadding(t *testing.T) {
	img := NewImage(1, 3, 3)
	for i := range img.Data() {
		img.Data()[i] = 1
	}
	grid := NewSamplingGrid(3, 1)
	grid.Set(0, 0, 5, 0)  // far right
	grid.Set(1, 0, -3, 0) // far left
	grid.Set(2, 0, 2, 0)  // x = 3 px, one pixel past the last column
	out, err := GridSample(img, grid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.At(0, 0, 0), test.ShouldEqual, 0)
	test.That(t, out.At(0, 1, 0), test.ShouldEqual, 0)
	test.That(t, out.At(0, 2, 0), test.ShouldEqual, 0)

	grid.Set(2, 0, 1.5, 0) // x = 2.5 px, halfway into the padding
	out, err = GridSample(img, grid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.At(0, 2, 0), test.ShouldAlmostEqual, 0.5)
}

func TestGridSampleRejectsBadInput(t *testing.T) {
	_, err := GridSample(nil, NewSamplingGrid(1, 1))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = GridSample(NewImage(1, 1, 1), NewSamplingGrid(1, 1))
	test.That(t, errors.Is(err, ErrShapeMismatch), test.ShouldBeTrue)
	_, err = GridSample(NewImage(3, 5, 1), NewSamplingGrid(1, 1))
	test.That(t, errors.Is(err, ErrShapeMismatch), test.ShouldBeTrue)
}

func TestGridSampleDegenerateLocations(t *testing.T) {
	img := rampImage(4, 3)
	grid := NewSamplingGrid(4, 1)
	grid.Set(0, 0, -4e7, 2e7) // a point on the camera plane after the perspective divide
	grid.Set(1, 0, math.NaN(), 0)
	grid.Set(2, 0, 0, math.NaN())
	grid.Set(3, 0, math.Inf(1), 0)
	out, err := GridSample(img, grid)
	test.That(t, err, test.ShouldBeNil)
	for c := 0; c < 3; c++ {
		test.That(t, out.At(c, 0, 0), test.ShouldEqual, 0)
		test.That(t, math.IsNaN(out.At(c, 1, 0)), test.ShouldBeTrue)
		test.That(t, math.IsNaN(out.At(c, 2, 0)), test.ShouldBeTrue)
		test.That(t, out.At(c, 3, 0), test.ShouldEqual, 0)
	}
}

func TestNormalizeCoordRoundTrip(t *testing.T) {
	test.That(t, NormalizeCoord(0, 640), test.ShouldEqual, -1)
	test.That(t, NormalizeCoord(639, 640), test.ShouldEqual, 1)
	test.That(t, UnnormalizeCoord(NormalizeCoord(123.5, 640), 640), test.ShouldAlmostEqual, 123.5)
}

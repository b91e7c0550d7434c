package rimage

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestDepthMapFromData(t *testing.T) {
	dm, err := NewDepthMapFromData(3, 2, []float64{1, 2, 3, 4, 5, 6})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(2, 1), test.ShouldEqual, 6.)
	test.That(t, dm.GetDepth(0, 1), test.ShouldEqual, 4.)
	dm.Set(0, 0, -1)
	low, high := dm.MinMax()
	test.That(t, low, test.ShouldEqual, -1.)
	test.That(t, high, test.ShouldEqual, 6.)

	_, err = NewDepthMapFromData(3, 3, []float64{1})
	test.That(t, errors.Is(err, ErrShapeMismatch), test.ShouldBeTrue)
}

func TestDepthMapFromStdImage(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 2, 1))
	img.SetGray16(0, 0, color.Gray16{0})
	img.SetGray16(1, 0, color.Gray16{0xffff})
	dm := NewDepthMapFromStdImage(img)
	test.That(t, dm.Width(), test.ShouldEqual, 2)
	test.That(t, dm.Height(), test.ShouldEqual, 1)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, 0.)
	test.That(t, dm.GetDepth(1, 0), test.ShouldEqual, 1.)
}

func TestDepthToDisparity(t *testing.T) {
	depth, err := NewDepthMapFromData(3, 1, []float64{0, 2, 0.5})
	test.That(t, err, test.ShouldBeNil)
	disp := DepthToDisparity(depth)
	test.That(t, disp.Data(), test.ShouldResemble, []float64{0, 0.5, 2})
}

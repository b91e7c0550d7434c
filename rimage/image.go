// Package rimage holds the dense image types used by view synthesis: float CHW images, depth
// maps, normalized sampling grids, and the bilinear sampler that consumes them.
package rimage

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Image is a dense (channels, height, width) grid of intensities normalized to [0,1].
// Pixels are stored channel-major then row-major, matching the layout networks consume.
type Image struct {
	channels, width, height int
	data                    []float64
}

// NewImage returns a zeroed image.
func NewImage(channels, width, height int) *Image {
	return &Image{channels, width, height, make([]float64, channels*width*height)}
}

// NewImageFromData wraps data laid out as (channels, height, width).
func NewImageFromData(channels, width, height int, data []float64) (*Image, error) {
	if len(data) != channels*width*height {
		return nil, errors.Wrapf(ErrShapeMismatch, "image data has %d values, expected %dx%dx%d",
			len(data), channels, height, width)
	}
	return &Image{channels, width, height, data}, nil
}

// NewImageFromStdImage converts any image to a 3 channel RGB image in [0,1].
func NewImageFromStdImage(img image.Image) *Image {
	b := img.Bounds()
	out := NewImage(3, b.Dx(), b.Dy())
	plane := out.width * out.height
	for y := 0; y < out.height; y++ {
		for x := 0; x < out.width; x++ {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			k := y*out.width + x
			out.data[k] = float64(c.R) / 0xffff
			out.data[plane+k] = float64(c.G) / 0xffff
			out.data[2*plane+k] = float64(c.B) / 0xffff
		}
	}
	return out
}

// Channels returns the number of channels.
func (i *Image) Channels() int {
	return i.channels
}

// Width returns the horizontal size in pixels.
func (i *Image) Width() int {
	return i.width
}

// Height returns the vertical size in pixels.
func (i *Image) Height() int {
	return i.height
}

// Bounds returns the pixel rectangle covered by the image.
func (i *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.width, i.height)
}

// Data returns the backing slice.
func (i *Image) Data() []float64 {
	return i.data
}

func (i *Image) kxy(c, x, y int) int {
	return (c*i.height+y)*i.width + x
}

// At returns the value of channel c at (x, y).
func (i *Image) At(c, x, y int) float64 {
	return i.data[i.kxy(c, x, y)]
}

// Set sets the value of channel c at (x, y).
func (i *Image) Set(c, x, y int, v float64) {
	i.data[i.kxy(c, x, y)] = v
}

// SameShape reports whether both images have identical dimensions.
func (i *Image) SameShape(other *Image) bool {
	return i.channels == other.channels && i.width == other.width && i.height == other.height
}

// ToStdImage converts a 1 or 3 channel image to a 16 bit image, clamping values to [0,1].
func (i *Image) ToStdImage() (image.Image, error) {
	switch i.channels {
	case 1:
		out := image.NewGray16(i.Bounds())
		for y := 0; y < i.height; y++ {
			for x := 0; x < i.width; x++ {
				out.SetGray16(x, y, color.Gray16{Y: to16(i.At(0, x, y))})
			}
		}
		return out, nil
	case 3:
		out := image.NewNRGBA64(i.Bounds())
		for y := 0; y < i.height; y++ {
			for x := 0; x < i.width; x++ {
				out.SetNRGBA64(x, y, color.NRGBA64{
					R: to16(i.At(0, x, y)), G: to16(i.At(1, x, y)), B: to16(i.At(2, x, y)), A: 0xffff,
				})
			}
		}
		return out, nil
	default:
		return nil, errors.Errorf("cannot convert a %d channel image", i.channels)
	}
}

// Resize returns a bilinearly resampled copy at the given size. Resampling goes through a 16 bit
// image, so values are clamped to [0, 1] and quantized to steps of 1/65535. Same-size resizes
// return an exact copy.
func (i *Image) Resize(width, height int) (*Image, error) {
	if width == i.width && height == i.height {
		return i.Clone(), nil
	}
	std, err := i.ToStdImage()
	if err != nil {
		return nil, err
	}
	resized := resize.Resize(uint(width), uint(height), std, resize.Bilinear)
	if i.channels == 3 {
		return NewImageFromStdImage(resized), nil
	}
	gray := NewImageFromStdImage(resized)
	return &Image{1, width, height, gray.data[:width*height]}, nil
}

// Clone returns a deep copy.
func (i *Image) Clone() *Image {
	return &Image{i.channels, i.width, i.height, append([]float64(nil), i.data...)}
}

func to16(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xffff
	default:
		return uint16(v*0xffff + 0.5)
	}
}

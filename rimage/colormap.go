package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// magma samples at evenly spaced positions in [0, 1]. The colormap is perceptually uniform, so
// samples are blended in CIE L*a*b* rather than RGB.
var magma = []string{
	"#000004", "#1c1044", "#4f127b", "#812581", "#b5367a",
	"#e55064", "#fb8761", "#fec287", "#fcfdbf",
}

var magmaColors = mustParseHexColors(magma)

func mustParseHexColors(hexes []string) []colorful.Color {
	out := make([]colorful.Color, len(hexes))
	for i, hex := range hexes {
		c, err := colorful.Hex(hex)
		if err != nil {
			panic(errors.Wrapf(err, "bad colormap entry %q", hex))
		}
		out[i] = c
	}
	return out
}

// MagmaColor maps t in [0, 1] onto the magma colormap. Values outside are clipped.
func MagmaColor(t float64) color.RGBA {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	pos := t * float64(len(magmaColors)-1)
	idx := int(pos)
	if idx >= len(magmaColors)-1 {
		idx = len(magmaColors) - 2
	}
	c := magmaColors[idx].BlendLab(magmaColors[idx+1], pos-float64(idx)).Clamped()
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 255}
}

// DisparityPercentile is the percentile used as the top of the colormap range so a few very
// close pixels do not wash out the rest of the map.
const DisparityPercentile = 95

// ColorizeDisparity renders a disparity map with the magma colormap, normalizing from the
// minimum value to the 95th percentile.
func ColorizeDisparity(disp *DepthMap) (*image.RGBA, error) {
	if len(disp.data) == 0 {
		return nil, errors.New("cannot colorize an empty disparity map")
	}
	vmin, _ := disp.MinMax()
	vmax, err := stats.Percentile(disp.data, DisparityPercentile)
	if err != nil {
		return nil, errors.Wrap(err, "error computing disparity percentile")
	}
	span := vmax - vmin
	out := image.NewRGBA(disp.Bounds())
	for y := 0; y < disp.height; y++ {
		for x := 0; x < disp.width; x++ {
			t := 0.
			if span > 0 {
				t = (disp.GetDepth(x, y) - vmin) / span
			}
			out.SetRGBA(x, y, MagmaColor(t))
		}
	}
	return out, nil
}

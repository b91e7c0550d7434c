package train

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PlotLoss saves the loss of every step as a line plot. The format follows the file extension.
func PlotLoss(path string, lossHistory []float64) error {
	if len(lossHistory) == 0 {
		return errors.New("no losses to plot")
	}
	pts := make(plotter.XYs, len(lossHistory))
	for i, l := range lossHistory {
		pts[i].X = float64(i)
		pts[i].Y = l
	}

	p := plot.New()
	p.Title.Text = "photometric loss"
	p.X.Label.Text = "step"
	p.Y.Label.Text = "loss"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "cannot plot losses")
	}
	line.LineStyle = draw.LineStyle{
		Color: color.RGBA{0x81, 0x25, 0x81, 0xff},
		Width: vg.Points(1),
	}
	p.Add(plotter.NewGrid(), line)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "cannot save loss plot to %q", path)
	}
	return nil
}

package cli

import (
	"github.com/urfave/cli/v2"

	"go.viam.com/monodepth/rimage"
)

// ColorizeAction is the corresponding action for 'colorize'.
func ColorizeAction(c *cli.Context) error {
	img, err := rimage.ReadImageFromFile(c.Path(colorizeFlagInput))
	if err != nil {
		return err
	}
	disp := rimage.NewDepthMapFromStdImage(img)
	if c.Bool(colorizeFlagDepth) {
		disp = rimage.DepthToDisparity(disp)
	}
	colored, err := rimage.ColorizeDisparity(disp)
	if err != nil {
		return err
	}
	if err := rimage.WriteImageToFile(c.Path(colorizeFlagOutput), colored); err != nil {
		return err
	}
	printf(c.App.Writer, "wrote %s", c.Path(colorizeFlagOutput))
	return nil
}

// Package cli contains the monodepth command line actions.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	generalFlagConfig = "config"
	generalFlagDebug  = "debug"

	trainFlagMaxSteps  = "max-steps"
	trainFlagDisparity = "disparity"
	trainFlagDryRun    = "dry-run"

	colorizeFlagInput  = "input"
	colorizeFlagOutput = "output"
	colorizeFlagDepth  = "depth"

	trainHistogramBins = 10
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app := &cli.App{
		Name:            "monodepth",
		Usage:           "score monocular depth and pose predictions with the photometric reconstruction loss",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "train",
				Usage:     "run the loss over a training split",
				UsageText: "monodepth train --config <file> [--max-steps <n>]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     generalFlagConfig,
						Aliases:  []string{"c"},
						Usage:    "load configuration from `FILE` (json or yaml)",
						Required: true,
					},
					&cli.IntFlag{
						Name:  trainFlagMaxSteps,
						Usage: "override max_steps from the config",
					},
					&cli.Float64Flag{
						Name:  trainFlagDisparity,
						Usage: "disparity predicted everywhere by the static depth network",
						Value: 0.1,
					},
					&cli.BoolFlag{
						Name:  trainFlagDryRun,
						Usage: "only load the config and splits, then print what would run",
					},
				},
				Action: TrainAction,
			},
			{
				Name:      "colorize",
				Usage:     "render a disparity or depth image with the magma colormap",
				UsageText: "monodepth colorize --input <file> --output <file> [--depth]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     colorizeFlagInput,
						Usage:    "single channel disparity image to read",
						Required: true,
					},
					&cli.PathFlag{
						Name:     colorizeFlagOutput,
						Usage:    "image file to write, format from the extension",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  colorizeFlagDepth,
						Usage: "the input holds depth, convert it to disparity first",
					},
				},
				Action: ColorizeAction,
			},
			{
				Name:   "config-schema",
				Usage:  "print the JSON schema of training config files",
				Action: ConfigSchemaAction,
			},
		},
	}
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

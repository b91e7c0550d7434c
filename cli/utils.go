package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"go.viam.com/monodepth/logging"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, color.New(color.Bold, color.FgYellow).Sprint("Warning: ")+format+"\n", a...)
}

func newLogger(c *cli.Context, name string) logging.Logger {
	logger := logging.NewLogger(name)
	if c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	return logger
}

// resolvePath makes path relative to the directory of the config file unless it is absolute.
func resolvePath(configPath, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(configPath), path)
}

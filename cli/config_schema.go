package cli

import (
	"github.com/urfave/cli/v2"

	"go.viam.com/monodepth/config"
)

// ConfigSchemaAction is the corresponding action for 'config-schema'.
func ConfigSchemaAction(c *cli.Context) error {
	schema, err := config.SchemaJSON()
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", schema)
	return nil
}

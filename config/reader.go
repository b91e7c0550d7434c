package config

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Read reads a config from the given file. Environment variables referenced as $VAR or ${VAR}
// are substituted before decoding.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies where, if applicable, the file
// the reader originated from. Files ending in .yaml or .yml are decoded as YAML and everything
// else as JSON.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(originalPath)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.Wrapf(err, "cannot parse config %q", originalPath)
		}
	default:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.Wrapf(err, "cannot parse config %q", originalPath)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return cfg, nil
}

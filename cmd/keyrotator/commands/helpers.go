package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/systmms/keyrotator/internal/bootstrap"
	"github.com/systmms/keyrotator/internal/config"
	"github.com/systmms/keyrotator/internal/logging"
	"gopkg.in/yaml.v3"
)

// Output formats shared by the commands that print records.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// buildComponents is replaced in tests.
var buildComponents = bootstrap.Build

// loadComponents loads the configuration, rebuilds the logger from it and wires the components.
func loadComponents(ctx context.Context, cfg *config.Config) (*bootstrap.Components, error) {
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Logger = logging.New(cfg.Definition.Log.Debug, cfg.Definition.Log.Format)

	return buildComponents(ctx, cfg.Definition, cfg.Logger)
}

// writeStructured prints v as JSON or YAML. ok is false for any other format.
func writeStructured(w io.Writer, format string, v interface{}) (ok bool, err error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	case formatTable, "":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q: use table, json or yaml", format)
	}
}

package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"hydrogen_tea/pkg/core/utils"
)

// LoadFile reads a standalone analysis declaration. The format follows the
// extension: .hjson, .json (repaired or read as Hjson when strict JSON fails)
// or .yaml / .yml.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis file: %w", err)
	}
	cfg, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses an analysis declaration written in the format named by ext.
func Decode(data []byte, ext string) (*Config, error) {
	cfg := &Config{}
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "hjson":
		converted, err := utils.HJSONToJSON(data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(converted, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode analysis config: %w", err)
		}
	case "json", "":
		if err := utils.SmartParse(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode analysis config: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode analysis config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported analysis config format %q", ext)
	}
	return cfg, nil
}

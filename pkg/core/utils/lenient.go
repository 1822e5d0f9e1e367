// Package utils holds small decoding helpers shared by the loaders.
package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// HJSONToJSON converts Hjson (comments, unquoted keys and strings, optional
// commas) into standard JSON.
func HJSONToJSON(data []byte) ([]byte, error) {
	var tree interface{}
	if err := hjson.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("hjson: %w", err)
	}
	out, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("hjson to json: %w", err)
	}
	return out, nil
}

// RepairJSON fixes hand-edited JSON: trailing commas, single quotes,
// unclosed brackets and the like.
func RepairJSON(data []byte) ([]byte, error) {
	repaired, err := jsonrepair.RepairJSON(string(data))
	if err != nil {
		return nil, fmt.Errorf("json repair: %w", err)
	}
	return []byte(repaired), nil
}

// SmartParse decodes data into v, trying in order:
// 1. Standard JSON
// 2. Repaired JSON
// 3. Hjson
// It returns the first error when every strategy fails, since that is the
// one a user editing JSON can act on.
func SmartParse(data []byte, v interface{}) error {
	// Try 1: standard JSON
	first := json.Unmarshal(data, v)
	if first == nil {
		return nil
	}

	// Try 2: JSON repair
	if repaired, err := RepairJSON(data); err == nil {
		if err := json.Unmarshal(repaired, v); err == nil {
			return nil
		}
	}

	// Try 3: Hjson
	if converted, err := HJSONToJSON(data); err == nil {
		if err := json.Unmarshal(converted, v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no json, repaired json or hjson reading succeeded: %w", first)
}

package params

import (
	"fmt"
	"strings"
)

const (
	pathSeparator = ">"
	listSeparator = ";"
)

// Path addresses one entry by (table, row, field).
type Path struct {
	Table string `json:"table"`
	Row   string `json:"row"`
	Field string `json:"field"`
}

// P is shorthand for constructing a Path.
func P(table, row, field string) Path {
	return Path{Table: table, Row: row, Field: field}
}

func (p Path) String() string {
	return p.Table + " > " + p.Row + " > " + p.Field
}

// IsZero reports whether the path is unset.
func (p Path) IsZero() bool {
	return p.Table == "" && p.Row == "" && p.Field == ""
}

// MarshalText renders the path in its "Table > Row > Field" form.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses the "Table > Row > Field" form.
func (p *Path) UnmarshalText(b []byte) error {
	parsed, err := ParsePath(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePath parses "Table > Row > Field". Exactly three non-empty parts are required.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(s, pathSeparator)
	if len(parts) != 3 {
		return Path{}, fmt.Errorf("path %q: expected 3 parts separated by %q, got %d", s, pathSeparator, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "" {
			return Path{}, fmt.Errorf("path %q: empty component at position %d", s, i)
		}
	}
	return Path{Table: parts[0], Row: parts[1], Field: parts[2]}, nil
}

// ParsePaths parses a ";"-separated list of paths. Empty items are skipped.
func ParsePaths(s string) ([]Path, error) {
	var paths []Path
	for _, item := range strings.Split(s, listSeparator) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		p, err := ParsePath(item)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths in %q", s)
	}
	return paths, nil
}

// SplitList splits a ";"-separated cell into trimmed, non-empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, listSeparator) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

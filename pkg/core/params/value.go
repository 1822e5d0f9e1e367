package params

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// VALUE (tagged union)
// =============================================================================

// Kind tags the variant held by a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindNumber
	KindPercent
	KindText
	KindFileRef
	KindSeries
	KindReference
)

var kindNames = map[Kind]string{
	KindInvalid:   "invalid",
	KindNumber:    "number",
	KindPercent:   "percent",
	KindText:      "text",
	KindFileRef:   "file",
	KindSeries:    "series",
	KindReference: "reference",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown value kind %q", string(b))
}

// Reference points at one or more entries. Base is the literal written next to
// the paths (the "Value" column beside a "Path" column), nil when absent.
type Reference struct {
	Paths []Path   `json:"paths"`
	Base  *float64 `json:"base,omitempty"`
	Rule  string   `json:"rule,omitempty"`
}

// Value is immutable once constructed; clones of a Store share Values.
type Value struct {
	Kind   Kind       `json:"kind"`
	Num    float64    `json:"num,omitempty"`
	Str    string     `json:"str,omitempty"`
	Series []float64  `json:"series,omitempty"`
	Ref    *Reference `json:"ref,omitempty"`
}

func Number(v float64) Value { return Value{Kind: KindNumber, Num: v} }

// Percent stores the fraction, so Percent(0.05) is "5%".
func Percent(fraction float64) Value { return Value{Kind: KindPercent, Num: fraction} }

func Text(s string) Value { return Value{Kind: KindText, Str: s} }

func FileRef(name string) Value { return Value{Kind: KindFileRef, Str: name} }

// Series copies v.
func Series(v []float64) Value {
	cp := make([]float64, len(v))
	copy(cp, v)
	return Value{Kind: KindSeries, Series: cp}
}

// Ref builds a reference value. An empty rule means the default rule.
func Ref(paths []Path, base *float64, rule string) Value {
	ps := make([]Path, len(paths))
	copy(ps, paths)
	var b *float64
	if base != nil {
		v := *base
		b = &v
	}
	return Value{Kind: KindReference, Ref: &Reference{Paths: ps, Base: b, Rule: rule}}
}

// IsReference reports whether v must be resolved through other entries.
func (v Value) IsReference() bool { return v.Kind == KindReference }

// IsLiteral reports whether v is a leaf value.
func (v Value) IsLiteral() bool { return v.Kind != KindReference && v.Kind != KindInvalid }

// Float returns the numeric content of Number and Percent values.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber, KindPercent:
		return v.Num, true
	}
	return 0, false
}

// Equal compares two values structurally.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.Num != o.Num || v.Str != o.Str || len(v.Series) != len(o.Series) {
		return false
	}
	for i := range v.Series {
		if v.Series[i] != o.Series[i] {
			return false
		}
	}
	if (v.Ref == nil) != (o.Ref == nil) {
		return false
	}
	if v.Ref != nil {
		a, b := v.Ref, o.Ref
		if a.Rule != b.Rule || len(a.Paths) != len(b.Paths) || (a.Base == nil) != (b.Base == nil) {
			return false
		}
		if a.Base != nil && *a.Base != *b.Base {
			return false
		}
		for i := range a.Paths {
			if a.Paths[i] != b.Paths[i] {
				return false
			}
		}
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindPercent:
		// 12 significant digits hide the binary error of the x100 round trip
		return strconv.FormatFloat(v.Num*100, 'g', 12, 64) + "%"
	case KindText, KindFileRef:
		return v.Str
	case KindSeries:
		b, _ := json.Marshal(v.Series)
		return string(b)
	case KindReference:
		parts := make([]string, len(v.Ref.Paths))
		for i, p := range v.Ref.Paths {
			parts[i] = p.String()
		}
		s := strings.Join(parts, "; ")
		if v.Ref.Base != nil {
			s = strconv.FormatFloat(*v.Ref.Base, 'g', -1, 64) + " x [" + s + "]"
		}
		if v.Ref.Rule != "" {
			s += " (" + v.Ref.Rule + ")"
		}
		return s
	}
	return "<invalid>"
}

// =============================================================================
// LITERAL PARSING
// =============================================================================

var fileSuffixes = []string{".csv", ".tsv", ".txt"}

// ParseNumber parses a numeric cell: thousands separators and a leading
// currency sign are stripped, a trailing "%" divides by 100.
func ParseNumber(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	if percent {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	if neg {
		f = -f
	}
	if percent {
		f /= 100
	}
	return f, percent, nil
}

// ParseLiteral turns a configuration cell into a literal Value.
func ParseLiteral(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return Text("")
	}
	if f, percent, err := ParseNumber(s); err == nil {
		if percent {
			return Percent(f)
		}
		return Number(f)
	}
	lower := strings.ToLower(s)
	for _, suffix := range fileSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return FileRef(s)
		}
	}
	if strings.Contains(s, "~") && !strings.ContainsAny(s, " ;") {
		return FileRef(s)
	}
	return Text(s)
}

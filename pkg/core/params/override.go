package params

import "fmt"

// OverrideMode selects how an override value is applied.
type OverrideMode string

const (
	// ModeValue replaces the literal.
	ModeValue OverrideMode = "value"
	// ModeFactor multiplies the existing numeric literal.
	ModeFactor OverrideMode = "factor"
)

// ParseOverrideMode accepts "value", "factor" or "" (value).
func ParseOverrideMode(s string) (OverrideMode, error) {
	switch OverrideMode(s) {
	case "", ModeValue:
		return ModeValue, nil
	case ModeFactor:
		return ModeFactor, nil
	}
	return "", fmt.Errorf("unknown override type %q (want value or factor)", s)
}

// Override is a literal substitution applied to a clone before evaluation.
type Override struct {
	Path  Path         `json:"path"`
	Value Value        `json:"value"`
	Mode  OverrideMode `json:"mode,omitempty"`
}

// Set builds a replacing override.
func Set(p Path, v Value) Override {
	return Override{Path: p, Value: v, Mode: ModeValue}
}

// Scale builds a multiplying override.
func Scale(p Path, factor float64) Override {
	return Override{Path: p, Value: Number(factor), Mode: ModeFactor}
}

// Apply computes the literal this override produces against the current entry.
func (o Override) Apply(current Entry) (Value, error) {
	if current.Raw.IsReference() {
		return Value{}, &OverrideError{Path: o.Path, Reason: "target is a reference entry"}
	}
	if !o.Value.IsLiteral() {
		return Value{}, &OverrideError{Path: o.Path, Reason: "override value must be a literal"}
	}

	switch o.Mode {
	case "", ModeValue:
		return o.Value, nil
	case ModeFactor:
		base, ok := current.Raw.Float()
		if !ok {
			return Value{}, &OverrideError{Path: o.Path, Reason: fmt.Sprintf("factor needs a numeric target, found %s", current.Raw.Kind)}
		}
		f, ok := o.Value.Float()
		if !ok {
			return Value{}, &OverrideError{Path: o.Path, Reason: "factor must be numeric"}
		}
		if current.Raw.Kind == KindPercent {
			return Percent(base * f), nil
		}
		return Number(base * f), nil
	}
	return Value{}, &OverrideError{Path: o.Path, Reason: fmt.Sprintf("unknown mode %q", o.Mode)}
}

// ApplyOverrides clones the store and applies each override in order.
// The receiver is never modified.
func (s *Store) ApplyOverrides(overrides []Override) (*Store, error) {
	c := s.Clone()
	for _, o := range overrides {
		current, err := c.Get(o.Path)
		if err != nil {
			return nil, &OverrideError{Path: o.Path, Reason: "target entry does not exist"}
		}
		v, err := o.Apply(current)
		if err != nil {
			return nil, err
		}
		current.Raw = v
		if err := c.SetEntry(current); err != nil {
			return nil, &OverrideError{Path: o.Path, Reason: err.Error()}
		}
	}
	return c, nil
}

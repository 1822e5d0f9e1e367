package params

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

var (
	ErrNotFound                = errors.New("entry not found")
	ErrCyclicReference         = errors.New("cyclic reference")
	ErrInvalidOverride         = errors.New("invalid override")
	ErrPluginInput             = errors.New("plugin input error")
	ErrUnknownPlugin           = errors.New("unknown plugin")
	ErrMalformedAnalysisConfig = errors.New("malformed analysis config")
)

// NotFoundError reports a missing entry.
type NotFoundError struct {
	Path Path
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotFound, e.Path)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// CycleError names the resolution chain that closed on itself.
// The first and last element of Cycle are the same entry.
type CycleError struct {
	Cycle []Path
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, p := range e.Cycle {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s: %s", ErrCyclicReference, strings.Join(parts, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicReference }

// OverrideError reports an override that cannot be applied.
type OverrideError struct {
	Path   Path
	Reason string
}

func (e *OverrideError) Error() string {
	return fmt.Sprintf("%s at %s: %s", ErrInvalidOverride, e.Path, e.Reason)
}

func (e *OverrideError) Unwrap() error { return ErrInvalidOverride }

// PluginInputError identifies the plugin and the input path that failed to
// resolve. Plugin is empty when the failure is found while resolving the
// store, before any plugin asks for the input.
type PluginInputError struct {
	Plugin string
	Path   Path
	Err    error
}

func (e *PluginInputError) Error() string {
	switch {
	case e.Plugin == "":
		return fmt.Sprintf("%s: input %s: %v", ErrPluginInput, e.Path, e.Err)
	case e.Path.IsZero():
		return fmt.Sprintf("%s: plugin %s: %v", ErrPluginInput, e.Plugin, e.Err)
	}
	return fmt.Sprintf("%s: plugin %s: input %s: %v", ErrPluginInput, e.Plugin, e.Path, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the underlying cause, so
// errors.Is matches ErrPluginInput as well as e.g. ErrCyclicReference.
func (e *PluginInputError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPluginInput}
	}
	return []error{ErrPluginInput, e.Err}
}

// UnknownPluginError reports a workflow name with no registry entry.
type UnknownPluginError struct {
	Name string
}

func (e *UnknownPluginError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownPlugin, e.Name)
}

func (e *UnknownPluginError) Unwrap() error { return ErrUnknownPlugin }

// AnalysisConfigError reports an ill-formed analysis declaration.
type AnalysisConfigError struct {
	Analysis string
	Item     string
	Reason   string
}

func (e *AnalysisConfigError) Error() string {
	if e.Item == "" {
		return fmt.Sprintf("%s: %s: %s", ErrMalformedAnalysisConfig, e.Analysis, e.Reason)
	}
	return fmt.Sprintf("%s: %s [%s]: %s", ErrMalformedAnalysisConfig, e.Analysis, e.Item, e.Reason)
}

func (e *AnalysisConfigError) Unwrap() error { return ErrMalformedAnalysisConfig }

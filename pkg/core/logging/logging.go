// Package logging configures the process-wide zerolog logger and hands out
// component-tagged children.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	root = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Setup sets the global level and output format. Unknown levels fall back
// to info. pretty selects the human console writer instead of JSON lines.
func Setup(level string, pretty bool) {
	SetOutput(os.Stderr, pretty)

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// SetOutput redirects the root logger, mainly for tests.
func SetOutput(w io.Writer, pretty bool) {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	mu.Lock()
	root = zerolog.New(w).With().Timestamp().Logger()
	mu.Unlock()
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.With().Str("component", strings.ToLower(name)).Logger()
}

// Info logs a message with key/value fields.
func Info(component, msg string, kv ...interface{}) {
	l := Component(component)
	l.Info().Fields(fields(kv)).Msg(msg)
}

// Error logs an error message with key/value fields.
func Error(component, msg string, err error, kv ...interface{}) {
	l := Component(component)
	l.Error().Err(err).Fields(fields(kv)).Msg(msg)
}

func fields(kv []interface{}) map[string]interface{} {
	if len(kv) == 0 {
		return nil
	}
	if len(kv)%2 != 0 {
		kv = append(kv, "(missing)")
	}
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = kv[i+1]
	}
	return out
}

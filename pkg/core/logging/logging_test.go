package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf, false)
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() {
		SetOutput(os.Stderr, false)
		zerolog.SetGlobalLevel(prev)
	})
	return &buf
}

func TestInfoJSONFields(t *testing.T) {
	buf := capture(t)

	Info("Scenario", "analysis finished", "samples", 10, "failed", 0)

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &payload); err != nil {
		t.Fatalf("expected json output, got: %s", buf.String())
	}
	if payload["component"] != "scenario" || payload["message"] != "analysis finished" {
		t.Fatalf("unexpected json payload: %#v", payload)
	}
	if payload["samples"] != float64(10) {
		t.Errorf("expected samples=10, got %v", payload["samples"])
	}
}

func TestErrorCarriesCause(t *testing.T) {
	buf := capture(t)

	Error("store", "save failed", errors.New("disk full"), "run", "abc")
	got := buf.String()
	if !strings.Contains(got, `"error":"disk full"`) || !strings.Contains(got, `"level":"error"`) {
		t.Fatalf("unexpected log output: %s", got)
	}
}

func TestOddFieldCount(t *testing.T) {
	out := fields([]interface{}{"a", 1, "b"})
	if out["a"] != 1 || out["b"] != "(missing)" {
		t.Fatalf("unexpected fields: %#v", out)
	}
}

func TestSetupLevel(t *testing.T) {
	capture(t)

	Setup("warn", false)
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Errorf("expected warn, got %v", zerolog.GlobalLevel())
	}
	Setup("nonsense", false)
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info fallback, got %v", zerolog.GlobalLevel())
	}
}

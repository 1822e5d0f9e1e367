// Package config loads the engine settings: a YAML file with
// environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"hydrogen_tea/pkg/core/lookup"
	"hydrogen_tea/pkg/core/store"
)

// DefaultPath is where the cmds look for settings.
const DefaultPath = "config/engine.yaml"

type EngineSettings struct {
	Workers             int  `yaml:"workers"`
	BatchTimeoutSeconds int  `yaml:"batch_timeout_seconds"`
	ReferenceCheck      bool `yaml:"reference_check"`
}

type LoggingSettings struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type ResultsSettings struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type LookupSettings struct {
	Driver string `yaml:"driver"`
	Root   string `yaml:"root"`
}

type ServerSettings struct {
	Addr             string `yaml:"addr"`
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// Settings is the whole engine configuration.
type Settings struct {
	Engine  EngineSettings  `yaml:"engine"`
	Logging LoggingSettings `yaml:"logging"`
	Results ResultsSettings `yaml:"results"`
	Lookup  LookupSettings  `yaml:"lookup"`
	Server  ServerSettings  `yaml:"server"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		Engine:  EngineSettings{Workers: 0, BatchTimeoutSeconds: 0, ReferenceCheck: true},
		Logging: LoggingSettings{Level: "info"},
		Results: ResultsSettings{Driver: string(store.DriverMemory)},
		Lookup:  LookupSettings{Driver: string(lookup.DriverFilesystem), Root: "lookup_tables"},
		Server:  ServerSettings{Addr: ":8080", MetricsNamespace: "h2tea"},
	}
}

// Load reads a YAML settings file and applies environment overrides. A
// missing or unreadable file returns the defaults together with the error,
// so callers may log it and carry on.
func Load(path string) (*Settings, error) {
	if path == "" {
		s := Default()
		return s, s.ApplyEnv()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s := Default()
		if envErr := s.ApplyEnv(); envErr != nil {
			return s, envErr
		}
		return s, fmt.Errorf("read settings: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return s, err
	}
	return s, s.ApplyEnv()
}

// Parse decodes YAML over the defaults; keys left out keep their default.
func Parse(data []byte) (*Settings, error) {
	s := Default()
	if len(data) == 0 {
		return s, nil
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return Default(), fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// ApplyEnv overrides settings from the environment:
//
//	H2_WORKERS, H2_BATCH_TIMEOUT (seconds or a duration such as 90s),
//	H2_REFERENCE_CHECK, H2_LOG_LEVEL, H2_LOG_PRETTY,
//	H2_RESULTS_DRIVER, H2_RESULTS_DSN, H2_LOOKUP_DRIVER, H2_LOOKUP_FS_ROOT,
//	H2_ADDR
func (s *Settings) ApplyEnv() error {
	if v := os.Getenv("H2_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("H2_WORKERS: %w", err)
		}
		s.Engine.Workers = n
	}
	if v := os.Getenv("H2_BATCH_TIMEOUT"); v != "" {
		secs, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("H2_BATCH_TIMEOUT: %w", err)
		}
		s.Engine.BatchTimeoutSeconds = secs
	}
	if v := os.Getenv("H2_REFERENCE_CHECK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("H2_REFERENCE_CHECK: %w", err)
		}
		s.Engine.ReferenceCheck = b
	}
	if v := os.Getenv("H2_LOG_LEVEL"); v != "" {
		s.Logging.Level = v
	}
	if v := os.Getenv("H2_LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("H2_LOG_PRETTY: %w", err)
		}
		s.Logging.Pretty = b
	}
	if v := os.Getenv("H2_RESULTS_DRIVER"); v != "" {
		s.Results.Driver = v
	}
	if v := os.Getenv("H2_RESULTS_DSN"); v != "" {
		s.Results.DSN = v
	}
	if v := os.Getenv("H2_LOOKUP_DRIVER"); v != "" {
		s.Lookup.Driver = v
	}
	if v := os.Getenv("H2_LOOKUP_FS_ROOT"); v != "" {
		s.Lookup.Root = v
	}
	if v := os.Getenv("H2_ADDR"); v != "" {
		s.Server.Addr = v
	}
	return nil
}

func parseSeconds(v string) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	return int(d / time.Second), nil
}

// BatchTimeout is zero when batches run without a deadline.
func (s *Settings) BatchTimeout() time.Duration {
	return time.Duration(s.Engine.BatchTimeoutSeconds) * time.Second
}

// StoreOptions selects the results repository. Postgres without a DSN
// uses DATABASE_URL.
func (s *Settings) StoreOptions() store.Options {
	o := store.Options{Driver: store.Driver(s.Results.Driver), DSN: s.Results.DSN}
	if o.Driver == store.DriverPostgres && o.DSN == "" {
		o.DSN = os.Getenv("DATABASE_URL")
	}
	return o
}

// LookupOptions selects the lookup-table source. S3 details always come
// from the environment.
func (s *Settings) LookupOptions() lookup.Options {
	return lookup.Options{
		Driver: lookup.Driver(s.Lookup.Driver),
		Root:   s.Lookup.Root,
		S3:     lookup.S3ConfigFromEnv(),
	}
}

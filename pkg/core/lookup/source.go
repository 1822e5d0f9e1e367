package lookup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Driver identifies a table source backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local directory (default)
	DriverMemory     Driver = "memory" // in-memory (tests)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
)

// Source is where raw table text comes from.
type Source interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Driver() Driver
}

// Options selects and configures a source.
type Options struct {
	Driver Driver
	Root   string
	S3     S3Config
}

// OptionsFromEnv reads the source selection from the environment.
//
//	H2_LOOKUP_DRIVER: fs|s3|memory (default fs)
//	H2_LOOKUP_FS_ROOT: directory root when driver=fs (default ./lookup_tables)
//	(S3 specific variables documented in s3.go)
func OptionsFromEnv() Options {
	return Options{
		Driver: Driver(os.Getenv("H2_LOOKUP_DRIVER")),
		Root:   os.Getenv("H2_LOOKUP_FS_ROOT"),
		S3:     S3ConfigFromEnv(),
	}
}

// Open constructs the configured source.
func Open(ctx context.Context, opts Options) (Source, error) {
	if opts.Driver == "" {
		opts.Driver = DriverFilesystem
	}
	switch opts.Driver {
	case DriverFilesystem:
		return NewFilesystem(opts.Root)
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown lookup driver %s", opts.Driver)
	}
}

// =============================================================================
// FILESYSTEM
// =============================================================================

// Filesystem reads tables below a root directory.
type Filesystem struct {
	root string
}

// NewFilesystem creates the root if it does not exist.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		root = "./lookup_tables"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Filesystem{root: abs}, nil
}

func (f *Filesystem) Driver() Driver { return DriverFilesystem }

func (f *Filesystem) path(key string) (string, error) {
	p := filepath.Join(f.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(f.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes lookup root", key)
	}
	return p, nil
}

func (f *Filesystem) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (f *Filesystem) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// =============================================================================
// MEMORY
// =============================================================================

// Memory holds table text in a map.
type Memory struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewMemory creates an empty memory source.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Driver() Driver { return DriverMemory }

// Put stores text under a key.
func (m *Memory) Put(key, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[Key(key)] = []byte(text)
}

func (m *Memory) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

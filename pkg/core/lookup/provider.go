package lookup

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Key normalizes a file reference into a slash-separated source key.
// "pkg.Lookup_Tables~MACRS.csv" becomes "pkg/Lookup_Tables/MACRS.csv".
func Key(ref string) string {
	ref = strings.TrimSpace(ref)
	if pkg, file, ok := strings.Cut(ref, "~"); ok {
		return strings.ReplaceAll(pkg, ".", "/") + "/" + file
	}
	return strings.TrimPrefix(strings.ReplaceAll(ref, "\\", "/"), "./")
}

// Provider caches parsed tables by key. Tables are loaded before any
// scenario runs and handed out by pointer afterwards.
type Provider struct {
	tables map[string]*Table
	mu     sync.RWMutex
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{tables: make(map[string]*Table)}
}

// Load fetches and parses the named tables from src. With no names, every
// object the source lists is loaded. Already loaded names are skipped.
func (p *Provider) Load(ctx context.Context, src Source, names ...string) error {
	if len(names) == 0 {
		listed, err := src.List(ctx, "")
		if err != nil {
			return fmt.Errorf("listing %s source: %w", src.Driver(), err)
		}
		names = listed
	}

	for _, name := range names {
		key := Key(name)
		if p.has(key) {
			continue
		}
		rc, err := src.Open(ctx, key)
		if err != nil {
			return fmt.Errorf("opening table %s: %w", key, err)
		}
		t, err := Parse(key, rc)
		rc.Close()
		if err != nil {
			return err
		}
		p.Put(t)
	}
	return nil
}

// Put registers a table under its name, replacing any previous one.
func (p *Provider) Put(t *Table) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tables[Key(t.Name())] = t
}

func (p *Provider) has(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.tables[key]
	return ok
}

// Get returns the shared table for a file reference.
func (p *Provider) Get(name string) (*Table, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t, ok := p.tables[Key(name)]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoSuchTable, name)
}

// Table is Get under the name plugins expect.
func (p *Provider) Table(name string) (*Table, error) { return p.Get(name) }

// Names lists loaded keys alphabetically.
func (p *Provider) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.tables))
	for k := range p.tables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

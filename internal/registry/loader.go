package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"llamaswitch/internal/common/fsutil"
	"llamaswitch/internal/config"
)

// Registry holds named backend configuration documents. It is read-only after
// LoadDir; Get hands out copies.
type Registry struct {
	docs map[string]config.BackendDocument
}

// LoadDir scans a directory for *.json, *.yaml/*.yml and *.toml documents.
// The file stem is the document name; a duplicate stem is an error.
func LoadDir(dir string) (*Registry, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	r := &Registry{docs: make(map[string]config.BackendDocument)}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !config.IsSupportedExt(filepath.Ext(name)) {
			continue
		}
		doc, err := config.LoadDocument(filepath.Join(abs, name))
		if err != nil {
			return nil, err
		}
		if prev, dup := r.docs[doc.Name]; dup {
			return nil, fmt.Errorf("duplicate config %q: %s and %s", doc.Name, filepath.Base(prev.Path), name)
		}
		r.docs[doc.Name] = doc
	}
	return r, nil
}

// New builds a registry from in-memory documents (tests, embedding).
func New(docs ...config.BackendDocument) *Registry {
	r := &Registry{docs: make(map[string]config.BackendDocument, len(docs))}
	for _, d := range docs {
		r.docs[d.Name] = d
	}
	return r
}

// Get returns a copy of the named document.
func (r *Registry) Get(name string) (config.BackendDocument, bool) {
	d, ok := r.docs[strings.TrimSpace(name)]
	if !ok {
		return config.BackendDocument{}, false
	}
	d.Fallbacks = append([]config.Variant(nil), d.Fallbacks...)
	return d, true
}

// Names lists document names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.docs))
	for k := range r.docs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

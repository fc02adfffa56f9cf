// Package source provides backing-data sources for model fetch.
//
// Every source implements model.Source: it turns a URL into the raw bytes of
// a backing document. A [Mux] routes URLs to sources by scheme, so one model
// kind can mix documents served over HTTP, stored in MongoDB or kept on disk:
//
//	mux := source.NewMux()
//	mux.Handle("https", source.NewHTTP(source.HTTPOptions{Cache: c}))
//	mux.Handle("mongo", mongoSource)
//	kind := &model.Kind{URL: model.AttrURL("url"), Parse: model.ParseJSON, Source: mux}
package source

import (
	"context"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
)

// Func adapts a function to model.Source.
type Func func(ctx context.Context, url string) ([]byte, error)

// Fetch calls f(ctx, url).
func (f Func) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// Mux dispatches fetches by URL scheme. It is safe for concurrent use.
type Mux struct {
	mu      sync.RWMutex
	sources map[string]model.Source
}

// NewMux creates an empty mux.
func NewMux() *Mux {
	return &Mux{sources: make(map[string]model.Source)}
}

// Handle registers s for scheme, replacing any previous source.
func (m *Mux) Handle(scheme string, s model.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[strings.ToLower(scheme)] = s
}

// Schemes returns the registered schemes in sorted order.
func (m *Mux) Schemes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sources))
	for s := range m.sources {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Fetch routes rawURL to the source registered for its scheme.
func (m *Mux) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse url %q", rawURL)
	}
	m.mu.RLock()
	s, ok := m.sources[strings.ToLower(u.Scheme)]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "no source for scheme %q", u.Scheme)
	}
	return s.Fetch(ctx, rawURL)
}

// File reads file:// URLs from the local filesystem.
var File model.Source = Func(func(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "file" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "not a file url: %q", rawURL)
	}
	data, err := os.ReadFile(u.Path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "read %s", u.Path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read %s", u.Path)
	}
	return data, nil
})

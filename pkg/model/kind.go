package model

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/matzehuels/automation/pkg/errors"
)

// Source retrieves the raw backing data for a model.
// Implementations live in package source.
type Source interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// URLFunc derives a URL from a model's attribute snapshot. An empty result
// means the capability is not available for that model.
type URLFunc func(Attributes) string

// ParseFunc converts a raw fetch response into attributes to merge.
type ParseFunc func(raw []byte) (Attributes, error)

// Kind describes a family of models: default attributes plus the optional
// capabilities a composition root probes for.
type Kind struct {
	// Name identifies the kind in logs.
	Name string

	// Defaults are copied onto every new model before initial attributes.
	Defaults Attributes

	// URL yields the backing-data URL used by Fetch.
	URL URLFunc

	// ChannelURL yields a realtime channel URL (ws:// or wss://).
	ChannelURL URLFunc

	// Parse converts fetched data into attributes. When nil, fetched data
	// is not merged.
	Parse ParseFunc

	// Source performs the fetch. When nil, models of this kind are not
	// fetchable.
	Source Source
}

// New creates a model of kind k with its defaults applied silently.
func (k *Kind) New() *Model {
	m := New()
	m.kind = k
	if k != nil {
		for key, v := range k.Defaults {
			if key == KeyCID {
				continue
			}
			m.attrs[key] = v
		}
	}
	return m
}

// AttrURL returns a URLFunc that reads the URL from the string attribute key.
func AttrURL(key string) URLFunc {
	return func(a Attributes) string {
		s, _ := a[key].(string)
		return s
	}
}

// ParseJSON decodes raw as one JSON object.
func ParseJSON(raw []byte) (Attributes, error) {
	var attrs Attributes
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode JSON object")
	}
	if attrs == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "expected a JSON object, got null")
	}
	return attrs, nil
}

// FetchURL returns the backing-data URL, if the model is fetchable.
func (m *Model) FetchURL() (string, bool) {
	if m.kind == nil || m.kind.URL == nil || m.kind.Source == nil {
		return "", false
	}
	url := m.kind.URL(m.Attributes())
	return url, url != ""
}

// Fetchable reports whether Fetch can run for m.
func (m *Model) Fetchable() bool {
	_, ok := m.FetchURL()
	return ok
}

// Fetch retrieves the raw backing data. It does not modify the model, so it
// may run off the control thread as long as the attributes are not mutated
// concurrently; callers merge the result with [Model.ApplyFetched].
func (m *Model) Fetch(ctx context.Context) ([]byte, error) {
	url, ok := m.FetchURL()
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "model is not fetchable")
	}
	return m.kind.Source.Fetch(ctx, url)
}

// CanParse reports whether the model's kind exposes a parse capability.
func (m *Model) CanParse() bool {
	return m.kind != nil && m.kind.Parse != nil
}

// ApplyFetched parses raw with the kind's parse capability and merges the
// result as a single change batch, then triggers "sync". Without a parse
// capability the raw data is ignored and only "sync" fires.
func (m *Model) ApplyFetched(raw []byte) error {
	if m.CanParse() {
		attrs, err := m.kind.Parse(raw)
		if err != nil {
			return err
		}
		delete(attrs, KeyCID)
		if err := m.SetAll(attrs); err != nil {
			return err
		}
	}
	m.Trigger(EventSync)
	return nil
}

// ChannelURL returns the realtime channel URL when the kind exposes one and
// it uses the ws or wss scheme.
func (m *Model) ChannelURL() (string, bool) {
	if m.kind == nil || m.kind.ChannelURL == nil {
		return "", false
	}
	url := m.kind.ChannelURL(m.Attributes())
	if strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://") {
		return url, true
	}
	return "", false
}

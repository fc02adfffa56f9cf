// Package snapshot persists the children of a composition root.
//
// A [Snapshot] records the attributes of every mounted child in mount order.
// Capturing and restoring both run on the root's control thread:
//
//	snap, err := snapshot.Capture(ctx, root, "news", snapshot.DefaultTTL)
//	store.Set(ctx, snap)
//	...
//	snap, err = store.Get(ctx, "news")
//	n, err := snapshot.Restore(ctx, root, snap)
//
// Two backends implement [Store]: [FileStore] keeps one JSON file per
// snapshot and [CacheStore] keeps them in any [cache.Cache], Redis included.
package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/automation/pkg/cache"
	"github.com/matzehuels/automation/pkg/composite"
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
)

// DefaultTTL is how long a saved snapshot stays restorable.
const DefaultTTL = 7 * 24 * time.Hour

// Snapshot is the persisted form of a root's children.
type Snapshot struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind,omitempty"`
	Children  []model.Attributes `json:"children"`
	CreatedAt time.Time          `json:"created_at"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// IsExpired reports whether the snapshot outlived its TTL. A zero ExpiresAt
// never expires.
func (s *Snapshot) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Store is implemented by snapshot backends.
type Store interface {
	// Get returns the snapshot with id, or nil, nil when there is none or
	// it has expired.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// Set stores snap under snap.ID, replacing any previous one.
	Set(ctx context.Context, snap *Snapshot) error

	// Delete removes the snapshot with id. Missing ids are not an error.
	Delete(ctx context.Context, id string) error

	Close() error
}

// ValidateID rejects ids that cannot name a file or cache key.
func ValidateID(id string) error {
	if id == "" {
		return errors.New(errors.ErrCodeInvalidInput, "snapshot id cannot be empty")
	}
	for _, r := range id {
		ok := r == '-' || r == '_' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return errors.New(errors.ErrCodeInvalidInput, "snapshot id %q: only letters, digits, '-', '_' and '.' are allowed", id)
		}
	}
	if id == "." || id == ".." {
		return errors.New(errors.ErrCodeInvalidInput, "snapshot id %q is reserved", id)
	}
	return nil
}

// Capture records the attributes of every child of root, in mount order.
// The cid attribute is dropped since Restore assigns fresh ones.
func Capture(ctx context.Context, root *composite.Root, id string, ttl time.Duration) (*Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	now := time.Now()
	snap := &Snapshot{ID: id, CreatedAt: now, Children: []model.Attributes{}}
	if ttl > 0 {
		snap.ExpiresAt = now.Add(ttl)
	}
	err := root.Do(ctx, func() error {
		for _, m := range root.Container().Models() {
			attrs := m.Attributes()
			delete(attrs, model.KeyCID)
			snap.Children = append(snap.Children, attrs)
			if snap.Kind == "" && m.Kind() != nil {
				snap.Kind = m.Kind().Name
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Restore mounts every child of snap on root and returns how many were
// mounted. It stops at the first failing Add.
func Restore(ctx context.Context, root *composite.Root, snap *Snapshot) (int, error) {
	if snap == nil {
		return 0, nil
	}
	n := 0
	err := root.Do(ctx, func() error {
		for _, attrs := range snap.Children {
			if _, err := root.Add(attrs); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func encode(snap *Snapshot) ([]byte, error) {
	if err := ValidateID(snap.ID); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "marshal snapshot %s", snap.ID)
	}
	return data, nil
}

func decode(id string, data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse snapshot %s", id)
	}
	if snap.IsExpired() {
		return nil, nil
	}
	return &snap, nil
}

// CacheStore keeps snapshots in a cache backend under "snapshot:<id>".
type CacheStore struct {
	c cache.Cache
}

// NewCacheStore wraps c. The caller keeps ownership of c.
func NewCacheStore(c cache.Cache) *CacheStore {
	return &CacheStore{c: c}
}

func (s *CacheStore) key(id string) string { return "snapshot:" + id }

func (s *CacheStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, ok, err := s.c.Get(ctx, s.key(id))
	if err != nil || !ok {
		return nil, err
	}
	return decode(id, data)
}

func (s *CacheStore) Set(ctx context.Context, snap *Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !snap.ExpiresAt.IsZero() {
		ttl = time.Until(snap.ExpiresAt)
		if ttl <= 0 {
			return s.c.Delete(ctx, s.key(snap.ID))
		}
	}
	return s.c.Set(ctx, s.key(snap.ID), data, ttl)
}

func (s *CacheStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	return s.c.Delete(ctx, s.key(id))
}

func (s *CacheStore) Close() error { return nil }

var _ Store = (*CacheStore)(nil)

package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/matzehuels/automation/pkg/errors"
)

// FileStore keeps one JSON file per snapshot in a directory.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore creates dir if needed. An empty dir defaults to
// ~/.config/automation/snapshots.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "get home dir")
		}
		dir = filepath.Join(home, ".config", "automation", "snapshots")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create snapshot dir %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the snapshot directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, err := os.ReadFile(s.path(id))
	s.mu.RUnlock()
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read snapshot %s", id)
	}
	snap, err := decode(id, data)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		_ = s.Delete(ctx, id)
	}
	return snap, nil
}

func (s *FileStore) Set(ctx context.Context, snap *Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path(snap.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write snapshot %s", snap.ID)
	}
	if err := os.Rename(tmp, s.path(snap.ID)); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeInternal, err, "write snapshot %s", snap.ID)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeInternal, err, "remove snapshot %s", id)
	}
	return nil
}

// List returns the ids of the stored snapshots, expired ones included.
func (s *FileStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read snapshot dir")
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, e.Name()[:len(e.Name())-len(".json")])
	}
	return ids, nil
}

func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)

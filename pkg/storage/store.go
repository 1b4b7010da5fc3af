package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// SnapshotStore persists serialized book snapshots keyed by pair.
type SnapshotStore interface {
	SaveSnapshot(pair string, data []byte) error
	LoadSnapshot(pair string) ([]byte, bool, error)
	Close() error
}

// PebbleStore keeps snapshots in a pebble database.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// keys: s:<pair>
func kSnapshot(pair string) []byte { return append([]byte("s:"), pair...) }

// SaveSnapshot durably stores the serialized book for a pair,
// replacing any previous snapshot.
func (s *PebbleStore) SaveSnapshot(pair string, data []byte) error {
	if err := s.db.Set(kSnapshot(pair), data, pebble.Sync); err != nil {
		return fmt.Errorf("save snapshot for %s: %w", pair, err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot for a pair. The boolean
// reports whether one existed.
func (s *PebbleStore) LoadSnapshot(pair string) ([]byte, bool, error) {
	val, closer, err := s.db.Get(kSnapshot(pair))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot for %s: %w", pair, err)
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

var _ SnapshotStore = (*PebbleStore)(nil)

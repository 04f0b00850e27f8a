package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cockroachdb/pebble"
)

var keyPrefix = []byte("session/")

// PebbleStore implements Store using PebbleDB. Values are JSON encoded
// sessions under "session/<id>".
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		MemTableSize:          16 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 8,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func sessionKey(id string) []byte {
	return append(append([]byte(nil), keyPrefix...), id...)
}

func encodeSession(s *Session) ([]byte, error) { return json.Marshal(s) }
func decodeSession(val []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *PebbleStore) Put(s *Session) error {
	b, err := encodeSession(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := p.db.Set(sessionKey(s.ID), b, pebble.Sync); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (p *PebbleStore) Get(id string) (*Session, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	v, closer, err := p.db.Get(sessionKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	defer closer.Close()

	s, err := decodeSession(v)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return s, nil
}

func (p *PebbleStore) Delete(id string) error {
	if _, err := p.Get(id); err != nil {
		return err
	}
	if err := p.db.Delete(sessionKey(id), pebble.Sync); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// each calls fn for every stored session in key order.
func (p *PebbleStore) each(fn func(key []byte, s *Session) error) error {
	upper := append(append([]byte(nil), keyPrefix[:len(keyPrefix)-1]...), keyPrefix[len(keyPrefix)-1]+1)
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: keyPrefix, UpperBound: upper})
	if err != nil {
		return err
	}
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		k := append([]byte(nil), it.Key()...)
		s, err := decodeSession(it.Value())
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		if err := fn(k, s); err != nil {
			return err
		}
	}
	return it.Error()
}

func (p *PebbleStore) Expire(before time.Time) (int, error) {
	var stale [][]byte
	err := p.each(func(k []byte, s *Session) error {
		if s.CreatedAt.Before(before) {
			stale = append(stale, k)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := p.db.NewBatch()
	defer wb.Close()
	for _, k := range stale {
		if err := wb.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := wb.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	return len(stale), nil
}

func (p *PebbleStore) Len() (int, error) {
	n := 0
	err := p.each(func([]byte, *Session) error {
		n++
		return nil
	})
	return n, err
}

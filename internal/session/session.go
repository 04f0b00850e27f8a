// =============================================================================
// Order Report Generator - Upload Sessions
// =============================================================================
//
// An upload session holds the normalized table of one uploaded export so the
// caller can pick dates and build reports without uploading again. Sessions
// are snapshots: created once, read many times, deleted explicitly or when
// they expire. Two sessions never share state.
//
// BACKENDS:
//   - PebbleStore: sessions persisted on disk, surviving restarts
//   - MemoryStore: process-local map, used in tests and single-shot runs
//
// =============================================================================

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/order-report/internal/platform"
	"github.com/ginjaninja78/order-report/internal/types"
)

// ErrNotFound is returned for an unknown or expired session id.
var ErrNotFound = errors.New("session not found")

// Session is one uploaded export after normalization.
type Session struct {
	ID         string       `json:"id"`
	Platform   platform.ID  `json:"platform"`
	SourceName string       `json:"source_name"`
	Sheet      string       `json:"sheet"`
	Table      *types.Table `json:"table"`
	Dates      []string     `json:"dates"`
	CreatedAt  time.Time    `json:"created_at"`
}

// New builds a session with a fresh id.
func New(p platform.ID, sourceName, sheet string, table *types.Table, dates []string) *Session {
	return &Session{
		ID:         uuid.NewString(),
		Platform:   p,
		SourceName: sourceName,
		Sheet:      sheet,
		Table:      table,
		Dates:      dates,
		CreatedAt:  time.Now().UTC(),
	}
}

// Store keeps sessions by id.
type Store interface {
	// Put stores a session, replacing any session with the same id.
	Put(s *Session) error

	// Get returns a session or ErrNotFound.
	Get(id string) (*Session, error)

	// Delete removes a session. Deleting an unknown id returns ErrNotFound.
	Delete(id string) error

	// Expire removes sessions created before the cutoff and returns how many
	// were removed.
	Expire(before time.Time) (int, error)

	// Len returns the number of stored sessions.
	Len() (int, error)

	Close() error
}

// Open returns the store of the named backend.
//
// PARAMETERS:
//   - backend: "pebble" or "memory".
//   - dir: The pebble data directory.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "pebble":
		return NewPebbleStore(dir)
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}

// validID reports whether id is a session id this package could have issued.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

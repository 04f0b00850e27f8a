// =============================================================================
// Order Report Generator - Task Tracker Store
// =============================================================================
//
// The tracker keeps every project, task and weekly log entry in one JSON
// file. Each operation loads the file, changes it and writes it back while
// holding the store mutex; the last write wins. A missing file is created
// with empty data on first access.
//
// IDS:
//   Projects are proj_001, proj_002, ... and tasks task_001, task_002, ...
//   A new id is one more than the highest number in use.
//
// =============================================================================

package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const dataVersion = 1

// Store is the file backed tracker.
type Store struct {
	path  string
	owner string
	log   logrus.FieldLogger
	now   func() time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore returns a store on the given file. owner is written into a newly
// created file.
func NewStore(path, owner string, opts ...Option) *Store {
	s := &Store{
		path:  path,
		owner: owner,
		log:   logrus.StandardLogger(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path returns the data file path.
func (s *Store) Path() string { return s.path }

// view loads the data under the lock.
func (s *Store) view(fn func(d *Data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.load()
	if err != nil {
		return err
	}
	return fn(d)
}

// update loads the data, applies fn and saves the result under the lock.
// Nothing is written when fn fails.
func (s *Store) update(fn func(d *Data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(d); err != nil {
		return err
	}
	return s.save(d)
}

func (s *Store) load() (*Data, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		d := s.defaultData()
		if err := s.save(d); err != nil {
			return nil, err
		}
		s.log.WithField("file", s.path).Info("created tracker data file")
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tracker data: %w", err)
	}

	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to parse tracker data: %w", err)
	}
	if d.Projects == nil {
		d.Projects = []*Project{}
	}
	if d.WeeklyLog == nil {
		d.WeeklyLog = []*WeekLog{}
	}
	return &d, nil
}

// save writes the data to a temporary file and renames it over the data file.
func (s *Store) save(d *Data) error {
	d.Meta.LastUpdated = s.timestamp()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("failed to encode tracker data: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create tracker directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tasks-*.json")
	if err != nil {
		return fmt.Errorf("failed to write tracker data: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write tracker data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write tracker data: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace tracker data: %w", err)
	}
	return nil
}

func (s *Store) defaultData() *Data {
	return &Data{
		Meta:      Meta{Owner: s.owner, LastUpdated: s.timestamp(), Version: dataVersion},
		Projects:  []*Project{},
		WeeklyLog: []*WeekLog{},
	}
}

// timestamp is the current local time in RFC 3339 with offset.
func (s *Store) timestamp() string {
	return s.now().Format(time.RFC3339)
}

func (s *Store) today() string {
	return s.now().Format(DayLayout)
}

// nextID returns "<prefix>_NNN" with one more than the highest number used
// by ids of that prefix. Ids that do not follow the pattern are ignored.
func nextID(prefix string, ids []string) string {
	highest := 0
	for _, id := range ids {
		head, num, ok := strings.Cut(id, "_")
		if !ok || head != prefix {
			continue
		}
		if n, err := strconv.Atoi(num); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s_%03d", prefix, highest+1)
}

func (d *Data) projectIDs() []string {
	ids := make([]string, 0, len(d.Projects))
	for _, p := range d.Projects {
		ids = append(ids, p.ID)
	}
	return ids
}

func (d *Data) taskIDs() []string {
	var ids []string
	for _, p := range d.Projects {
		for _, t := range p.Tasks {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// WeekStart returns the Monday of the week containing day.
func WeekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	y, m, dd := day.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, day.Location())
}

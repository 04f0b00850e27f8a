package tracker

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Patch is a partial JSON object sent by a client. Only the keys an
// operation lists are applied; a null value clears an optional field.
type Patch map[string]json.RawMessage

var (
	projectCreateKeys = []string{"name", "description", "color"}
	projectUpdateKeys = []string{"name", "description", "color", "sort_order"}
	taskKeys          = []string{
		"title", "description", "notes", "status", "priority", "progress",
		"completed_at", "estimated_completion", "estimated_restart",
		"cancelled_reason", "tags",
	}
)

// apply overlays the allowed keys of the patch onto target.
func (p Patch) apply(target any, allowed []string) error {
	if len(p) == 0 {
		return nil
	}
	raw, err := json.Marshal(target)
	if err != nil {
		return err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	for _, k := range allowed {
		if v, ok := p[k]; ok {
			fields[k] = v
		}
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(merged, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	return nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Data returns the whole tracker content.
func (s *Store) Data() (*Data, error) {
	var out *Data
	err := s.view(func(d *Data) error {
		out = d
		return nil
	})
	return out, err
}

// Summary counts tasks by status.
type Summary struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	InProgress     int `json:"in_progress"`
	Pending        int `json:"pending"`
	Cancelled      int `json:"cancelled"`
	Overdue        int `json:"overdue"`
	CompletionRate int `json:"completion_rate"`
}

// Summary returns the task counts. Overdue counts in-progress tasks whose
// estimated completion is before today. CompletionRate is the rounded
// percentage of completed tasks.
func (s *Store) Summary() (*Summary, error) {
	var sum Summary
	err := s.view(func(d *Data) error {
		today := s.today()
		for _, p := range d.Projects {
			for _, t := range p.Tasks {
				sum.Total++
				switch t.Status {
				case StatusCompleted:
					sum.Completed++
				case StatusInProgress:
					sum.InProgress++
					if t.Overdue(today) {
						sum.Overdue++
					}
				case StatusPending:
					sum.Pending++
				case StatusCancelled:
					sum.Cancelled++
				}
			}
		}
		if sum.Total > 0 {
			sum.CompletionRate = int(math.RoundToEven(float64(sum.Completed) / float64(sum.Total) * 100))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// =============================================================================
// PROJECT OPERATIONS
// =============================================================================

// CreateProject adds a project. Missing name, description and color take
// their defaults; the project goes last in sort order.
func (s *Store) CreateProject(patch Patch) (*Project, error) {
	var created *Project
	err := s.update(func(d *Data) error {
		now := s.timestamp()
		p := &Project{
			ID:          nextID("proj", d.projectIDs()),
			Name:        "新專案",
			Description: "",
			Color:       "#3B82F6",
			SortOrder:   len(d.Projects) + 1,
			CreatedAt:   now,
			UpdatedAt:   now,
			Tasks:       []*Task{},
		}
		if err := patch.apply(p, projectCreateKeys); err != nil {
			return err
		}
		d.Projects = append(d.Projects, p)
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("project", created.ID).Info("project created")
	return created, nil
}

// UpdateProject changes name, description, color and sort_order.
func (s *Store) UpdateProject(id string, patch Patch) (*Project, error) {
	var updated *Project
	err := s.update(func(d *Data) error {
		p := d.findProject(id)
		if p == nil {
			return fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		if err := patch.apply(p, projectUpdateKeys); err != nil {
			return err
		}
		p.UpdatedAt = s.timestamp()
		updated = p
		return nil
	})
	return updated, err
}

// DeleteProject removes a project with its tasks.
func (s *Store) DeleteProject(id string) error {
	err := s.update(func(d *Data) error {
		for i, p := range d.Projects {
			if p.ID == id {
				d.Projects = append(d.Projects[:i], d.Projects[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	})
	if err == nil {
		s.log.WithField("project", id).Info("project deleted")
	}
	return err
}

// =============================================================================
// TASK OPERATIONS
// =============================================================================

// CreateTask adds a task to a project.
func (s *Store) CreateTask(projectID string, patch Patch) (*Task, error) {
	var created *Task
	err := s.update(func(d *Data) error {
		p := d.findProject(projectID)
		if p == nil {
			return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
		}

		now := s.timestamp()
		t := &Task{
			ID:        nextID("task", d.taskIDs()),
			Title:     "新任務",
			Status:    StatusPending,
			Priority:  "medium",
			CreatedAt: now,
			UpdatedAt: now,
			Tags:      []string{},
		}
		if err := patch.apply(t, taskKeys); err != nil {
			return err
		}
		if t.Tags == nil {
			t.Tags = []string{}
		}

		p.Tasks = append(p.Tasks, t)
		p.UpdatedAt = now
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"project": projectID, "task": created.ID}).Info("task created")
	return created, nil
}

// UpdateTask applies a patch to a task and touches its project.
func (s *Store) UpdateTask(id string, patch Patch) (*Task, error) {
	var updated *Task
	err := s.update(func(d *Data) error {
		t, p := d.findTask(id)
		if t == nil {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		if err := patch.apply(t, taskKeys); err != nil {
			return err
		}
		now := s.timestamp()
		t.UpdatedAt = now
		p.UpdatedAt = now
		updated = t
		return nil
	})
	return updated, err
}

// DeleteTask removes a task from whichever project holds it.
func (s *Store) DeleteTask(id string) error {
	return s.update(func(d *Data) error {
		for _, p := range d.Projects {
			for i, t := range p.Tasks {
				if t.ID == id {
					p.Tasks = append(p.Tasks[:i], p.Tasks[i+1:]...)
					return nil
				}
			}
		}
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	})
}

// =============================================================================
// WEEKLY LOG
// =============================================================================

// AddLogEntry appends an entry to the current week's log, creating the week
// when needed.
func (s *Store) AddLogEntry(content string, taskID *string) (*LogEntry, error) {
	var entry *LogEntry
	err := s.update(func(d *Data) error {
		now := s.now()
		entry = &LogEntry{
			Date:    now.Format(DayLayout),
			Time:    now.Format("15:04"),
			Content: content,
			TaskID:  taskID,
		}

		start := WeekStart(now).Format(DayLayout)
		if w := d.week(start); w != nil {
			w.Entries = append(w.Entries, entry)
			return nil
		}
		d.WeeklyLog = append(d.WeeklyLog, &WeekLog{WeekStart: start, Entries: []*LogEntry{entry}})
		return nil
	})
	return entry, err
}

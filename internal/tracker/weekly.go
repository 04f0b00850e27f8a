package tracker

import (
	"fmt"
	"strings"
	"time"
)

// ReportItem is the common part of a task in the weekly report.
type ReportItem struct {
	ProjectName string `json:"project_name"`
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
	Priority    string `json:"priority"`
	Progress    int    `json:"progress"`
}

type CompletedItem struct {
	ReportItem
	CompletedAt *string `json:"completed_at"`
}

type InProgressItem struct {
	ReportItem
	EstimatedCompletion *string `json:"estimated_completion"`
	Overdue             bool    `json:"overdue"`
}

type PendingItem struct {
	ReportItem
	EstimatedRestart *string `json:"estimated_restart"`
}

type CancelledItem struct {
	ReportItem
	CancelledReason *string `json:"cancelled_reason"`
}

// WeeklyReport groups every task by status and carries the log entries of
// one week.
type WeeklyReport struct {
	WeekStart  string           `json:"week_start"`
	Completed  []CompletedItem  `json:"completed_tasks"`
	InProgress []InProgressItem `json:"in_progress_tasks"`
	Pending    []PendingItem    `json:"pending_tasks"`
	Cancelled  []CancelledItem  `json:"cancelled_tasks"`
	LogEntries []*LogEntry      `json:"log_entries"`
}

// ResolveWeek returns the Monday of the week holding day (YYYY-MM-DD).
// An empty day means the current week.
func (s *Store) ResolveWeek(day string) (string, error) {
	day = strings.TrimSpace(day)
	if day == "" {
		return WeekStart(s.now()).Format(DayLayout), nil
	}
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidWeek, day)
	}
	return WeekStart(t).Format(DayLayout), nil
}

// WeeklyReport builds the report of the week holding day; see ResolveWeek.
func (s *Store) WeeklyReport(day string) (*WeeklyReport, error) {
	week, err := s.ResolveWeek(day)
	if err != nil {
		return nil, err
	}

	rep := &WeeklyReport{
		WeekStart:  week,
		Completed:  []CompletedItem{},
		InProgress: []InProgressItem{},
		Pending:    []PendingItem{},
		Cancelled:  []CancelledItem{},
		LogEntries: []*LogEntry{},
	}

	err = s.view(func(d *Data) error {
		today := s.today()
		for _, p := range d.Projects {
			for _, t := range p.Tasks {
				item := ReportItem{
					ProjectName: p.Name,
					TaskID:      t.ID,
					Title:       t.Title,
					Description: t.Description,
					Notes:       t.Notes,
					Priority:    t.Priority,
					Progress:    t.Progress,
				}
				switch t.Status {
				case StatusCompleted:
					rep.Completed = append(rep.Completed, CompletedItem{item, t.CompletedAt})
				case StatusInProgress:
					rep.InProgress = append(rep.InProgress, InProgressItem{item, t.EstimatedCompletion, t.Overdue(today)})
				case StatusPending:
					rep.Pending = append(rep.Pending, PendingItem{item, t.EstimatedRestart})
				case StatusCancelled:
					rep.Cancelled = append(rep.Cancelled, CancelledItem{item, t.CancelledReason})
				}
			}
		}
		if w := d.week(week); w != nil && w.Entries != nil {
			rep.LogEntries = w.Entries
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

package tracker

import "errors"

// ErrNotFound is returned for an unknown project or task id.
var ErrNotFound = errors.New("not found")

// ErrInvalidField is returned when a patch value has the wrong JSON type.
var ErrInvalidField = errors.New("invalid field value")

// ErrInvalidWeek is returned for a week that is not a YYYY-MM-DD date.
var ErrInvalidWeek = errors.New("invalid week")

// Task statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// DayLayout is the layout of every calendar date in the data file.
const DayLayout = "2006-01-02"

// Data is the whole content of the tracker file.
type Data struct {
	Meta      Meta       `json:"meta"`
	Projects  []*Project `json:"projects"`
	WeeklyLog []*WeekLog `json:"weekly_log"`
}

type Meta struct {
	Owner       string `json:"owner"`
	LastUpdated string `json:"last_updated"`
	Version     int    `json:"version"`
}

type Project struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
	SortOrder   int     `json:"sort_order"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	Tasks       []*Task `json:"tasks"`
}

type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Progress    int    `json:"progress"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`

	// Optional dates are YYYY-MM-DD or null.
	CompletedAt         *string `json:"completed_at"`
	EstimatedCompletion *string `json:"estimated_completion"`
	EstimatedRestart    *string `json:"estimated_restart"`

	CancelledReason *string  `json:"cancelled_reason"`
	Tags            []string `json:"tags"`
}

// Overdue reports whether an in-progress task is past its estimated
// completion day.
func (t *Task) Overdue(today string) bool {
	return t.Status == StatusInProgress &&
		t.EstimatedCompletion != nil && *t.EstimatedCompletion != "" &&
		*t.EstimatedCompletion < today
}

// WeekLog holds the log entries of one week.
type WeekLog struct {
	WeekStart string      `json:"week_start"`
	Entries   []*LogEntry `json:"entries"`
}

type LogEntry struct {
	Date    string  `json:"date"`
	Time    string  `json:"time"`
	Content string  `json:"content"`
	TaskID  *string `json:"task_id"`
}

func (d *Data) findProject(id string) *Project {
	for _, p := range d.Projects {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (d *Data) findTask(id string) (*Task, *Project) {
	for _, p := range d.Projects {
		for _, t := range p.Tasks {
			if t.ID == id {
				return t, p
			}
		}
	}
	return nil, nil
}

func (d *Data) week(start string) *WeekLog {
	for _, w := range d.WeeklyLog {
		if w.WeekStart == start {
			return w
		}
	}
	return nil
}

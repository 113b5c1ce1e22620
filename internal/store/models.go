package store

import "time"

type Category struct {
	ID        string
	UserID    string
	Name      string
	Color     string // hex, e.g. #007aff
	Icon      string
	ParentID  *string // nil = top level
	SortOrder int
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsChildOf reports whether c sits directly under parentID (nil = top level).
func (c Category) IsChildOf(parentID *string) bool {
	if c.ParentID == nil || parentID == nil {
		return c.ParentID == nil && parentID == nil
	}
	return *c.ParentID == *parentID
}

type TimeEntry struct {
	ID         string
	UserID     string
	CategoryID string
	StartTime  time.Time
	EndTime    *time.Time // nil while running or paused
	ResumedAt  *time.Time // start of the current running segment
	Duration   float64    // seconds accumulated before ResumedAt
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Goal struct {
	ID          string
	UserID      string
	Content     string
	IsCompleted bool
	SortOrder   int
	GoalDate    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Timer snapshot states
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StatePaused  = "paused"
)

// TimerSnapshot is the persisted copy of one user's timer. Its id is the
// user id.
type TimerSnapshot struct {
	UserID          string
	EntryID         string
	CategoryID      string
	State           string
	RunStartedAt    *time.Time
	FrozenDuration  float64
	CurrentDuration float64 // display value at SavedAt, never used to restore
	SavedAt         time.Time
}

package store

import (
	"fmt"
	"time"
)

// LiveDuration is the entry's duration observed at now: the accumulated
// seconds plus the running segment when active. It never goes negative, so a
// clock that moved backwards contributes nothing.
func (e TimeEntry) LiveDuration(now time.Time) float64 {
	d := sanitizeSeconds(e.Duration)
	if e.IsActive && e.ResumedAt != nil {
		if seg := now.Sub(*e.ResumedAt).Seconds(); seg > 0 {
			d += seg
		}
	}
	return d
}

// Running reports whether the entry is the live, unpaused segment.
func (e TimeEntry) Running() bool {
	return e.IsActive && e.EndTime == nil
}

// Finalized reports whether the entry has been stopped.
func (e TimeEntry) Finalized() bool {
	return e.EndTime != nil
}

func (e TimeEntry) Record() Record {
	return Record{
		"id":               e.ID,
		"user_id":          e.UserID,
		"category_id":      e.CategoryID,
		"start_time":       formatTime(e.StartTime),
		"end_time":         optTime(e.EndTime),
		"resumed_at":       optTime(e.ResumedAt),
		"duration":         sanitizeSeconds(e.Duration),
		"is_active":        e.IsActive,
		"created_at":       formatTime(e.CreatedAt),
		"updated_at":       formatTime(e.UpdatedAt),
		schemaVersionField: schemas[TimeEntries].Version,
	}
}

func TimeEntryFromRecord(r Record) (TimeEntry, error) {
	e := TimeEntry{
		ID:         r.ID(),
		UserID:     r.UserID(),
		CategoryID: r.String("category_id"),
		Duration:   sanitizeSeconds(r.Float("duration")),
		IsActive:   r.Bool("is_active"),
	}
	if e.ID == "" || e.UserID == "" {
		return TimeEntry{}, fmt.Errorf("decode time entry: missing id or user_id")
	}
	var err error
	if e.StartTime, err = r.Time("start_time"); err != nil {
		return TimeEntry{}, fmt.Errorf("decode time entry %s: %w", e.ID, err)
	}
	if e.EndTime, err = r.OptTime("end_time"); err != nil {
		return TimeEntry{}, fmt.Errorf("decode time entry %s: %w", e.ID, err)
	}
	if e.ResumedAt, err = r.OptTime("resumed_at"); err != nil {
		return TimeEntry{}, fmt.Errorf("decode time entry %s: %w", e.ID, err)
	}
	if e.CreatedAt, err = r.Time("created_at"); err != nil {
		e.CreatedAt = e.StartTime
	}
	if e.UpdatedAt, err = r.Time("updated_at"); err != nil {
		e.UpdatedAt = e.CreatedAt
	}
	return e, nil
}

func DecodeTimeEntries(recs []Record) ([]TimeEntry, error) {
	out := make([]TimeEntry, 0, len(recs))
	for _, r := range recs {
		e, err := TimeEntryFromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

package store

import "fmt"

func (s TimerSnapshot) Record() Record {
	var entryID, categoryID *string
	if s.EntryID != "" {
		entryID = &s.EntryID
	}
	if s.CategoryID != "" {
		categoryID = &s.CategoryID
	}
	return Record{
		"id":               s.UserID,
		"user_id":          s.UserID,
		"entry_id":         optString(entryID),
		"category_id":      optString(categoryID),
		"state":            s.State,
		"run_started_at":   optTime(s.RunStartedAt),
		"frozen_duration":  sanitizeSeconds(s.FrozenDuration),
		"current_duration": sanitizeSeconds(s.CurrentDuration),
		"saved_at":         formatTime(s.SavedAt),
		schemaVersionField: schemas[TimerSnapshots].Version,
	}
}

func TimerSnapshotFromRecord(r Record) (TimerSnapshot, error) {
	s := TimerSnapshot{
		UserID:          r.UserID(),
		EntryID:         r.String("entry_id"),
		CategoryID:      r.String("category_id"),
		State:           r.String("state"),
		FrozenDuration:  sanitizeSeconds(r.Float("frozen_duration")),
		CurrentDuration: sanitizeSeconds(r.Float("current_duration")),
	}
	if s.UserID == "" {
		return TimerSnapshot{}, fmt.Errorf("decode timer snapshot: missing user_id")
	}
	switch s.State {
	case StateIdle, StateRunning, StatePaused:
	default:
		return TimerSnapshot{}, fmt.Errorf("decode timer snapshot: unknown state %q", s.State)
	}
	var err error
	if s.RunStartedAt, err = r.OptTime("run_started_at"); err != nil {
		return TimerSnapshot{}, fmt.Errorf("decode timer snapshot: %w", err)
	}
	if s.SavedAt, err = r.Time("saved_at"); err != nil {
		return TimerSnapshot{}, fmt.Errorf("decode timer snapshot: %w", err)
	}
	return s, nil
}

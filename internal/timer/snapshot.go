package timer

import (
	"context"
	"time"

	"github.com/sadopc/itrack/internal/errs"
	log "github.com/sadopc/itrack/internal/log"
	"github.com/sadopc/itrack/internal/store"
)

// snapshotLocked writes the timer's persisted copy as of now.
func (t *Timer) snapshotLocked(ctx context.Context, now time.Time) {
	snap := store.TimerSnapshot{
		UserID:  t.userID,
		State:   t.state.String(),
		SavedAt: now,
	}
	if t.entry != nil {
		snap.EntryID = t.entry.ID
		snap.CategoryID = t.entry.CategoryID
		snap.FrozenDuration = t.entry.Duration
		snap.CurrentDuration = t.entry.LiveDuration(now)
		if t.state == Running && t.entry.ResumedAt != nil {
			started := *t.entry.ResumedAt
			snap.RunStartedAt = &started
		}
	}
	rec := snap.Record()
	if t.entryPendingLocked() {
		// Held back until the entry it describes is stored.
		t.pending[key(store.TimerSnapshots, rec.ID())] = pendingWrite{collection: store.TimerSnapshots, rec: rec}
		return
	}
	t.writeLocked(ctx, store.TimerSnapshots, rec)
}

func (t *Timer) startTickerLocked() {
	t.gen++
	t.stopCh = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(t.gen, t.interval, t.stopCh, t.done)
}

// cancelTickerLocked stops the running ticker, if any, and returns the
// channel closed when its goroutine exits. Callers wait on it only after
// releasing the mutex, since a tick in flight needs the mutex to finish.
func (t *Timer) cancelTickerLocked() chan struct{} {
	if t.stopCh == nil {
		return nil
	}
	t.gen++
	close(t.stopCh)
	done := t.done
	t.stopCh = nil
	t.done = nil
	return done
}

func (t *Timer) run(gen uint64, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.tick(gen)
		}
	}
}

func (t *Timer) tick(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || t.state != Running {
		return
	}
	ctx := context.Background()
	t.retryPendingLocked(ctx)
	t.snapshotLocked(ctx, t.now())
}

// Restore rebuilds the timer from the user's persisted snapshot. A running
// snapshot resumes with duration frozen + (now - run start), so time spent
// while the process was gone is counted; the saved display value is ignored.
// Without a snapshot the latest unfinished entry is used. A snapshot naming
// an entry that no longer exists, or one already stopped, leaves the timer
// idle. Any other unfinished entry is finalized.
func (t *Timer) Restore(ctx context.Context) error {
	recs, err := t.backend.Get(ctx, store.TimerSnapshots, t.userID)
	if err != nil {
		return errs.Persistence("restore timer", err)
	}
	entryRecs, err := t.backend.Get(ctx, store.TimeEntries, t.userID)
	if err != nil {
		return errs.Persistence("restore timer", err)
	}
	entries, err := store.DecodeTimeEntries(entryRecs)
	if err != nil {
		return errs.Persistence("restore timer", err)
	}

	var snap *store.TimerSnapshot
	if len(recs) > 0 {
		s, err := store.TimerSnapshotFromRecord(recs[0])
		if err != nil {
			t.logger.WarnContext(ctx, "Ignoring unreadable timer snapshot",
				log.NewFields().WithOperation(log.OpRestore).WithUser(t.userID).WithError(err).ToSlice()...)
		} else {
			snap = &s
		}
	}

	t.mu.Lock()
	done := t.cancelTickerLocked()
	t.entry = nil
	t.state = Idle

	var hint *time.Time
	switch {
	case snap != nil:
		t.restoreSnapshotLocked(ctx, *snap, entries)
		saved := snap.SavedAt
		hint = &saved
	default:
		t.restoreUnfinishedLocked(entries)
	}
	closed := t.closeStrayLocked(ctx, entries, hint)
	if t.state == Running {
		t.startTickerLocked()
	}

	fields := log.NewFields().WithOperation(log.OpRestore).WithUser(t.userID)
	fields[log.FieldState] = t.state.String()
	fields[log.FieldCount] = closed
	if t.entry != nil {
		fields[log.FieldEntryID] = t.entry.ID
		fields[log.FieldDuration] = t.entry.LiveDuration(t.now())
	}
	t.logger.InfoContext(ctx, "Restored timer", fields.ToSlice()...)
	t.mu.Unlock()

	wait(done)
	return nil
}

func (t *Timer) restoreSnapshotLocked(ctx context.Context, snap store.TimerSnapshot, entries []store.TimeEntry) {
	st := parseState(snap.State)
	if st == Idle {
		return
	}
	e, ok := findEntry(entries, snap.EntryID)
	if !ok || e.Finalized() {
		t.logger.WarnContext(ctx, "Timer snapshot refers to a missing or stopped entry",
			log.NewFields().WithOperation(log.OpRestore).WithUser(t.userID).WithRecord(store.TimeEntries, snap.EntryID).ToSlice()...)
		t.snapshotLocked(ctx, t.now())
		return
	}

	e.Duration = snap.FrozenDuration
	if st == Running && snap.RunStartedAt != nil {
		started := *snap.RunStartedAt
		e.ResumedAt = &started
		e.IsActive = true
	} else {
		// Running without a run start cannot be resumed safely; keep what
		// was frozen.
		st = Paused
		e.ResumedAt = nil
		e.IsActive = false
	}
	t.entry = &e
	t.state = st
}

func (t *Timer) restoreUnfinishedLocked(entries []store.TimeEntry) {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Finalized() {
			continue
		}
		t.entry = &e
		if e.IsActive && e.ResumedAt != nil {
			t.state = Running
		} else {
			t.entry.IsActive = false
			t.entry.ResumedAt = nil
			t.state = Paused
		}
		return
	}
}

func findEntry(entries []store.TimeEntry, id string) (store.TimeEntry, bool) {
	if id == "" {
		return store.TimeEntry{}, false
	}
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return store.TimeEntry{}, false
}

// Package timer implements the per-user timer state machine. The elapsed
// value is always recomputed from (run start, frozen duration, now); the
// background ticker only persists a snapshot of it.
package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/itrack/internal/errs"
	log "github.com/sadopc/itrack/internal/log"
	"github.com/sadopc/itrack/internal/store"
)

// State is the timer state.
type State int

const (
	Idle State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return store.StateRunning
	case Paused:
		return store.StatePaused
	default:
		return store.StateIdle
	}
}

func parseState(s string) State {
	switch s {
	case store.StateRunning:
		return Running
	case store.StatePaused:
		return Paused
	default:
		return Idle
	}
}

// DefaultInterval is how often a running timer persists its snapshot.
const DefaultInterval = time.Second

// CategoryLookup resolves an active category owned by a user.
type CategoryLookup interface {
	Get(ctx context.Context, userID, id string) (store.Category, error)
}

type Config struct {
	UserID     string
	Backend    store.Backend
	Categories CategoryLookup
	Clock      func() time.Time
	Interval   time.Duration
	Logger     *log.Logger
}

type pendingWrite struct {
	collection string
	rec        store.Record
}

// Timer is one user's timer. All methods are safe for concurrent use.
type Timer struct {
	userID   string
	backend  store.Backend
	cats     CategoryLookup
	now      func() time.Time
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	state   State
	entry   *store.TimeEntry // Duration is frozen seconds, ResumedAt the run start
	pending map[string]pendingWrite

	// ticker bookkeeping; gen invalidates ticks that raced a cancel
	gen    uint64
	stopCh chan struct{}
	done   chan struct{}
}

func New(cfg Config) *Timer {
	t := &Timer{
		userID:   cfg.UserID,
		backend:  cfg.Backend,
		cats:     cfg.Categories,
		now:      cfg.Clock,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		pending:  make(map[string]pendingWrite),
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.interval <= 0 {
		t.interval = DefaultInterval
	}
	if t.logger == nil {
		t.logger = log.Discard()
	}
	t.logger = t.logger.WithComponent(log.ComponentTimer)
	return t
}

func (t *Timer) UserID() string { return t.userID }

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Elapsed is the current entry's duration observed now; zero when idle.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entry == nil {
		return 0
	}
	return seconds(t.entry.LiveDuration(t.now()))
}

// Current returns a copy of the current entry.
func (t *Timer) Current() (store.TimeEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entry == nil {
		return store.TimeEntry{}, false
	}
	return *t.entry, true
}

// Start begins timing categoryID. A current entry, running or paused, is
// finalized first.
func (t *Timer) Start(ctx context.Context, categoryID string) (store.TimeEntry, error) {
	if err := t.checkCategory(ctx, categoryID); err != nil {
		return store.TimeEntry{}, err
	}

	t.mu.Lock()
	var old chan struct{}
	if t.state != Idle {
		_, old = t.finalizeLocked(ctx)
	}
	e := t.beginLocked(ctx, categoryID, log.OpStart)
	t.mu.Unlock()

	wait(old)
	return e, nil
}

// SwitchCategory finalizes the current entry and starts a new one on
// categoryID. It is an error while idle.
func (t *Timer) SwitchCategory(ctx context.Context, categoryID string) (store.TimeEntry, error) {
	if st := t.State(); st == Idle {
		return store.TimeEntry{}, errs.InvalidState("switch category", st.String())
	}
	if err := t.checkCategory(ctx, categoryID); err != nil {
		return store.TimeEntry{}, err
	}

	t.mu.Lock()
	if t.state == Idle {
		st := t.state
		t.mu.Unlock()
		return store.TimeEntry{}, errs.InvalidState("switch category", st.String())
	}
	_, old := t.finalizeLocked(ctx)
	e := t.beginLocked(ctx, categoryID, log.OpSwitch)
	t.mu.Unlock()

	wait(old)
	return e, nil
}

// Pause freezes the accumulated duration.
func (t *Timer) Pause(ctx context.Context) (store.TimeEntry, error) {
	t.mu.Lock()
	if t.state != Running {
		st := t.state
		t.mu.Unlock()
		return store.TimeEntry{}, errs.InvalidState("pause", st.String())
	}
	t.retryPendingLocked(ctx)

	done := t.cancelTickerLocked()
	now := t.now()
	t.entry.Duration = t.entry.LiveDuration(now)
	t.entry.ResumedAt = nil
	t.entry.IsActive = false
	t.entry.UpdatedAt = now
	t.state = Paused
	t.writeLocked(ctx, store.TimeEntries, t.entry.Record())
	t.snapshotLocked(ctx, now)
	e := *t.entry
	t.logTransition(ctx, log.OpPause, e)
	t.mu.Unlock()

	// A tick blocked on the mutex sees the new generation and returns.
	wait(done)
	return e, nil
}

// Resume rebases the run start to now; time accrues on top of the frozen
// duration.
func (t *Timer) Resume(ctx context.Context) (store.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Paused {
		return store.TimeEntry{}, errs.InvalidState("resume", t.state.String())
	}
	t.retryPendingLocked(ctx)

	now := t.now()
	t.entry.ResumedAt = &now
	t.entry.IsActive = true
	t.entry.UpdatedAt = now
	t.state = Running
	t.writeLocked(ctx, store.TimeEntries, t.entry.Record())
	t.snapshotLocked(ctx, now)
	t.startTickerLocked()
	e := *t.entry
	t.logTransition(ctx, log.OpResume, e)
	return e, nil
}

// Stop finalizes the current entry and returns it. Stopping an idle timer
// is a no-op that returns (nil, nil).
func (t *Timer) Stop(ctx context.Context) (*store.TimeEntry, error) {
	t.mu.Lock()
	if t.state == Idle {
		t.mu.Unlock()
		return nil, nil
	}
	t.retryPendingLocked(ctx)
	e, done := t.finalizeLocked(ctx)
	t.snapshotLocked(ctx, t.now())
	t.mu.Unlock()

	wait(done)
	return &e, nil
}

// Flush retries every pending write and reports what still fails.
func (t *Timer) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retryPendingLocked(ctx)
}

// Pending is the number of writes waiting for a retry.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// DropCategories resets the timer to idle when its current entry belongs to
// one of ids. Pending writes for that entry are discarded.
func (t *Timer) DropCategories(ctx context.Context, ids []string) {
	t.mu.Lock()
	if t.entry == nil || !contains(ids, t.entry.CategoryID) {
		t.mu.Unlock()
		return
	}
	done := t.cancelTickerLocked()
	delete(t.pending, key(store.TimeEntries, t.entry.ID))
	t.logger.InfoContext(ctx, "Dropped timer for deleted category",
		log.NewFields().WithUser(t.userID).WithRecord(store.TimeEntries, t.entry.ID).ToSlice()...)
	t.entry = nil
	t.state = Idle
	t.snapshotLocked(ctx, t.now())
	t.mu.Unlock()

	wait(done)
}

// Close stops the snapshot ticker without changing state.
func (t *Timer) Close() {
	t.mu.Lock()
	done := t.cancelTickerLocked()
	t.mu.Unlock()
	wait(done)
}

func (t *Timer) checkCategory(ctx context.Context, categoryID string) error {
	if t.cats == nil {
		return nil
	}
	if _, err := t.cats.Get(ctx, t.userID, categoryID); err != nil {
		return err
	}
	return nil
}

func (t *Timer) beginLocked(ctx context.Context, categoryID, op string) store.TimeEntry {
	t.retryPendingLocked(ctx)
	t.closeStoredStrayLocked(ctx)
	now := t.now()
	t.entry = &store.TimeEntry{
		ID:         uuid.NewString(),
		UserID:     t.userID,
		CategoryID: categoryID,
		StartTime:  now,
		ResumedAt:  &now,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	t.state = Running
	t.writeLocked(ctx, store.TimeEntries, t.entry.Record())
	t.snapshotLocked(ctx, now)
	t.startTickerLocked()
	e := *t.entry
	t.logTransition(ctx, op, e)
	return e
}

// finalizeLocked ends the current entry and leaves the timer idle. It
// returns the finalized entry and the old ticker's done channel, which the
// caller waits on after unlocking.
func (t *Timer) finalizeLocked(ctx context.Context) (store.TimeEntry, chan struct{}) {
	done := t.cancelTickerLocked()
	now := t.now()
	t.entry.Duration = t.entry.LiveDuration(now)
	t.entry.EndTime = &now
	t.entry.ResumedAt = nil
	t.entry.IsActive = false
	t.entry.UpdatedAt = now
	t.writeLocked(ctx, store.TimeEntries, t.entry.Record())
	e := *t.entry
	t.entry = nil
	t.state = Idle
	t.logTransition(ctx, log.OpStop, e)
	return e, done
}

func (t *Timer) logTransition(ctx context.Context, op string, e store.TimeEntry) {
	fields := log.NewFields().WithOperation(op).WithUser(t.userID).WithRecord(store.TimeEntries, e.ID)
	fields[log.FieldCategoryID] = e.CategoryID
	fields[log.FieldState] = t.state.String()
	fields[log.FieldDuration] = e.Duration
	t.logger.DebugContext(ctx, "Timer transition", fields.ToSlice()...)
}

// writeLocked persists rec. A failure is logged and kept for retry; it is
// never returned to the caller of a transition.
func (t *Timer) writeLocked(ctx context.Context, collection string, rec store.Record) {
	k := key(collection, rec.ID())
	if err := t.backend.Put(ctx, collection, rec); err != nil {
		t.pending[k] = pendingWrite{collection: collection, rec: rec}
		fields := log.NewFields().WithUser(t.userID).WithRecord(collection, rec.ID()).WithError(err)
		fields[log.FieldPending] = len(t.pending)
		t.logger.WarnContext(ctx, "Failed to persist timer state", fields.ToSlice()...)
		return
	}
	delete(t.pending, k)
}

func (t *Timer) retryPendingLocked(ctx context.Context) error {
	if len(t.pending) == 0 {
		return nil
	}
	var failed []error
	// Entries first so a snapshot never lands before the entry it names.
	for _, collection := range []string{store.TimeEntries, store.TimerSnapshots} {
		if collection == store.TimerSnapshots && t.entryPendingLocked() {
			break
		}
		for k, w := range t.pending {
			if w.collection != collection {
				continue
			}
			if err := t.backend.Put(ctx, w.collection, w.rec); err != nil {
				failed = append(failed, err)
				continue
			}
			delete(t.pending, k)
		}
	}
	if len(failed) > 0 {
		return errs.Persistence("flush timer state", errors.Join(failed...))
	}
	return nil
}

// entryPendingLocked reports whether a time entry write is waiting for a
// retry.
func (t *Timer) entryPendingLocked() bool {
	for _, w := range t.pending {
		if w.collection == store.TimeEntries {
			return true
		}
	}
	return false
}

// closeStoredStrayLocked finalizes unfinished entries left in the store by
// an earlier process, so starting never leaves two active entries.
func (t *Timer) closeStoredStrayLocked(ctx context.Context) {
	recs, err := t.backend.Get(ctx, store.TimeEntries, t.userID)
	if err == nil {
		var entries []store.TimeEntry
		if entries, err = store.DecodeTimeEntries(recs); err == nil {
			t.closeStrayLocked(ctx, entries, nil)
			return
		}
	}
	t.logger.WarnContext(ctx, "Failed to check for unfinished entries",
		log.NewFields().WithUser(t.userID).WithError(err).ToSlice()...)
}

// closeStrayLocked finalizes every unfinished entry other than the current
// one. A stray ends at its last update, or at hint when that is later, but
// never after the next entry started or after now. Entries with a pending
// write are left to the retry.
func (t *Timer) closeStrayLocked(ctx context.Context, entries []store.TimeEntry, hint *time.Time) int {
	now := t.now()
	closed := 0
	for _, e := range entries {
		if e.Finalized() || (t.entry != nil && e.ID == t.entry.ID) {
			continue
		}
		if _, ok := t.pending[key(store.TimeEntries, e.ID)]; ok {
			continue
		}

		end := e.UpdatedAt
		if hint != nil && hint.After(end) {
			end = *hint
		}
		for _, next := range entries {
			if next.ID != e.ID && next.StartTime.After(e.StartTime) && next.StartTime.Before(end) {
				end = next.StartTime
			}
		}
		if end.After(now) {
			end = now
		}
		if end.Before(e.StartTime) {
			end = e.StartTime
		}

		e.Duration = e.LiveDuration(end)
		e.EndTime = &end
		e.ResumedAt = nil
		e.IsActive = false
		e.UpdatedAt = now
		t.writeLocked(ctx, store.TimeEntries, e.Record())
		closed++

		fields := log.NewFields().WithUser(t.userID).WithRecord(store.TimeEntries, e.ID)
		fields[log.FieldDuration] = e.Duration
		t.logger.WarnContext(ctx, "Closed unfinished time entry", fields.ToSlice()...)
	}
	return closed
}

func key(collection, id string) string {
	return collection + "/" + id
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func wait(done chan struct{}) {
	if done != nil {
		<-done
	}
}

package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends returns every Backend implementation for shared behaviour tests.
func backends(t *testing.T) map[string]Backend {
	t.Helper()
	return map[string]Backend{
		"sqlite": newTestStore(t),
		"map":    NewMapBackend(),
	}
}

var t0 = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func sampleCategory(id, user string, parent *string) Category {
	return Category{
		ID: id, UserID: user, Name: "Work " + id, Color: "#007aff", Icon: "briefcase.fill",
		ParentID: parent, SortOrder: 0, IsActive: true, CreatedAt: t0, UpdatedAt: t0,
	}
}

func sampleEntry(id, user, cat string) TimeEntry {
	end := t0.Add(90 * time.Second)
	return TimeEntry{
		ID: id, UserID: user, CategoryID: cat, StartTime: t0, EndTime: &end,
		Duration: 90, IsActive: false, CreatedAt: t0, UpdatedAt: end,
	}
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	version, err := s.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	if version != 1 {
		t.Fatalf("expected schema version 1, got %d", version)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "itrack.db")
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.Put(ctx, Categories, sampleCategory("a", "u1", nil).Record()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen: data survives and migrations are not re-applied
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	recs, err := s2.Get(ctx, Categories, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 category after reopen, got %d", len(recs))
	}
}

func TestDefaultDBPath(t *testing.T) {
	path, err := DefaultDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "itrack.db" {
		t.Fatalf("unexpected path %q", path)
	}
}

func TestPragmasConfigured(t *testing.T) {
	s := newTestStore(t)
	var fk int
	s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if fk != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fk)
	}
}

func TestMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

// ============================================================
// Backend contract
// ============================================================

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	parent := "a"
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleCategory("b", "u1", &parent)
			if err := b.Put(ctx, Categories, want.Record()); err != nil {
				t.Fatal(err)
			}
			recs, err := b.Get(ctx, Categories, "u1")
			if err != nil {
				t.Fatal(err)
			}
			if len(recs) != 1 {
				t.Fatalf("expected 1 record, got %d", len(recs))
			}
			got, err := CategoryFromRecord(recs[0])
			if err != nil {
				t.Fatal(err)
			}
			if got.Name != want.Name || got.Color != want.Color || !got.IsActive {
				t.Fatalf("unexpected category: %+v", got)
			}
			if got.ParentID == nil || *got.ParentID != "a" {
				t.Fatalf("parent lost: %+v", got.ParentID)
			}
			if !got.CreatedAt.Equal(t0) {
				t.Fatalf("created_at: got %v", got.CreatedAt)
			}
		})
	}
}

func TestPutReplacesWholeRecord(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := sampleCategory("a", "u1", nil)
			b.Put(ctx, Categories, c.Record())
			c.Name = "Renamed"
			c.IsActive = false
			if err := b.Put(ctx, Categories, c.Record()); err != nil {
				t.Fatal(err)
			}
			recs, _ := b.Get(ctx, Categories, "u1")
			if len(recs) != 1 {
				t.Fatalf("upsert should not duplicate, got %d", len(recs))
			}
			got, _ := CategoryFromRecord(recs[0])
			if got.Name != "Renamed" || got.IsActive {
				t.Fatalf("update not applied: %+v", got)
			}
		})
	}
}

func TestGetFiltersByUserInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"z", "a", "m"} {
				b.Put(ctx, Categories, sampleCategory(id, "u1", nil).Record())
			}
			b.Put(ctx, Categories, sampleCategory("other", "u2", nil).Record())
			// Updating an existing record keeps its position.
			b.Put(ctx, Categories, sampleCategory("z", "u1", nil).Record())

			recs, err := b.Get(ctx, Categories, "u1")
			if err != nil {
				t.Fatal(err)
			}
			var ids []string
			for _, r := range recs {
				ids = append(ids, r.ID())
			}
			if len(ids) != 3 || ids[0] != "z" || ids[1] != "a" || ids[2] != "m" {
				t.Fatalf("expected [z a m], got %v", ids)
			}
		})
	}
}

func TestGetEmpty(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			recs, err := b.Get(ctx, TimeEntries, "nobody")
			if err != nil {
				t.Fatal(err)
			}
			if recs != nil {
				t.Fatalf("expected nil slice, got %d items", len(recs))
			}
		})
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b.Put(ctx, TimeEntries, sampleEntry("e1", "u1", "a").Record())
			b.Put(ctx, TimeEntries, sampleEntry("e2", "u1", "a").Record())
			if err := b.Delete(ctx, TimeEntries, "e1"); err != nil {
				t.Fatal(err)
			}
			if err := b.Delete(ctx, TimeEntries, "missing"); err != nil {
				t.Fatalf("deleting unknown id should succeed: %v", err)
			}
			recs, _ := b.Get(ctx, TimeEntries, "u1")
			if len(recs) != 1 || recs[0].ID() != "e2" {
				t.Fatalf("expected only e2, got %v", recs)
			}
		})
	}
}

func TestUnknownCollection(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := b.Get(ctx, "projects; DROP TABLE categories", "u1"); err == nil {
				t.Fatal("expected error for unknown collection")
			}
			if err := b.Put(ctx, "projects", Record{"id": "x"}); err == nil {
				t.Fatal("expected error for unknown collection")
			}
		})
	}
}

func TestPutRejectsMalformedRecord(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec := sampleCategory("a", "u1", nil).Record()
			rec["surprise"] = "x"
			if err := b.Put(ctx, Categories, rec); err == nil {
				t.Fatal("expected error for unknown field")
			}
			rec = sampleCategory("a", "u1", nil).Record()
			delete(rec, "name")
			if err := b.Put(ctx, Categories, rec); err == nil {
				t.Fatal("expected error for missing required field")
			}
			rec = sampleCategory("a", "u1", nil).Record()
			rec["is_active"] = "yes"
			if err := b.Put(ctx, Categories, rec); err == nil {
				t.Fatal("expected error for wrongly typed field")
			}
		})
	}
}

func TestMapBackendIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	m := NewMapBackend()
	rec := sampleCategory("a", "u1", nil).Record()
	m.Put(ctx, Categories, rec)
	rec["name"] = "mutated after put"

	recs, _ := m.Get(ctx, Categories, "u1")
	if recs[0].String("name") == "mutated after put" {
		t.Fatal("backend shares the caller's map")
	}
	recs[0]["name"] = "mutated after get"
	again, _ := m.Get(ctx, Categories, "u1")
	if again[0].String("name") == "mutated after get" {
		t.Fatal("backend returned its internal map")
	}
	if m.Len(Categories) != 1 {
		t.Fatalf("expected 1 record, got %d", m.Len(Categories))
	}
}

// ============================================================
// Entities
// ============================================================

func TestTimeEntryRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			resumed := t0.Add(time.Minute)
			running := TimeEntry{
				ID: "e1", UserID: "u1", CategoryID: "a", StartTime: t0, ResumedAt: &resumed,
				Duration: 12.5, IsActive: true, CreatedAt: t0, UpdatedAt: resumed,
			}
			if err := b.Put(ctx, TimeEntries, running.Record()); err != nil {
				t.Fatal(err)
			}
			recs, _ := b.Get(ctx, TimeEntries, "u1")
			got, err := TimeEntryFromRecord(recs[0])
			if err != nil {
				t.Fatal(err)
			}
			if got.EndTime != nil {
				t.Fatal("end time should be nil while running")
			}
			if got.ResumedAt == nil || !got.ResumedAt.Equal(resumed) {
				t.Fatalf("resumed_at lost: %v", got.ResumedAt)
			}
			if got.Duration != 12.5 || !got.IsActive {
				t.Fatalf("unexpected entry: %+v", got)
			}
		})
	}
}

func TestGoalRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	done := t0.Add(time.Hour)
	g := Goal{ID: "g1", UserID: "u1", Content: "Ship it", IsCompleted: true, SortOrder: 2,
		GoalDate: t0, CreatedAt: t0, UpdatedAt: done, CompletedAt: &done}
	if err := s.Put(ctx, Goals, g.Record()); err != nil {
		t.Fatal(err)
	}
	recs, _ := s.Get(ctx, Goals, "u1")
	got, err := GoalFromRecord(recs[0])
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "Ship it" || !got.IsCompleted || got.SortOrder != 2 {
		t.Fatalf("unexpected goal: %+v", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Fatalf("completed_at lost: %v", got.CompletedAt)
	}
}

func TestTimerSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	snap := TimerSnapshot{UserID: "u1", EntryID: "e1", CategoryID: "a", State: StateRunning,
		RunStartedAt: &t0, FrozenDuration: 30, CurrentDuration: 45, SavedAt: t0.Add(15 * time.Second)}
	if err := s.Put(ctx, TimerSnapshots, snap.Record()); err != nil {
		t.Fatal(err)
	}
	idle := TimerSnapshot{UserID: "u1", State: StateIdle, SavedAt: t0.Add(time.Minute)}
	if err := s.Put(ctx, TimerSnapshots, idle.Record()); err != nil {
		t.Fatal(err)
	}
	recs, _ := s.Get(ctx, TimerSnapshots, "u1")
	if len(recs) != 1 {
		t.Fatalf("snapshot is keyed by user, got %d records", len(recs))
	}
	got, err := TimerSnapshotFromRecord(recs[0])
	if err != nil {
		t.Fatal(err)
	}
	if got.State != StateIdle || got.EntryID != "" || got.RunStartedAt != nil {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestSnapshotRejectsUnknownState(t *testing.T) {
	rec := TimerSnapshot{UserID: "u1", State: "sleeping", SavedAt: t0}.Record()
	if _, err := TimerSnapshotFromRecord(rec); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestDecodeToleratesMissingOptionalFields(t *testing.T) {
	rec := Record{
		"id": "a", "user_id": "u1", "name": "Old", "color": "#fff", "icon": "",
		"sort_order": float64(3), "is_active": true, "created_at": t0.Format(time.RFC3339),
	}
	c, err := CategoryFromRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	if c.SortOrder != 3 || c.ParentID != nil || !c.UpdatedAt.Equal(t0) {
		t.Fatalf("unexpected category: %+v", c)
	}
	delete(rec, "created_at")
	if _, err := CategoryFromRecord(rec); err == nil {
		t.Fatal("expected error for missing created_at")
	}
}

func TestLiveDuration(t *testing.T) {
	resumed := t0
	e := TimeEntry{Duration: 100, IsActive: true, ResumedAt: &resumed}
	if got := e.LiveDuration(t0.Add(50 * time.Second)); got != 150 {
		t.Fatalf("expected 150, got %v", got)
	}
	if got := e.LiveDuration(t0.Add(-time.Hour)); got != 100 {
		t.Fatalf("clock going backwards should not subtract, got %v", got)
	}
	e.IsActive = false
	if got := e.LiveDuration(t0.Add(time.Hour)); got != 100 {
		t.Fatalf("paused entry should be frozen, got %v", got)
	}
	e.Duration = math.NaN()
	if got := e.LiveDuration(t0); got != 0 {
		t.Fatalf("NaN should read as 0, got %v", got)
	}
	e.Duration = -5
	if got := e.LiveDuration(t0); got != 0 {
		t.Fatalf("negative should read as 0, got %v", got)
	}
}

func TestIsChildOf(t *testing.T) {
	p := "a"
	q := "a"
	other := "b"
	top := Category{}
	child := Category{ParentID: &p}
	if !top.IsChildOf(nil) || top.IsChildOf(&p) {
		t.Fatal("top-level matching wrong")
	}
	if !child.IsChildOf(&q) || child.IsChildOf(&other) || child.IsChildOf(nil) {
		t.Fatal("child matching wrong")
	}
}

// ============================================================
// Replication
// ============================================================

type recordingPublisher struct {
	mu      sync.Mutex
	changes []Change
	err     error
	block   chan struct{} // when set, each publish waits for a receive
}

func (p *recordingPublisher) PublishRecordChange(_ context.Context, c Change) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return p.err
}

func (p *recordingPublisher) published() []Change {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Change(nil), p.changes...)
}

func TestReplicatedPublishesWrites(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	r := NewReplicated(NewMapBackend(), pub, nil)

	r.Put(ctx, Categories, sampleCategory("a", "u1", nil).Record())
	r.Delete(ctx, Categories, "a")
	r.Close()

	changes := pub.published()
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].Op != OpPut || changes[0].ID != "a" || changes[0].Record == nil {
		t.Fatalf("unexpected put change: %+v", changes[0])
	}
	if changes[1].Op != OpDelete || changes[1].Record != nil {
		t.Fatalf("unexpected delete change: %+v", changes[1])
	}
}

func TestReplicatedWritesDoNotWaitForPublisher(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{block: make(chan struct{})}
	r := NewReplicated(NewMapBackend(), pub, nil)

	returned := make(chan struct{})
	go func() {
		for _, id := range []string{"a", "b", "c"} {
			r.Put(ctx, Categories, sampleCategory(id, "u1", nil).Record())
		}
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("writes blocked on a stalled publisher")
	}

	close(pub.block)
	r.Close()
	changes := pub.published()
	if len(changes) != 3 {
		t.Fatalf("expected 3 changes after close, got %d", len(changes))
	}
	for i, id := range []string{"a", "b", "c"} {
		if changes[i].ID != id {
			t.Fatalf("changes out of write order: %+v", changes)
		}
	}
}

func TestReplicatedAfterClose(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewReplicated(NewMapBackend(), pub, nil)
	r.Close()
	r.Close()
	if err := r.Put(context.Background(), Categories, sampleCategory("a", "u1", nil).Record()); err != nil {
		t.Fatalf("write after close should still be stored: %v", err)
	}
	if len(pub.published()) != 0 {
		t.Fatal("nothing should be published after close")
	}
}

func TestReplicatedSkipsFailedWrites(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewReplicated(NewMapBackend(), pub, nil)
	if err := r.Put(context.Background(), Categories, Record{"id": "a"}); err == nil {
		t.Fatal("expected validation error")
	}
	r.Close()
	if len(pub.published()) != 0 {
		t.Fatal("failed write must not be published")
	}
}

func TestReplicatedIgnoresPublishFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	r := NewReplicated(NewMapBackend(), pub, nil)
	if err := r.Put(context.Background(), Categories, sampleCategory("a", "u1", nil).Record()); err != nil {
		t.Fatalf("publish failure should not fail the write: %v", err)
	}
	r.Close()
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	replica := newTestStore(t)
	rec := sampleCategory("a", "u1", nil).Record()
	if err := Apply(ctx, replica, Change{Op: OpPut, Collection: Categories, ID: "a", Record: rec}); err != nil {
		t.Fatal(err)
	}
	recs, _ := replica.Get(ctx, Categories, "u1")
	if len(recs) != 1 {
		t.Fatalf("expected replicated record, got %d", len(recs))
	}
	if err := Apply(ctx, replica, Change{Op: OpDelete, Collection: Categories, ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := Apply(ctx, replica, Change{Op: "merge"}); err == nil {
		t.Fatal("expected error for unknown op")
	}
}

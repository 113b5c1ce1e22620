package timer

import (
	"context"
	"errors"
	"sync"

	log "github.com/sadopc/itrack/internal/log"
)

// Manager owns one Timer per user. Timers are created lazily and restored
// from their snapshot on first use.
type Manager struct {
	cfg Config

	mu     sync.Mutex
	timers map[string]*Timer
}

// NewManager uses cfg as the template for every session; UserID is ignored.
func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	return &Manager{cfg: cfg, timers: make(map[string]*Timer)}
}

// Session returns the user's timer, restoring it on first access.
func (m *Manager) Session(ctx context.Context, userID string) (*Timer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.timers[userID]; ok {
		return t, nil
	}
	cfg := m.cfg
	cfg.UserID = userID
	t := New(cfg)
	if err := t.Restore(ctx); err != nil {
		return nil, err
	}
	m.timers[userID] = t
	return t, nil
}

// DropCategories matches category.DeleteHook. Users without a live session
// have nothing in memory to drop; their snapshot is checked on restore.
func (m *Manager) DropCategories(ctx context.Context, userID string, ids []string) {
	m.mu.Lock()
	t, ok := m.timers[userID]
	m.mu.Unlock()
	if ok {
		t.DropCategories(ctx, ids)
	}
}

// Close flushes pending writes and stops every ticker.
func (m *Manager) Close() error {
	m.mu.Lock()
	timers := make([]*Timer, 0, len(m.timers))
	for _, t := range m.timers {
		timers = append(timers, t)
	}
	m.timers = make(map[string]*Timer)
	m.mu.Unlock()

	var errList []error
	for _, t := range timers {
		t.Close()
		if err := t.Flush(context.Background()); err != nil {
			m.cfg.Logger.Error("Failed to flush timer on close",
				log.NewFields().WithUser(t.UserID()).WithError(err).ToSlice()...)
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

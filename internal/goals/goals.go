// Package goals keeps a user's daily goals. A goal belongs to the calendar
// day it was created on and is expired on any other day.
package goals

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/itrack/internal/errs"
	log "github.com/sadopc/itrack/internal/log"
	"github.com/sadopc/itrack/internal/store"
)

type Service struct {
	backend store.Backend
	now     func() time.Time
	logger  *log.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(b store.Backend, opts ...Option) *Service {
	s := &Service{backend: b, now: time.Now, logger: log.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentGoals)
	return s
}

// Add creates a goal for today, ordered after today's existing goals.
func (s *Service) Add(ctx context.Context, userID, content string) (store.Goal, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return store.Goal{}, errs.Validation("content", "must not be empty")
	}
	all, err := s.load(ctx, userID)
	if err != nil {
		return store.Goal{}, err
	}
	now := s.now()
	order := 0
	for _, g := range all {
		if !g.IsExpired(now) {
			order++
		}
	}

	g := store.Goal{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		SortOrder: order,
		GoalDate:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.backend.Put(ctx, store.Goals, g.Record()); err != nil {
		return store.Goal{}, errs.Persistence("create goal", err)
	}
	s.logger.DebugContext(ctx, "Added goal",
		log.NewFields().WithOperation(log.OpCreate).WithUser(userID).WithRecord(store.Goals, g.ID).ToSlice()...)
	return g, nil
}

// Toggle flips completion, setting or clearing the completion time.
func (s *Service) Toggle(ctx context.Context, userID, id string) (store.Goal, error) {
	g, err := s.get(ctx, userID, id)
	if err != nil {
		return store.Goal{}, err
	}
	now := s.now()
	g.IsCompleted = !g.IsCompleted
	if g.IsCompleted {
		g.CompletedAt = &now
	} else {
		g.CompletedAt = nil
	}
	g.UpdatedAt = now
	if err := s.backend.Put(ctx, store.Goals, g.Record()); err != nil {
		return store.Goal{}, errs.Persistence("update goal", err)
	}
	return g, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, store.Goals, id); err != nil {
		return errs.Persistence("delete goal", err)
	}
	return nil
}

// Active returns today's incomplete goals in sort order.
func (s *Service) Active(ctx context.Context, userID string) ([]store.Goal, error) {
	all, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []store.Goal
	for _, g := range all {
		if !g.IsCompleted && !g.IsExpired(now) {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

// Completed returns today's completed goals, most recently completed first.
func (s *Service) Completed(ctx context.Context, userID string) ([]store.Goal, error) {
	all, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var out []store.Goal
	for _, g := range all {
		if g.IsCompleted && !g.IsExpired(now) {
			out = append(out, g)
		}
	}
	sortByCompletion(out)
	return out, nil
}

// CompletedWithin returns goals of any date completed in the last hours.
func (s *Service) CompletedWithin(ctx context.Context, userID string, hours int) ([]store.Goal, error) {
	if hours < 1 {
		return nil, errs.Validation("hours", "must be at least 1")
	}
	all, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)
	var out []store.Goal
	for _, g := range all {
		if g.IsCompleted && g.CompletedAt != nil && !g.CompletedAt.Before(cutoff) {
			out = append(out, g)
		}
	}
	sortByCompletion(out)
	return out, nil
}

func (s *Service) get(ctx context.Context, userID, id string) (store.Goal, error) {
	all, err := s.load(ctx, userID)
	if err != nil {
		return store.Goal{}, err
	}
	for _, g := range all {
		if g.ID == id {
			return g, nil
		}
	}
	return store.Goal{}, errs.NotFound("goal", id)
}

func (s *Service) load(ctx context.Context, userID string) ([]store.Goal, error) {
	recs, err := s.backend.Get(ctx, store.Goals, userID)
	if err != nil {
		return nil, errs.Persistence("list goals", err)
	}
	gs, err := store.DecodeGoals(recs)
	if err != nil {
		return nil, errs.Persistence("list goals", err)
	}
	return gs, nil
}

func sortByCompletion(gs []store.Goal) {
	sort.SliceStable(gs, func(i, j int) bool {
		a, b := gs[i].CompletedAt, gs[j].CompletedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})
}

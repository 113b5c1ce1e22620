package summary

import (
	"context"
	"sort"
	"time"

	"github.com/sadopc/itrack/internal/errs"
	log "github.com/sadopc/itrack/internal/log"
	"github.com/sadopc/itrack/internal/store"
	"github.com/sadopc/itrack/internal/timeunit"
)

// Service loads entries and categories from a backend and aggregates them.
// Each call works on its own decoded copy, so concurrent timer writes are
// never observed half-applied.
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
	s.logger = s.logger.WithComponent(log.ComponentSummary)
	return s
}

func (s *Service) ForPeriod(ctx context.Context, userID string, period timeunit.Period) ([]Summary, error) {
	entries, categories, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	sums := Aggregate(entries, categories, Query{UserID: userID, Period: period, Now: s.now()})

	fields := log.NewFields().WithOperation(log.OpList).WithUser(userID)
	fields[log.FieldPeriod] = period.String()
	fields[log.FieldCount] = len(sums)
	s.logger.DebugContext(ctx, "Aggregated summaries", fields.ToSlice()...)
	return sums, nil
}

// Daily reports the last days calendar days ending today.
func (s *Service) Daily(ctx context.Context, userID string, days int) ([]DayTotal, error) {
	if days < 1 {
		return nil, errs.Validation("days", "must be at least 1")
	}
	entries, categories, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	from := timeunit.StartOf(timeunit.Day, now).AddDate(0, 0, -(days - 1))
	return Daily(entries, categories, userID, from, now, now), nil
}

// Entries returns the user's entries in period, newest first.
func (s *Service) Entries(ctx context.Context, userID string, period timeunit.Period) ([]store.TimeEntry, error) {
	entries, _, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := Filter(entries, Query{UserID: userID, Period: period, Now: s.now()})
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

// Categories returns every category record of the user, including
// soft-deleted ones, for naming historical entries.
func (s *Service) Categories(ctx context.Context, userID string) ([]store.Category, error) {
	recs, err := s.backend.Get(ctx, store.Categories, userID)
	if err != nil {
		return nil, errs.Persistence("load categories", err)
	}
	categories, err := store.DecodeCategories(recs)
	if err != nil {
		return nil, errs.Persistence("load categories", err)
	}
	return categories, nil
}

func (s *Service) load(ctx context.Context, userID string) ([]store.TimeEntry, []store.Category, error) {
	entryRecs, err := s.backend.Get(ctx, store.TimeEntries, userID)
	if err != nil {
		return nil, nil, errs.Persistence("load entries", err)
	}
	catRecs, err := s.backend.Get(ctx, store.Categories, userID)
	if err != nil {
		return nil, nil, errs.Persistence("load categories", err)
	}
	entries, err := store.DecodeTimeEntries(entryRecs)
	if err != nil {
		return nil, nil, errs.Persistence("load entries", err)
	}
	categories, err := store.DecodeCategories(catRecs)
	if err != nil {
		return nil, nil, errs.Persistence("load categories", err)
	}
	return entries, categories, nil
}

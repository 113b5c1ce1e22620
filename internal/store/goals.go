package store

import (
	"fmt"
	"time"

	"github.com/sadopc/itrack/internal/timeunit"
)

// IsExpired reports whether the goal's date is not the calendar day of now.
// Expired goals stay in storage but drop out of today's views.
func (g Goal) IsExpired(now time.Time) bool {
	return !timeunit.SameDay(g.GoalDate, now)
}

func (g Goal) Record() Record {
	return Record{
		"id":               g.ID,
		"user_id":          g.UserID,
		"content":          g.Content,
		"is_completed":     g.IsCompleted,
		"sort_order":       int64(g.SortOrder),
		"goal_date":        formatTime(g.GoalDate),
		"created_at":       formatTime(g.CreatedAt),
		"updated_at":       formatTime(g.UpdatedAt),
		"completed_at":     optTime(g.CompletedAt),
		schemaVersionField: schemas[Goals].Version,
	}
}

func GoalFromRecord(r Record) (Goal, error) {
	g := Goal{
		ID:          r.ID(),
		UserID:      r.UserID(),
		Content:     r.String("content"),
		IsCompleted: r.Bool("is_completed"),
		SortOrder:   int(r.Int("sort_order")),
	}
	if g.ID == "" || g.UserID == "" {
		return Goal{}, fmt.Errorf("decode goal: missing id or user_id")
	}
	var err error
	if g.GoalDate, err = r.Time("goal_date"); err != nil {
		return Goal{}, fmt.Errorf("decode goal %s: %w", g.ID, err)
	}
	if g.CreatedAt, err = r.Time("created_at"); err != nil {
		g.CreatedAt = g.GoalDate
	}
	if g.UpdatedAt, err = r.Time("updated_at"); err != nil {
		g.UpdatedAt = g.CreatedAt
	}
	if g.CompletedAt, err = r.OptTime("completed_at"); err != nil {
		return Goal{}, fmt.Errorf("decode goal %s: %w", g.ID, err)
	}
	return g, nil
}

func DecodeGoals(recs []Record) ([]Goal, error) {
	out := make([]Goal, 0, len(recs))
	for _, r := range recs {
		g, err := GoalFromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

package category

import (
	"context"

	"github.com/sadopc/itrack/internal/errs"
	log "github.com/sadopc/itrack/internal/log"
	"github.com/sadopc/itrack/internal/store"
)

// Template is a default category and its children.
type Template struct {
	Name     string
	Color    string
	Icon     string
	Children []Template
}

// DefaultTemplates is the set seeded for a new user.
var DefaultTemplates = []Template{
	{Name: "Work", Color: "#007AFF", Icon: "briefcase.fill", Children: []Template{
		{Name: "Meetings", Color: "#5AC8FA", Icon: "person.2.fill"},
		{Name: "Coding", Color: "#34C759", Icon: "laptopcomputer"},
		{Name: "Planning", Color: "#FF9500", Icon: "list.bullet"},
	}},
	{Name: "Personal", Color: "#FF3B30", Icon: "person.fill", Children: []Template{
		{Name: "Exercise", Color: "#FF2D92", Icon: "figure.run"},
		{Name: "Reading", Color: "#AF52DE", Icon: "book.fill"},
		{Name: "Hobbies", Color: "#FF6B6B", Icon: "heart.fill"},
	}},
	{Name: "Learning", Color: "#30D158", Icon: "graduationcap.fill", Children: []Template{
		{Name: "Online Courses", Color: "#64D2FF", Icon: "play.rectangle.fill"},
		{Name: "Research", Color: "#FF9F0A", Icon: "magnifyingglass"},
		{Name: "Practice", Color: "#FF453A", Icon: "pencil"},
	}},
}

// EnsureDefaults seeds DefaultTemplates when the user has no category records
// at all. Soft-deleted categories count as records, so a user who deleted
// every category is not re-seeded. It reports whether it seeded.
func (s *Service) EnsureDefaults(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.backend.Get(ctx, store.Categories, userID)
	if err != nil {
		return false, errs.Persistence("seed categories", err)
	}
	if len(recs) > 0 {
		return false, nil
	}

	for _, t := range DefaultTemplates {
		parent, err := s.create(ctx, userID, Input{Name: t.Name, Color: t.Color, Icon: t.Icon})
		if err != nil {
			return false, err
		}
		for _, child := range t.Children {
			if _, err := s.create(ctx, userID, Input{Name: child.Name, Color: child.Color, Icon: child.Icon, ParentID: &parent.ID}); err != nil {
				return false, err
			}
		}
	}

	s.logger.InfoContext(ctx, "Seeded default categories",
		log.NewFields().WithOperation(log.OpSeed).WithUser(userID).ToSlice()...)
	return true, nil
}

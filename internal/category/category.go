// Package category manages a user's category hierarchy: creation, soft
// deletion with cascade, ordered listing and the default template set.
package category

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/sadopc/itrack/internal/errs"
	log "github.com/sadopc/itrack/internal/log"
	"github.com/sadopc/itrack/internal/store"
)

// DefaultIcon is used when a category is created without an icon.
const DefaultIcon = "circle.fill"

// Input is what a caller supplies to create a category.
type Input struct {
	Name     string
	Color    string
	Icon     string
	ParentID *string
}

// DeleteHook is told which category ids a Delete removed.
type DeleteHook func(ctx context.Context, userID string, ids []string)

// Node is a top-level category with its active children.
type Node struct {
	Category store.Category
	Children []store.Category
}

type Service struct {
	backend store.Backend
	now     func() time.Time
	logger  *log.Logger

	mu    sync.Mutex // serializes writes so sibling counts stay consistent
	hooks []DeleteHook
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
	s.logger = s.logger.WithComponent(log.ComponentCategory)
	return s
}

// OnDelete registers a hook run by Delete before time entries are removed.
func (s *Service) OnDelete(h DeleteHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// NormalizeColor accepts #rgb, #rgba, #rrggbb or #rrggbbaa (the leading #
// is optional) and returns lower-case #rrggbb, with the alpha pair appended
// when one was given.
func NormalizeColor(color string) (string, error) {
	c := strings.TrimSpace(color)
	if !strings.HasPrefix(c, "#") {
		c = "#" + c
	}
	if len(c) == 4 || len(c) == 5 {
		long := []byte{'#'}
		for i := 1; i < len(c); i++ {
			long = append(long, c[i], c[i])
		}
		c = string(long)
	}
	var alpha string
	if len(c) == 9 {
		c, alpha = c[:7], c[7:]
		if _, err := strconv.ParseUint(alpha, 16, 8); err != nil {
			return "", errs.Validation("color", "must be a hex color like #007AFF")
		}
	}
	if len(c) != 7 {
		return "", errs.Validation("color", "must be a hex color like #007AFF")
	}
	parsed, err := colorful.Hex(c)
	if err != nil {
		return "", errs.Validation("color", "must be a hex color like #007AFF")
	}
	return parsed.Hex() + strings.ToLower(alpha), nil
}

func (s *Service) Create(ctx context.Context, userID string, in Input) (store.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(ctx, userID, in)
}

func (s *Service) create(ctx context.Context, userID string, in Input) (store.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Category{}, errs.Validation("name", "must not be empty")
	}
	color, err := NormalizeColor(in.Color)
	if err != nil {
		return store.Category{}, err
	}
	icon := strings.TrimSpace(in.Icon)
	if icon == "" {
		icon = DefaultIcon
	}

	all, err := s.load(ctx, userID)
	if err != nil {
		return store.Category{}, err
	}
	parentID := in.ParentID
	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	if parentID != nil {
		parent, ok := find(all, *parentID)
		if !ok || !parent.IsActive {
			return store.Category{}, errs.Validation("parent_id", "unknown parent category "+*parentID)
		}
	}

	order := 0
	for _, c := range all {
		if c.IsActive && c.IsChildOf(parentID) {
			order++
		}
	}

	now := s.now()
	c := store.Category{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Color:     color,
		Icon:      icon,
		ParentID:  parentID,
		SortOrder: order,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.backend.Put(ctx, store.Categories, c.Record()); err != nil {
		return store.Category{}, errs.Persistence("create category", err)
	}
	s.logger.DebugContext(ctx, "Created category",
		log.NewFields().WithOperation(log.OpCreate).WithUser(userID).WithRecord(store.Categories, c.ID).ToSlice()...)
	return c, nil
}

// Get returns an active category owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (store.Category, error) {
	all, err := s.load(ctx, userID)
	if err != nil {
		return store.Category{}, err
	}
	c, ok := find(all, id)
	if !ok || !c.IsActive {
		return store.Category{}, errs.NotFound("category", id)
	}
	return c, nil
}

// Update replaces the editable fields of an existing category. Owner, parent
// and creation time are kept from the stored record.
func (s *Service) Update(ctx context.Context, c store.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx, c.UserID)
	if err != nil {
		return err
	}
	existing, ok := find(all, c.ID)
	if !ok {
		return errs.NotFound("category", c.ID)
	}
	if !existing.IsChildOf(c.ParentID) {
		return errs.Validation("parent_id", "parent cannot be changed")
	}
	if c.IsActive && existing.ParentID != nil {
		if parent, ok := find(all, *existing.ParentID); !ok || !parent.IsActive {
			return errs.Validation("is_active", "parent category is deleted")
		}
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return errs.Validation("name", "must not be empty")
	}
	color, err := NormalizeColor(c.Color)
	if err != nil {
		return err
	}
	icon := strings.TrimSpace(c.Icon)
	if icon == "" {
		icon = DefaultIcon
	}

	existing.Name = name
	existing.Color = color
	existing.Icon = icon
	existing.SortOrder = c.SortOrder
	existing.IsActive = c.IsActive
	existing.UpdatedAt = s.now()
	if err := s.backend.Put(ctx, store.Categories, existing.Record()); err != nil {
		return errs.Persistence("update category", err)
	}
	return nil
}

// Delete soft-deletes the category and every descendant, then hard-deletes
// the time entries referencing any of them. Delete hooks run in between.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if _, ok := find(all, id); !ok {
		return errs.NotFound("category", id)
	}

	removed := descendants(all, id)
	now := s.now()
	for _, c := range all {
		if _, ok := removed[c.ID]; !ok || !c.IsActive {
			continue
		}
		c.IsActive = false
		c.UpdatedAt = now
		if err := s.backend.Put(ctx, store.Categories, c.Record()); err != nil {
			return errs.Persistence("delete category", err)
		}
	}

	ids := make([]string, 0, len(removed))
	for _, c := range all {
		if _, ok := removed[c.ID]; ok {
			ids = append(ids, c.ID)
		}
	}
	for _, h := range s.hooks {
		h(ctx, userID, ids)
	}

	recs, err := s.backend.Get(ctx, store.TimeEntries, userID)
	if err != nil {
		return errs.Persistence("delete category entries", err)
	}
	deleted := 0
	for _, r := range recs {
		if _, ok := removed[r.String("category_id")]; !ok {
			continue
		}
		if err := s.backend.Delete(ctx, store.TimeEntries, r.ID()); err != nil {
			return errs.Persistence("delete category entries", err)
		}
		deleted++
	}

	fields := log.NewFields().WithOperation(log.OpDelete).WithUser(userID).WithRecord(store.Categories, id)
	fields[log.FieldCount] = len(ids)
	fields["entries_deleted"] = deleted
	s.logger.InfoContext(ctx, "Deleted category", fields.ToSlice()...)
	return nil
}

// List returns the active categories directly under parentID (nil = top
// level), by sort order then creation time.
func (s *Service) List(ctx context.Context, userID string, parentID *string) ([]store.Category, error) {
	all, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []store.Category
	for _, c := range all {
		if c.IsActive && c.IsChildOf(parentID) {
			out = append(out, c)
		}
	}
	sortCategories(out)
	return out, nil
}

// Tree returns every active top-level category with its active children.
func (s *Service) Tree(ctx context.Context, userID string) ([]Node, error) {
	all, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	var nodes []Node
	children := make(map[string][]store.Category)
	for _, c := range all {
		if !c.IsActive {
			continue
		}
		if c.ParentID == nil {
			nodes = append(nodes, Node{Category: c})
		} else {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}
	sort.SliceStable(nodes, func(i, j int) bool { return less(nodes[i].Category, nodes[j].Category) })
	for i := range nodes {
		kids := children[nodes[i].Category.ID]
		sortCategories(kids)
		nodes[i].Children = kids
	}
	return nodes, nil
}

// All returns every category record of the user, active or not.
func (s *Service) All(ctx context.Context, userID string) ([]store.Category, error) {
	return s.load(ctx, userID)
}

func (s *Service) load(ctx context.Context, userID string) ([]store.Category, error) {
	recs, err := s.backend.Get(ctx, store.Categories, userID)
	if err != nil {
		return nil, errs.Persistence("list categories", err)
	}
	cats, err := store.DecodeCategories(recs)
	if err != nil {
		return nil, errs.Persistence("list categories", err)
	}
	return cats, nil
}

func find(all []store.Category, id string) (store.Category, bool) {
	for _, c := range all {
		if c.ID == id {
			return c, true
		}
	}
	return store.Category{}, false
}

// descendants returns root and everything below it. The visited set guards
// against malformed data with a parent cycle.
func descendants(all []store.Category, root string) map[string]struct{} {
	out := map[string]struct{}{root: {}}
	queue := []string{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range all {
			if c.ParentID == nil || *c.ParentID != id {
				continue
			}
			if _, seen := out[c.ID]; seen {
				continue
			}
			out[c.ID] = struct{}{}
			queue = append(queue, c.ID)
		}
	}
	return out
}

func less(a, b store.Category) bool {
	if a.SortOrder != b.SortOrder {
		return a.SortOrder < b.SortOrder
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func sortCategories(cs []store.Category) {
	sort.SliceStable(cs, func(i, j int) bool { return less(cs[i], cs[j]) })
}

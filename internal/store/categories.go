package store

import "fmt"

func (c Category) Record() Record {
	return Record{
		"id":               c.ID,
		"user_id":          c.UserID,
		"name":             c.Name,
		"color":            c.Color,
		"icon":             c.Icon,
		"parent_id":        optString(c.ParentID),
		"sort_order":       int64(c.SortOrder),
		"is_active":        c.IsActive,
		"created_at":       formatTime(c.CreatedAt),
		"updated_at":       formatTime(c.UpdatedAt),
		schemaVersionField: schemas[Categories].Version,
	}
}

func CategoryFromRecord(r Record) (Category, error) {
	c := Category{
		ID:        r.ID(),
		UserID:    r.UserID(),
		Name:      r.String("name"),
		Color:     r.String("color"),
		Icon:      r.String("icon"),
		ParentID:  r.OptString("parent_id"),
		SortOrder: int(r.Int("sort_order")),
		IsActive:  r.Bool("is_active"),
	}
	if c.ID == "" || c.UserID == "" {
		return Category{}, fmt.Errorf("decode category: missing id or user_id")
	}
	var err error
	if c.CreatedAt, err = r.Time("created_at"); err != nil {
		return Category{}, fmt.Errorf("decode category %s: %w", c.ID, err)
	}
	if c.UpdatedAt, err = r.Time("updated_at"); err != nil {
		c.UpdatedAt = c.CreatedAt
	}
	return c, nil
}

// DecodeCategories converts records, failing on the first malformed one.
func DecodeCategories(recs []Record) ([]Category, error) {
	out := make([]Category, 0, len(recs))
	for _, r := range recs {
		c, err := CategoryFromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

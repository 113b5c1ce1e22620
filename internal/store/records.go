package store

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Record is the flat key/value form every entity is stored as. Values are
// string, int64, float64, bool or nil. Timestamps are RFC 3339 UTC strings.
type Record map[string]any

// Clone returns a shallow copy. Values are scalars, so the copy is independent.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (r Record) ID() string     { return r.String("id") }
func (r Record) UserID() string { return r.String("user_id") }

func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// OptString returns nil for a missing, nil or empty value.
func (r Record) OptString(key string) *string {
	s, ok := r[key].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

// Int accepts any numeric representation; JSON decoding yields float64.
func (r Record) Int(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

func (r Record) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

func (r Record) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	}
	return false
}

func (r Record) Time(key string) (time.Time, error) {
	s := r.String(key)
	if s == "" {
		return time.Time{}, fmt.Errorf("field %q: missing timestamp", key)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %q: %w", key, err)
	}
	return t, nil
}

func (r Record) OptTime(key string) (*time.Time, error) {
	if r.String(key) == "" {
		return nil, nil
	}
	t, err := r.Time(key)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func optTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func optString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// sanitizeSeconds maps NaN, Inf and negative values to zero.
func sanitizeSeconds(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Kind is the storage type of a schema field.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
)

type Field struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Schema is the explicit, versioned field set of one collection.
type Schema struct {
	Collection string
	Version    int64
	Fields     []Field
}

// Check rejects unknown fields, wrongly typed values and missing required
// fields.
func (s Schema) Check(rec Record) error {
	known := make(map[string]Field, len(s.Fields))
	for _, f := range s.Fields {
		known[f.Name] = f
	}
	for k := range rec {
		if _, ok := known[k]; !ok {
			return fmt.Errorf("%s: unknown field %q", s.Collection, k)
		}
	}
	for _, f := range s.Fields {
		v, ok := rec[f.Name]
		if !ok || v == nil {
			if !f.Nullable {
				return fmt.Errorf("%s: field %q is required", s.Collection, f.Name)
			}
			continue
		}
		if !kindMatches(f.Kind, v) {
			return fmt.Errorf("%s: field %q has type %T", s.Collection, f.Name, v)
		}
	}
	if rec.ID() == "" {
		return fmt.Errorf("%s: empty id", s.Collection)
	}
	return nil
}

func kindMatches(k Kind, v any) bool {
	switch k {
	case KindString, KindTime:
		_, ok := v.(string)
		return ok
	case KindInt:
		switch v.(type) {
		case int64, int, float64:
			return true
		}
	case KindFloat:
		switch v.(type) {
		case float64, int64, int:
			return true
		}
	case KindBool:
		_, ok := v.(bool)
		return ok
	}
	return false
}

func (s Schema) columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

func (s Schema) columnList() string {
	return strings.Join(s.columns(), ", ")
}

// Collection names
const (
	Categories     = "categories"
	TimeEntries    = "time_entries"
	Goals          = "goals"
	TimerSnapshots = "timer_snapshots"
)

const schemaVersionField = "schema_version"

func newSchema(collection string, version int64, fields ...Field) Schema {
	fields = append(fields, Field{Name: schemaVersionField, Kind: KindInt})
	return Schema{Collection: collection, Version: version, Fields: fields}
}

var schemas = map[string]Schema{
	Categories: newSchema(Categories, 1,
		Field{Name: "id", Kind: KindString},
		Field{Name: "user_id", Kind: KindString},
		Field{Name: "name", Kind: KindString},
		Field{Name: "color", Kind: KindString},
		Field{Name: "icon", Kind: KindString},
		Field{Name: "parent_id", Kind: KindString, Nullable: true},
		Field{Name: "sort_order", Kind: KindInt},
		Field{Name: "is_active", Kind: KindBool},
		Field{Name: "created_at", Kind: KindTime},
		Field{Name: "updated_at", Kind: KindTime},
	),
	TimeEntries: newSchema(TimeEntries, 1,
		Field{Name: "id", Kind: KindString},
		Field{Name: "user_id", Kind: KindString},
		Field{Name: "category_id", Kind: KindString},
		Field{Name: "start_time", Kind: KindTime},
		Field{Name: "end_time", Kind: KindTime, Nullable: true},
		Field{Name: "resumed_at", Kind: KindTime, Nullable: true},
		Field{Name: "duration", Kind: KindFloat},
		Field{Name: "is_active", Kind: KindBool},
		Field{Name: "created_at", Kind: KindTime},
		Field{Name: "updated_at", Kind: KindTime},
	),
	Goals: newSchema(Goals, 1,
		Field{Name: "id", Kind: KindString},
		Field{Name: "user_id", Kind: KindString},
		Field{Name: "content", Kind: KindString},
		Field{Name: "is_completed", Kind: KindBool},
		Field{Name: "sort_order", Kind: KindInt},
		Field{Name: "goal_date", Kind: KindTime},
		Field{Name: "created_at", Kind: KindTime},
		Field{Name: "updated_at", Kind: KindTime},
		Field{Name: "completed_at", Kind: KindTime, Nullable: true},
	),
	TimerSnapshots: newSchema(TimerSnapshots, 1,
		Field{Name: "id", Kind: KindString},
		Field{Name: "user_id", Kind: KindString},
		Field{Name: "entry_id", Kind: KindString, Nullable: true},
		Field{Name: "category_id", Kind: KindString, Nullable: true},
		Field{Name: "state", Kind: KindString},
		Field{Name: "run_started_at", Kind: KindTime, Nullable: true},
		Field{Name: "frozen_duration", Kind: KindFloat},
		Field{Name: "current_duration", Kind: KindFloat},
		Field{Name: "saved_at", Kind: KindTime},
	),
}

// SchemaFor returns the schema of a known collection.
func SchemaFor(collection string) (Schema, error) {
	s, ok := schemas[collection]
	if !ok {
		return Schema{}, fmt.Errorf("unknown collection %q", collection)
	}
	return s, nil
}

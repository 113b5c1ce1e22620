// Package store holds the entity types, their record schemas, and the storage
// backends the tracking core persists through.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

// Backend is the storage collaborator. Put replaces a whole record, so a
// reader never observes a half-updated entity.
type Backend interface {
	Get(ctx context.Context, collection, userID string) ([]Record, error)
	Put(ctx context.Context, collection string, rec Record) error
	Delete(ctx context.Context, collection, id string) error
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the SQLite backend, one table per collection.
type Store struct {
	db *sql.DB
}

var _ Backend = (*Store)(nil)

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	// Configure pragmas.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrate runs on the store's own connection so that in-memory databases
// see their schema. The migrate instance is not closed: that would close db.
func (s *Store) migrate() error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	var dirty bool
	err := s.db.QueryRow(`SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

func (s *Store) Get(ctx context.Context, collection, userID string) ([]Record, error) {
	sc, err := SchemaFor(collection)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = ? ORDER BY rowid`, sc.columnList(), sc.Collection),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows, sc)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *Store) Put(ctx context.Context, collection string, rec Record) error {
	sc, err := SchemaFor(collection)
	if err != nil {
		return err
	}
	if err := sc.Check(rec); err != nil {
		return err
	}

	cols := sc.columns()
	args := make([]any, len(sc.Fields))
	placeholders := make([]string, len(sc.Fields))
	var updates []string
	for i, f := range sc.Fields {
		args[i] = sqlValue(f, rec[f.Name])
		placeholders[i] = "?"
		if f.Name != "id" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", f.Name, f.Name))
		}
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s`,
		sc.Collection, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s %s: %w", collection, rec.ID(), err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	sc, err := SchemaFor(collection)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, sc.Collection), id); err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, id, err)
	}
	return nil
}

func sqlValue(f Field, v any) any {
	if v == nil {
		return nil
	}
	switch f.Kind {
	case KindBool:
		if b, _ := v.(bool); b {
			return int64(1)
		}
		return int64(0)
	case KindInt:
		return Record{"v": v}.Int("v")
	case KindFloat:
		return Record{"v": v}.Float("v")
	}
	return v
}

func scanRecord(rows *sql.Rows, sc Schema) (Record, error) {
	dest := make([]any, len(sc.Fields))
	for i, f := range sc.Fields {
		switch f.Kind {
		case KindInt, KindBool:
			dest[i] = &sql.NullInt64{}
		case KindFloat:
			dest[i] = &sql.NullFloat64{}
		default:
			dest[i] = &sql.NullString{}
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	rec := make(Record, len(sc.Fields))
	for i, f := range sc.Fields {
		switch d := dest[i].(type) {
		case *sql.NullInt64:
			switch {
			case !d.Valid:
				rec[f.Name] = nil
			case f.Kind == KindBool:
				rec[f.Name] = d.Int64 != 0
			default:
				rec[f.Name] = d.Int64
			}
		case *sql.NullFloat64:
			if d.Valid {
				rec[f.Name] = d.Float64
			} else {
				rec[f.Name] = nil
			}
		case *sql.NullString:
			if d.Valid {
				rec[f.Name] = d.String
			} else {
				rec[f.Name] = nil
			}
		}
	}
	return rec, nil
}

// DefaultDBPath returns ~/.config/itrack/itrack.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "itrack", "itrack.db"), nil
}

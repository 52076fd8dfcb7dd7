// Package sqlite implements store.SkillStore on a single-file SQLite database.
// Same contract as the file backend; usage increments are a single atomic
// UPDATE, so they cannot be lost even across processes.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/store"
)

// SkillStore is the SQLite backend.
type SkillStore struct {
	db *sql.DB
}

// Open creates (or opens) the database at path and applies the schema.
func Open(path string) (*SkillStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &store.StorageError{Op: "open", Err: err}
	}
	s := &SkillStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, &store.StorageError{Op: "migrate", Err: err}
	}
	slog.Info("skill store opened", "backend", "sqlite", "path", path)
	return s, nil
}

func (s *SkillStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS skills (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			category TEXT NOT NULL,
			code TEXT NOT NULL,
			parameters TEXT NOT NULL DEFAULT '{}',
			return_type TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			usage_count INTEGER NOT NULL DEFAULT 0,
			is_public INTEGER NOT NULL DEFAULT 0,
			is_builtin INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_skills_name ON skills(name)`,
		`CREATE INDEX IF NOT EXISTS idx_skills_category ON skills(category)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 40)], err)
		}
	}
	return nil
}

// Save validates and upserts the skill, assigning identity on first save.
func (s *SkillStore) Save(skill *store.Skill) (*store.Skill, error) {
	if err := store.ValidateSkill(skill); err != nil {
		return nil, err
	}

	rec := skill.Clone()
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
		rec.CreatedAt = now
		rec.UsageCount = 0
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	params, err := json.Marshal(rec.Parameters)
	if err != nil {
		return nil, &store.StorageError{Op: "encode", Err: err}
	}
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return nil, &store.StorageError{Op: "encode", Err: err}
	}

	_, err = s.db.Exec(`INSERT INTO skills
		(id, name, description, category, code, parameters, return_type, author, tags,
		 created_at, updated_at, usage_count, is_public, is_builtin)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, description=excluded.description,
			category=excluded.category, code=excluded.code,
			parameters=excluded.parameters, return_type=excluded.return_type,
			author=excluded.author, tags=excluded.tags,
			updated_at=excluded.updated_at,
			is_public=excluded.is_public, is_builtin=excluded.is_builtin`,
		rec.ID, rec.Name, rec.Description, rec.Category, rec.Code,
		string(params), rec.ReturnType, rec.Author, string(tags),
		rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(),
		rec.UsageCount, boolInt(rec.IsPublic), boolInt(rec.IsBuiltin))
	if err != nil {
		return nil, &store.StorageError{Op: "save", Err: err}
	}

	// The upsert leaves created_at and usage_count untouched on update; read
	// the authoritative row back.
	return s.Get(rec.ID)
}

const selectCols = `id, name, description, category, code, parameters, return_type,
	author, tags, created_at, updated_at, usage_count, is_public, is_builtin`

// Get returns the skill with the given id, or a *store.NotFoundError.
func (s *SkillStore) Get(id string) (*store.Skill, error) {
	row := s.db.QueryRow(`SELECT `+selectCols+` FROM skills WHERE id = ?`, id)
	rec, err := scanSkill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &store.NotFoundError{Key: id}
	}
	if err != nil {
		return nil, &store.StorageError{Op: "get", Err: err}
	}
	return rec, nil
}

// GetByName returns the first skill with an exact name match.
func (s *SkillStore) GetByName(name string) (*store.Skill, error) {
	row := s.db.QueryRow(`SELECT `+selectCols+` FROM skills WHERE name = ? LIMIT 1`, name)
	rec, err := scanSkill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &store.NotFoundError{Key: name}
	}
	if err != nil {
		return nil, &store.StorageError{Op: "get", Err: err}
	}
	return rec, nil
}

// List returns skills passing the filter, ordered by usage count descending.
// Filtering happens in Go against store.ListFilter so file and sqlite
// backends share one predicate definition.
func (s *SkillStore) List(filter *store.ListFilter) ([]*store.Skill, error) {
	rows, err := s.db.Query(`SELECT ` + selectCols + ` FROM skills ORDER BY usage_count DESC, name ASC`)
	if err != nil {
		return nil, &store.StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	var result []*store.Skill
	for rows.Next() {
		rec, err := scanSkill(rows)
		if err != nil {
			slog.Warn("skill store: unscannable row skipped", "error", err)
			continue
		}
		if filter.Match(rec) {
			result = append(result, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &store.StorageError{Op: "list", Err: err}
	}
	return result, nil
}

// Delete removes the record. Absent records return (false, nil).
func (s *SkillStore) Delete(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM skills WHERE id = ?`, id)
	if err != nil {
		return false, &store.StorageError{Op: "delete", Err: err}
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// IncrementUsage bumps the usage counter atomically. Missing ids are a no-op.
func (s *SkillStore) IncrementUsage(id string) error {
	_, err := s.db.Exec(
		`UPDATE skills SET usage_count = usage_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return &store.StorageError{Op: "increment", Err: err}
	}
	return nil
}

// Search matches query case-insensitively against name, description and tags.
func (s *SkillStore) Search(query string) ([]*store.Skill, error) {
	all, err := s.List(nil)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var result []*store.Skill
	for _, rec := range all {
		if strings.Contains(strings.ToLower(rec.Name), q) ||
			strings.Contains(strings.ToLower(rec.Description), q) {
			result = append(result, rec)
			continue
		}
		for _, tag := range rec.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				result = append(result, rec)
				break
			}
		}
	}
	return result, nil
}

// Close releases the database handle.
func (s *SkillStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSkill(row rowScanner) (*store.Skill, error) {
	var (
		rec                  store.Skill
		params, tags         string
		createdMS, updatedMS int64
		isPublic, isBuiltin  int
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.Category, &rec.Code,
		&params, &rec.ReturnType, &rec.Author, &tags,
		&createdMS, &updatedMS, &rec.UsageCount, &isPublic, &isBuiltin)
	if err != nil {
		return nil, err
	}
	if params != "" && params != "null" {
		if err := json.Unmarshal([]byte(params), &rec.Parameters); err != nil {
			return nil, fmt.Errorf("parameters for %s: %w", rec.ID, err)
		}
	}
	if tags != "" && tags != "null" {
		if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
			return nil, fmt.Errorf("tags for %s: %w", rec.ID, err)
		}
	}
	rec.CreatedAt = time.UnixMilli(createdMS).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	rec.IsPublic = isPublic != 0
	rec.IsBuiltin = isBuiltin != 0
	return &rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

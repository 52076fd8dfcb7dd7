// Package file implements store.SkillStore with one JSON document per skill,
// named <id>.json under a root directory created on first use.
//
// Writes go through a temp file followed by an atomic rename, so readers see
// either the previous or the new record, never a partial one. A single
// process-wide mutex serializes writers; concurrent IncrementUsage calls in
// one process therefore never lose updates. Cross-process writers are not
// coordinated (documented best-effort).
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/store"
)

// SkillStore is the file-per-record backend.
type SkillStore struct {
	root    string
	mu      sync.Mutex
	version atomic.Int64 // bumped on every write and by the directory watcher
}

// New creates a file store rooted at dir. The directory is created lazily on
// the first write, so a read-only startup against a missing directory works.
func New(dir string) *SkillStore {
	return &SkillStore{root: dir}
}

// Root returns the store's root directory (watched by skills.Watcher).
func (s *SkillStore) Root() string { return s.root }

// Version returns a counter that changes whenever the store content may have
// changed, including external edits reported by the watcher.
func (s *SkillStore) Version() int64 { return s.version.Load() }

// BumpVersion marks the store content as potentially changed.
func (s *SkillStore) BumpVersion() { s.version.Add(1) }

func (s *SkillStore) path(id string) string {
	return filepath.Join(s.root, id+".json")
}

// validID reports whether id is safe to use as a file name under the root.
// Anything outside the uuid alphabet (letters, digits, hyphen, underscore)
// would let an id like "../victim" escape the store directory.
func validID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// Save validates and persists the skill, assigning identity on first save.
func (s *SkillStore) Save(skill *store.Skill) (*store.Skill, error) {
	if err := store.ValidateSkill(skill); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := skill.Clone()
	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
		rec.CreatedAt = now
		rec.UsageCount = 0
	} else {
		if !validID(rec.ID) {
			return nil, &store.ValidationError{Problems: []string{fmt.Sprintf("invalid id %q", rec.ID)}}
		}
		// The on-disk record stays authoritative for creation time and usage.
		if existing, err := s.Get(rec.ID); err == nil {
			rec.CreatedAt = existing.CreatedAt
			rec.UsageCount = existing.UsageCount
		} else if rec.CreatedAt.IsZero() {
			// Re-save of a record created elsewhere; keep timestamps sane.
			rec.CreatedAt = now
		}
	}
	rec.UpdatedAt = now
	if rec.UpdatedAt.Before(rec.CreatedAt) {
		rec.UpdatedAt = rec.CreatedAt
	}

	if err := s.writeUnsafe(rec); err != nil {
		return nil, err
	}
	s.version.Add(1)
	slog.Debug("skill saved", "id", rec.ID, "name", rec.Name)
	return rec, nil
}

// writeUnsafe marshals the record and atomically replaces its file.
func (s *SkillStore) writeUnsafe(rec *store.Skill) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return &store.StorageError{Op: "mkdir", Err: err}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &store.StorageError{Op: "encode", Err: err}
	}
	tmp, err := os.CreateTemp(s.root, "."+rec.ID+".tmp-*")
	if err != nil {
		return &store.StorageError{Op: "write", Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &store.StorageError{Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &store.StorageError{Op: "write", Err: err}
	}
	if err := os.Rename(tmpName, s.path(rec.ID)); err != nil {
		os.Remove(tmpName)
		return &store.StorageError{Op: "rename", Err: err}
	}
	return nil
}

// Get returns the skill with the given id, or a *store.NotFoundError.
func (s *SkillStore) Get(id string) (*store.Skill, error) {
	if !validID(id) {
		return nil, &store.NotFoundError{Key: id}
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &store.NotFoundError{Key: id}
		}
		return nil, &store.StorageError{Op: "read", Err: err}
	}
	var rec store.Skill
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &store.StorageError{Op: "decode", Err: fmt.Errorf("%s: %w", id, err)}
	}
	return &rec, nil
}

// GetByName scans all records for an exact name match.
func (s *SkillStore) GetByName(name string) (*store.Skill, error) {
	all, err := s.List(nil)
	if err != nil {
		return nil, err
	}
	for _, rec := range all {
		if rec.Name == name {
			return rec, nil
		}
	}
	return nil, &store.NotFoundError{Key: name}
}

// List reads every record, applies the filter, and returns the survivors
// sorted by usage count descending. Records that fail to parse are skipped
// with a warning rather than failing the whole listing.
func (s *SkillStore) List(filter *store.ListFilter) ([]*store.Skill, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &store.StorageError{Op: "list", Err: err}
	}

	var result []*store.Skill
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, name))
		if err != nil {
			slog.Warn("skill store: unreadable record skipped", "file", name, "error", err)
			continue
		}
		var rec store.Skill
		if err := json.Unmarshal(data, &rec); err != nil {
			slog.Warn("skill store: unparseable record skipped", "file", name, "error", err)
			continue
		}
		if filter.Match(&rec) {
			result = append(result, &rec)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UsageCount > result[j].UsageCount
	})
	return result, nil
}

// Delete removes the record. Absent records return (false, nil).
func (s *SkillStore) Delete(id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &store.StorageError{Op: "delete", Err: err}
	}
	s.version.Add(1)
	slog.Debug("skill deleted", "id", id)
	return true, nil
}

// IncrementUsage bumps the usage counter by one. Missing records are a no-op.
func (s *SkillStore) IncrementUsage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Get(id)
	if err != nil {
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}
	rec.UsageCount++
	rec.UpdatedAt = time.Now().UTC()
	if err := s.writeUnsafe(rec); err != nil {
		return err
	}
	s.version.Add(1)
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

// Close is a no-op for the file backend.
func (s *SkillStore) Close() error { return nil }

package store

import (
	"fmt"
	"strings"
)

// ValidationError reports required-field or category violations at save time.
// A skill that fails validation is never persisted, not even partially.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "skill validation failed: " + strings.Join(e.Problems, "; ")
}

// NotFoundError reports a lookup by id or name that matched nothing.
// Distinct from execution failures so callers can suggest creating the skill
// instead of fixing its code.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("skill not found: %s", e.Key)
}

// StorageError reports a durable-layer failure other than not-found. Fatal to
// the current operation; never swallowed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("skill store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ValidateSkill checks the required fields and category of a skill before it
// is handed to a backend. Returns a *ValidationError listing every problem.
func ValidateSkill(s *Skill) error {
	var problems []string
	if strings.TrimSpace(s.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(s.Description) == "" {
		problems = append(problems, "description is required")
	}
	if strings.TrimSpace(s.Code) == "" {
		problems = append(problems, "code is required")
	}
	if s.Category == "" {
		problems = append(problems, "category is required")
	} else if !ValidCategory(s.Category) {
		problems = append(problems, fmt.Sprintf("unknown category %q (valid: %s)", s.Category, strings.Join(Categories, ", ")))
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

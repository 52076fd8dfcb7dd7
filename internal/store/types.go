// Package store defines the Skill model and the SkillStore contract shared by
// all persistence backends. Backends live in the file/ and sqlite/ subpackages.
package store

import "time"

// Skill categories. Unknown categories are rejected at save time; the tool
// layer buckets anything it cannot classify under CategoryOther before saving.
const (
	CategoryMail     = "mail"
	CategoryCalendar = "calendar"
	CategoryTeams    = "teams"
	CategoryFiles    = "files"
	CategorySites    = "sites"
	CategoryPlanner  = "planner"
	CategoryTodo     = "todo"
	CategoryOther    = "other"
)

// Categories lists every valid skill category.
var Categories = []string{
	CategoryMail,
	CategoryCalendar,
	CategoryTeams,
	CategoryFiles,
	CategorySites,
	CategoryPlanner,
	CategoryTodo,
	CategoryOther,
}

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParamSpec declares a single skill parameter.
type ParamSpec struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Skill is the persisted unit of reusable automation.
//
// ID is assigned exactly once at first save and never changes. CreatedAt is
// set once; every later save refreshes UpdatedAt only. UsageCount starts at 0
// and only moves through IncrementUsage.
type Skill struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Category    string               `json:"category"`
	Code        string               `json:"code"`
	Parameters  map[string]ParamSpec `json:"parameters,omitempty"`
	ReturnType  string               `json:"returnType,omitempty"`
	Author      string               `json:"author,omitempty"`
	Tags        []string             `json:"tags,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
	UsageCount  int                  `json:"usageCount"`
	IsPublic    bool                 `json:"isPublic"`
	IsBuiltin   bool                 `json:"isBuiltin"`
}

// Clone returns a deep copy so callers can mutate load-time copies freely.
func (s *Skill) Clone() *Skill {
	c := *s
	if s.Parameters != nil {
		c.Parameters = make(map[string]ParamSpec, len(s.Parameters))
		for k, v := range s.Parameters {
			c.Parameters[k] = v
		}
	}
	if s.Tags != nil {
		c.Tags = append([]string(nil), s.Tags...)
	}
	return &c
}

// HasTag reports whether the skill carries the given tag.
func (s *Skill) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ListFilter narrows List results. All set fields must match (conjunction).
// A nil filter returns everything.
type ListFilter struct {
	Category  string
	Author    string
	IsPublic  *bool
	IsBuiltin *bool
	Tags      []string // at least one must be present on the skill
}

// Match reports whether the skill passes every set predicate.
func (f *ListFilter) Match(s *Skill) bool {
	if f == nil {
		return true
	}
	if f.Category != "" && s.Category != f.Category {
		return false
	}
	if f.Author != "" && s.Author != f.Author {
		return false
	}
	if f.IsPublic != nil && s.IsPublic != *f.IsPublic {
		return false
	}
	if f.IsBuiltin != nil && s.IsBuiltin != *f.IsBuiltin {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, t := range f.Tags {
			if s.HasTag(t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SkillStore is the persistence contract implemented by the file and sqlite
// backends.
//
// Save assigns ID/CreatedAt on first save and refreshes UpdatedAt on every
// save. Get/GetByName return a *NotFoundError for absent records. Delete is
// idempotent and reports whether a record was removed. IncrementUsage is a
// no-op for absent records. List orders by UsageCount descending.
type SkillStore interface {
	Save(skill *Skill) (*Skill, error)
	Get(id string) (*Skill, error)
	GetByName(name string) (*Skill, error)
	List(filter *ListFilter) ([]*Skill, error)
	Delete(id string) (bool, error)
	IncrementUsage(id string) error
	Search(query string) ([]*Skill, error)
	Close() error
}

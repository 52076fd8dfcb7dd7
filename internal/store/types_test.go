package store

import "testing"

func TestValidateSkill(t *testing.T) {
	valid := Skill{
		Name:        "unread-count",
		Description: "Counts unread inbox mail",
		Category:    CategoryMail,
		Code:        "return 1;",
	}

	tests := []struct {
		name    string
		mutate  func(*Skill)
		wantErr bool
	}{
		{"valid", func(s *Skill) {}, false},
		{"missing_name", func(s *Skill) { s.Name = "" }, true},
		{"whitespace_name", func(s *Skill) { s.Name = "   " }, true},
		{"missing_description", func(s *Skill) { s.Description = "" }, true},
		{"missing_code", func(s *Skill) { s.Code = "" }, true},
		{"missing_category", func(s *Skill) { s.Category = "" }, true},
		{"unknown_category", func(s *Skill) { s.Category = "finance" }, true},
		{"other_category", func(s *Skill) { s.Category = CategoryOther }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := ValidateSkill(&s)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSkill() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSkillCollectsAllProblems(t *testing.T) {
	err := ValidateSkill(&Skill{})
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if len(ve.Problems) != 4 {
		t.Errorf("problems = %d, want 4: %v", len(ve.Problems), ve.Problems)
	}
}

func TestListFilterMatch(t *testing.T) {
	yes := true
	skill := &Skill{
		Name:      "today-agenda",
		Category:  CategoryCalendar,
		Author:    "alice",
		IsPublic:  true,
		IsBuiltin: false,
		Tags:      []string{"daily", "calendar"},
	}

	tests := []struct {
		name   string
		filter *ListFilter
		want   bool
	}{
		{"nil_filter", nil, true},
		{"empty_filter", &ListFilter{}, true},
		{"category_match", &ListFilter{Category: CategoryCalendar}, true},
		{"category_miss", &ListFilter{Category: CategoryMail}, false},
		{"author_match", &ListFilter{Author: "alice"}, true},
		{"author_miss", &ListFilter{Author: "bob"}, false},
		{"public_match", &ListFilter{IsPublic: &yes}, true},
		{"builtin_miss", &ListFilter{IsBuiltin: &yes}, false},
		{"tag_any_match", &ListFilter{Tags: []string{"weekly", "daily"}}, true},
		{"tag_miss", &ListFilter{Tags: []string{"weekly"}}, false},
		{"conjunction", &ListFilter{Category: CategoryCalendar, Author: "bob"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(skill); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSkillClone(t *testing.T) {
	orig := &Skill{
		Name:       "recent-files",
		Parameters: map[string]ParamSpec{"count": {Type: "number", Default: float64(10)}},
		Tags:       []string{"files"},
	}
	c := orig.Clone()
	c.Parameters["count"] = ParamSpec{Type: "string"}
	c.Tags[0] = "changed"

	if orig.Parameters["count"].Type != "number" {
		t.Error("Clone shares the parameters map")
	}
	if orig.Tags[0] != "files" {
		t.Error("Clone shares the tags slice")
	}
}

package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Mirec2221-dotcom/ms-365-mcp-server/internal/store"
)

func newTestStore(t *testing.T) *SkillStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "skills.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSkill() *store.Skill {
	return &store.Skill{
		Name:        "unread-count",
		Description: "Counts unread inbox messages",
		Category:    store.CategoryMail,
		Code:        "const page = await cap.mail.list({ filter: 'isRead eq false' });\nreturn page.value.length;",
		Tags:        []string{"mail", "inbox"},
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	in := sampleSkill()
	in.Parameters = map[string]store.ParamSpec{
		"count": {Type: "number", Required: true, Default: float64(5)},
	}
	in.ReturnType = "number"
	in.IsPublic = true

	saved, err := s.Save(in)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == "" {
		t.Error("ID not assigned")
	}
	if saved.UsageCount != 0 {
		t.Errorf("UsageCount = %d, want 0", saved.UsageCount)
	}
	if !saved.CreatedAt.Equal(saved.UpdatedAt) {
		t.Error("first save: CreatedAt != UpdatedAt")
	}

	got, err := s.Get(saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != in.Name || got.Code != in.Code || got.Category != in.Category {
		t.Error("core fields did not round-trip")
	}
	p, ok := got.Parameters["count"]
	if !ok || p.Type != "number" || !p.Required || p.Default != float64(5) {
		t.Errorf("parameters did not round-trip: %+v", got.Parameters)
	}
	if len(got.Tags) != 2 {
		t.Errorf("tags did not round-trip: %v", got.Tags)
	}
	if !got.IsPublic {
		t.Error("IsPublic did not round-trip")
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save(&store.Skill{Name: "x", Category: "bogus"})
	var ve *store.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *store.ValidationError", err)
	}
}

func TestUpsertPreservesCreatedAtAndUsage(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.Save(sampleSkill())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.IncrementUsage(saved.ID); err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}

	saved.Description = "updated description"
	updated, err := s.Save(saved)
	if err != nil {
		t.Fatalf("re-Save: %v", err)
	}

	if !updated.CreatedAt.Equal(saved.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", saved.CreatedAt, updated.CreatedAt)
	}
	if updated.UsageCount != 1 {
		t.Errorf("UsageCount = %d after update, want 1 (upsert must not reset it)", updated.UsageCount)
	}
	if updated.Description != "updated description" {
		t.Error("description not updated")
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("missing")
	var nf *store.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *store.NotFoundError", err)
	}
}

func TestGetByName(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.Save(sampleSkill())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.GetByName("unread-count")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.ID != saved.ID {
		t.Errorf("ID = %s, want %s", got.ID, saved.ID)
	}

	_, err = s.GetByName("nope")
	var nf *store.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("error = %v, want *store.NotFoundError", err)
	}
}

func TestListOrderAndFilter(t *testing.T) {
	s := newTestStore(t)

	mk := func(name, category string, uses int) {
		t.Helper()
		sk := sampleSkill()
		sk.Name = name
		sk.Category = category
		saved, err := s.Save(sk)
		if err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
		for i := 0; i < uses; i++ {
			if err := s.IncrementUsage(saved.ID); err != nil {
				t.Fatalf("IncrementUsage: %v", err)
			}
		}
	}
	mk("rarely-used", store.CategoryMail, 0)
	mk("popular", store.CategoryMail, 4)
	mk("agenda", store.CategoryCalendar, 2)

	all, err := s.List(nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Name != "popular" || all[1].Name != "agenda" {
		t.Errorf("order = %s, %s; want popular, agenda", all[0].Name, all[1].Name)
	}

	calendar, err := s.List(&store.ListFilter{Category: store.CategoryCalendar})
	if err != nil {
		t.Fatalf("List(calendar): %v", err)
	}
	if len(calendar) != 1 || calendar[0].Name != "agenda" {
		t.Errorf("calendar filter = %v", calendar)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.Save(sampleSkill())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	removed, err := s.Delete(saved.ID)
	if err != nil || !removed {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", removed, err)
	}
	removed, err = s.Delete(saved.ID)
	if err != nil || removed {
		t.Fatalf("second Delete = (%v, %v), want (false, nil)", removed, err)
	}
}

func TestIncrementUsageMonotonic(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.Save(sampleSkill())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	for i := 1; i <= 5; i++ {
		if err := s.IncrementUsage(saved.ID); err != nil {
			t.Fatalf("IncrementUsage: %v", err)
		}
	}
	got, err := s.Get(saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UsageCount != 5 {
		t.Errorf("UsageCount = %d, want 5", got.UsageCount)
	}

	if err := s.IncrementUsage("missing"); err != nil {
		t.Errorf("IncrementUsage(missing) = %v, want nil", err)
	}
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)

	mk := func(name, desc string, tags ...string) {
		t.Helper()
		sk := sampleSkill()
		sk.Name = name
		sk.Description = desc
		sk.Tags = tags
		if _, err := s.Save(sk); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}
	mk("unread-count", "Counts unread inbox messages", "mail")
	mk("today-agenda", "Lists today's calendar events", "daily")

	got, err := s.Search("AGENDA")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Name != "today-agenda" {
		t.Errorf("Search(AGENDA) = %v", got)
	}

	got, err = s.Search("daily")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("tag search = %d results, want 1", len(got))
	}
}

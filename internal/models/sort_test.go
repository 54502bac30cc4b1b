package models

import (
	"testing"
	"time"
)

func makeMaterial(name, category string, uploadedAt time.Time) *Material {
	m := &Material{FileName: name, UploadedAt: uploadedAt}
	if category != "" {
		m.Category = &category
	}
	return m
}

func materialNames(materials []*Material) []string {
	names := make([]string, len(materials))
	for i, m := range materials {
		names[i] = m.FileName
	}
	return names
}

func TestSortMaterials_Recent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	input := []*Material{
		makeMaterial("old.pdf", "Science", base),
		makeMaterial("newest.pdf", "History", base.Add(2*time.Hour)),
		makeMaterial("middle.pdf", "Science", base.Add(time.Hour)),
	}

	got := materialNames(SortMaterials(input, SortRecent))
	want := []string{"newest.pdf", "middle.pdf", "old.pdf"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Recent sort = %v, want %v", got, want)
		}
	}
}

func TestSortMaterials_ThemeTiesBreakByNewest(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	input := []*Material{
		makeMaterial("sci-old.pdf", "Science", base),
		makeMaterial("hist.pdf", "History", base.Add(time.Hour)),
		makeMaterial("sci-new.pdf", "Science", base.Add(2*time.Hour)),
	}

	got := materialNames(SortMaterials(input, SortTheme))
	want := []string{"hist.pdf", "sci-new.pdf", "sci-old.pdf"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Theme sort = %v, want %v", got, want)
		}
	}
}

func TestSortMaterials_NameCaseInsensitive(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	input := []*Material{
		makeMaterial("banana.pdf", "", base),
		makeMaterial("Apple.pdf", "", base),
		makeMaterial("cherry.pdf", "", base),
	}

	got := materialNames(SortMaterials(input, SortName))
	want := []string{"Apple.pdf", "banana.pdf", "cherry.pdf"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Name sort = %v, want %v", got, want)
		}
	}
}

func TestSortMaterials_DoesNotMutateInput(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	input := []*Material{
		makeMaterial("b.pdf", "", base),
		makeMaterial("a.pdf", "", base.Add(time.Hour)),
	}

	SortMaterials(input, SortName)

	if input[0].FileName != "b.pdf" || input[1].FileName != "a.pdf" {
		t.Error("Input slice order changed; sorting must work on a copy")
	}
}

func TestSortMaterials_Idempotent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	input := []*Material{
		makeMaterial("c.pdf", "Science", base),
		makeMaterial("a.pdf", "History", base.Add(time.Hour)),
		makeMaterial("b.pdf", "Science", base.Add(2*time.Hour)),
	}

	for _, mode := range []string{SortRecent, SortTheme, SortName} {
		once := SortMaterials(input, mode)
		twice := SortMaterials(once, mode)
		for i := range once {
			if once[i] != twice[i] {
				t.Errorf("Mode %q not idempotent", mode)
				break
			}
		}
	}
}

func TestSortMaterials_UnknownModeFallsBackToRecent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	input := []*Material{
		makeMaterial("old.pdf", "", base),
		makeMaterial("new.pdf", "", base.Add(time.Hour)),
	}

	got := SortMaterials(input, "bogus")
	if got[0].FileName != "new.pdf" {
		t.Errorf("Unknown mode should sort by recency, got %v", materialNames(got))
	}
}

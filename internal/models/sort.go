package models

import (
	"sort"
	"strings"
)

// Material list sort modes.
const (
	SortRecent = "recent" // upload date descending
	SortTheme  = "theme"  // category ascending, then upload date descending
	SortName   = "name"   // file name ascending, then upload date descending
)

// SortMaterials returns a sorted copy of materials. It is a pure read-side
// projection: the input slice keeps its stored order, and sorting the result
// again yields the same order. Ties always break by upload time descending.
func SortMaterials(materials []*Material, mode string) []*Material {
	out := make([]*Material, len(materials))
	copy(out, materials)

	newerFirst := func(a, b *Material) bool {
		return a.UploadedAt.After(b.UploadedAt)
	}

	switch mode {
	case SortTheme:
		sort.SliceStable(out, func(i, j int) bool {
			ci, cj := categoryOf(out[i]), categoryOf(out[j])
			if ci != cj {
				return ci < cj
			}
			return newerFirst(out[i], out[j])
		})
	case SortName:
		sort.SliceStable(out, func(i, j int) bool {
			ni := strings.ToLower(out[i].FileName)
			nj := strings.ToLower(out[j].FileName)
			if ni != nj {
				return ni < nj
			}
			return newerFirst(out[i], out[j])
		})
	default: // SortRecent
		sort.SliceStable(out, func(i, j int) bool {
			return newerFirst(out[i], out[j])
		})
	}

	return out
}

func categoryOf(m *Material) string {
	if m.Category == nil {
		return ""
	}
	return *m.Category
}

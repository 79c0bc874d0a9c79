package entity

import (
	"slices"

	"github.com/google/uuid"
)

// Condition is one eligibility/requirement statement extracted from the
// document. A condition spanning multiple pages stays one record with a
// multi-entry Pages list; downstream stages test page membership instead of
// assuming one condition per page. Immutable once persisted.
type Condition struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Category   string    `json:"category"`
	Label      string    `json:"label,omitempty"`
	Content    string    `json:"content"`
	Section    string    `json:"section,omitempty"`
	Pages      []int     `json:"pages"` // 1-indexed, never empty

	// BBox optionally carries per-page polygons when extraction also
	// yields geometry. Outer index follows Pages.
	BBox [][]float64 `json:"bbox,omitempty"`
}

// AppliesTo reports whether the condition is drawn from the given page.
func (c *Condition) AppliesTo(page int) bool {
	return slices.Contains(c.Pages, page)
}

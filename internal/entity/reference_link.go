package entity

import "github.com/google/uuid"

// ReferenceLink is an evidentiary association between one Condition and one
// Block on a page where that condition applies. Many-to-many; a condition may
// legitimately have zero linked blocks.
type ReferenceLink struct {
	ID          uuid.UUID `json:"id"`
	DocumentID  uuid.UUID `json:"document_id"`
	ConditionID uuid.UUID `json:"condition_id"`
	BlockID     uuid.UUID `json:"block_id"`
}

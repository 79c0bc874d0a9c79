package entity

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/jwlim/gonggo/constants"
)

// PageMappingResult is the audit record of one reference-mapping attempt on
// one page, created whether or not the attempt succeeded. Its absence for a
// page means no relevant condition existed there; status=error means mapping
// was attempted and failed.
type PageMappingResult struct {
	ID           uuid.UUID               `json:"id"`
	DocumentID   uuid.UUID               `json:"document_id"`
	PageNumber   int                     `json:"page_number"`
	Status       constants.MappingStatus `json:"status"`
	RawResponse  json.RawMessage         `json:"raw_response,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
}

package entity

import (
	"encoding/json"

	"github.com/google/uuid"
)

// CallMetadata records one LLM invocation (extraction or mapping) for
// reproducibility: which model, which prompts, and the raw reply. Persisted
// alongside the records the call produced.
type CallMetadata struct {
	ID           uuid.UUID       `json:"id"`
	DocumentID   uuid.UUID       `json:"document_id"`
	Stage        string          `json:"stage"` // "extract" | "mapref"
	Model        string          `json:"model"`
	SystemPrompt string          `json:"system_prompt"`
	UserPrompt   string          `json:"user_prompt"`
	RawResponse  json.RawMessage `json:"raw_response,omitempty"`
}

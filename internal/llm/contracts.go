// Package llm holds the provider-agnostic LLM surface: submit prompt turns
// (text, images, or a native PDF), receive a text reply, and optionally
// continue the same conversation. The shared retry-validate loop is layered
// on top.
package llm

import (
	"context"
	"encoding/json"
)

// Content is one piece of a user turn. Exactly one field is set.
type Content struct {
	Text string
	PNG  []byte // png-encoded image
	PDF  []byte // raw pdf bytes, only for providers that accept it
}

// Request is the initial prompt for one conversation.
type Request struct {
	System string
	User   []Content
}

// Reply is one textual LLM reply plus its raw wire payload for auditing.
type Reply struct {
	Text string
	Raw  json.RawMessage
}

// Conversation continues a started exchange with corrective follow-ups.
// Providers with server-side conversation state resume it; others replay the
// accumulated history, which includes the previous malformed content.
type Conversation interface {
	Send(ctx context.Context, text string) (*Reply, error)
}

// Provider is one LLM supplier (OpenAI, Gemini). Implementations are chosen
// via explicit configuration, never module-level globals, and are safe to
// share across sequential document runs.
type Provider interface {
	Name() string
	Model() string

	// AcceptsPDF reports whether Generate can take native PDF bytes.
	// Callers rasterize pages for providers that cannot.
	AcceptsPDF() bool

	Generate(ctx context.Context, req Request) (*Reply, Conversation, error)
}

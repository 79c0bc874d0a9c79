package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/jwlim/gonggo/internal/llm"
)

// Client implements llm.Provider over the Gemini API. Gemini accepts native
// PDF bytes and keeps conversation state in a chat session, so corrections
// continue the same exchange server-side.
type Client struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

func NewClient(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = "gemini-2.5-pro"
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{client: gc, model: model, log: logger}, nil
}

func (c *Client) Name() string  { return "gemini" }
func (c *Client) Model() string { return c.model }

// AcceptsPDF is true: the document is uploaded as-is instead of page images.
func (c *Client) AcceptsPDF() bool { return true }

func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Reply, llm.Conversation, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	parts := make([]genai.Part, 0, len(req.User))
	for _, part := range req.User {
		switch {
		case part.Text != "":
			parts = append(parts, genai.Text(part.Text))
		case part.PNG != nil:
			parts = append(parts, genai.ImageData("png", part.PNG))
		case part.PDF != nil:
			parts = append(parts, genai.Blob{MIMEType: "application/pdf", Data: part.PDF})
		}
	}

	session := model.StartChat()
	conv := &conversation{client: c, session: session}
	reply, err := conv.send(ctx, parts...)
	if err != nil {
		return nil, nil, err
	}
	return reply, conv, nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.client.Close()
}

// conversation wraps a server-side chat session.
type conversation struct {
	client  *Client
	session *genai.ChatSession
}

func (cv *conversation) Send(ctx context.Context, text string) (*llm.Reply, error) {
	return cv.send(ctx, genai.Text(text))
}

func (cv *conversation) send(ctx context.Context, parts ...genai.Part) (*llm.Reply, error) {
	c := cv.client
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("gemini.request", "req_id", rid, "model", c.model, "parts", len(parts))

	resp, err := cv.session.SendMessage(ctx, parts...)
	if err != nil {
		c.log.Error("gemini.call_error",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("gemini call: %w", err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	text := strings.TrimSpace(sb.String())

	raw, err := json.Marshal(resp)
	if err != nil {
		c.log.Warn("gemini.raw_marshal_error", "req_id", rid, "error", err)
		raw = nil
	}

	c.log.Info("gemini.ok",
		"req_id", rid, "reply_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds())
	return &llm.Reply{Text: text, Raw: raw}, nil
}

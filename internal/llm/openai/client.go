package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwlim/gonggo/internal/llm"
)

// Client implements llm.Provider over the chat/completions endpoint. OpenAI
// keeps no server-side conversation state here, so conversations replay the
// accumulated message history, which carries the previous malformed content
// back to the model on every correction.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

func (c *Client) Name() string  { return "openai" }
func (c *Client) Model() string { return c.cfg.Model }

// AcceptsPDF is false: pages are rasterized and attached as images.
func (c *Client) AcceptsPDF() bool { return false }

func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Reply, llm.Conversation, error) {
	var messages []map[string]any
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}

	content := make([]map[string]any, 0, len(req.User))
	for _, part := range req.User {
		switch {
		case part.Text != "":
			content = append(content, map[string]any{"type": "text", "text": part.Text})
		case part.PNG != nil:
			dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(part.PNG)
			content = append(content, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": dataURL},
			})
		case part.PDF != nil:
			return nil, nil, fmt.Errorf("openai provider does not accept native pdf input")
		}
	}
	messages = append(messages, map[string]any{"role": "user", "content": content})

	conv := &conversation{client: c, messages: messages}
	reply, err := conv.complete(ctx)
	if err != nil {
		return nil, nil, err
	}
	return reply, conv, nil
}

// conversation replays history on every turn.
type conversation struct {
	client   *Client
	messages []map[string]any
}

func (cv *conversation) Send(ctx context.Context, text string) (*llm.Reply, error) {
	cv.messages = append(cv.messages, map[string]any{"role": "user", "content": text})
	return cv.complete(ctx)
}

func (cv *conversation) complete(ctx context.Context) (*llm.Reply, error) {
	c := cv.client
	rid := uuid.New().String()
	start := time.Now()

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"top_p":       1,
		"messages":    cv.messages,
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	c.log.Info("openai.request", "req_id", rid, "model", c.cfg.Model, "turns", len(cv.messages))

	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("openai.http_error",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("openai.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("openai.no_choices",
			"req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("no choices in openai response")
	}

	text := strings.TrimSpace(cc.Choices[0].Message.Content)
	cv.messages = append(cv.messages, map[string]any{"role": "assistant", "content": text})

	c.log.Info("openai.ok",
		"req_id", rid, "reply_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds())
	return &llm.Reply{Text: text, Raw: raw}, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}

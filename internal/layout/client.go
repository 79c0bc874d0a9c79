package layout

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

	"github.com/jwlim/gonggo/internal/common"
)

// HTTPBackend talks to a layout-inference service over JSON. The service
// holds the model weights (loaded once for its lifetime); this client holds
// no per-document state and may be shared across sequential runs.
type HTTPBackend struct {
	baseURL string
	modelID string
	client  *http.Client
	logger  *slog.Logger
}

type HTTPBackendConfig struct {
	BaseURL string
	ModelID string
	Timeout time.Duration
}

func NewHTTPBackend(cfg HTTPBackendConfig, logger *slog.Logger) (*HTTPBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		return nil, common.NewAppError("DETECTOR_CONFIG", "base URL is required", common.ErrInvalidInput)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		modelID: cfg.ModelID,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}, nil
}

func (b *HTTPBackend) ModelID() string {
	return b.modelID
}

// Healthy checks the service before the first document; a detector that
// cannot come up is fatal for the run.
func (b *HTTPBackend) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("detector health check: %w: %w", common.ErrFatalDocument, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			b.logger.Warn("layout.http.body_close_error", "error", err)
		}
	}()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("detector health check status %d: %w", resp.StatusCode, common.ErrFatalDocument)
	}
	return nil
}

func (b *HTTPBackend) Detect(ctx context.Context, pagePNG []byte) ([]RawDetection, error) {
	reqID := uuid.New().String()
	start := time.Now()

	body := map[string]any{
		"model": b.modelID,
		"image": base64.StdEncoding.EncodeToString(pagePNG),
	}
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode detect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/detect", bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	b.logger.Info("layout.http.request", "req_id", reqID, "content_length", len(bs))

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Error("layout.http.send_error",
			"req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			b.logger.Warn("layout.http.body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)

	b.logger.Info("layout.http.response",
		"req_id", reqID, "status", resp.StatusCode,
		"bytes", len(raw), "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("detector returned status %d", resp.StatusCode)
	}

	var out struct {
		Detections []RawDetection `json:"detections"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode detect response: %w", err)
	}
	return out.Detections, nil
}

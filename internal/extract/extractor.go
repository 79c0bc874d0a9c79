// Package extract runs the document-level structured extraction: one LLM
// call over every page, validated and flattened into Condition records.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jwlim/gonggo/internal/common"
	"github.com/jwlim/gonggo/internal/entity"
	"github.com/jwlim/gonggo/internal/llm"
	"github.com/jwlim/gonggo/internal/rasterize"
)

// Document is the page-addressable view of one opened PDF.
// Satisfied by *rasterize.Document.
type Document interface {
	PageCount() int
	RenderPage(page int) (image.Image, error)
	Bytes() ([]byte, error)
}

// Extractor produces the full condition set for one document in a single
// provider call. It either returns every condition or fails the document;
// no partial set is ever returned.
type Extractor struct {
	provider    llm.Provider
	maxAttempts int
	logger      *slog.Logger
}

func NewExtractor(provider llm.Provider, maxAttempts int, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = llm.DefaultMaxAttempts
	}
	return &Extractor{provider: provider, maxAttempts: maxAttempts, logger: logger}
}

// Result carries the flattened conditions plus the call metadata for audit.
type Result struct {
	Conditions []entity.Condition
	Call       entity.CallMetadata
}

// Wire shapes of the validated reply. category -> items -> conditions.
type wireCondition struct {
	Content string      `json:"content"`
	Section string      `json:"section"`
	Pages   []int       `json:"pages"`
	BBox    [][]float64 `json:"bbox,omitempty"`
}

type wireItem struct {
	Label      string          `json:"label"`
	Conditions []wireCondition `json:"conditions"`
}

type wireCategory struct {
	Category string     `json:"category"`
	Items    []wireItem `json:"items"`
}

// Extract runs the single document-level call. The whole PDF goes to the
// provider natively when it accepts one; otherwise every page is rasterized
// and attached in order, each preceded by its page number.
func (e *Extractor) Extract(ctx context.Context, docID uuid.UUID, doc Document) (*Result, error) {
	start := time.Now()

	user, err := e.buildUserTurn(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrFatalDocument, err)
	}

	e.logger.Info("extract.start",
		"document_id", docID,
		"provider", e.provider.Name(),
		"model", e.provider.Model(),
		"pages", doc.PageCount(),
		"native_pdf", e.provider.AcceptsPDF(),
	)

	reply, conv, err := e.provider.Generate(ctx, llm.Request{System: SystemPrompt, User: user})
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w: %w", common.ErrProviderCall, err)
	}
	if reply == nil || reply.Text == "" {
		// Nothing to correct against; retrying has no target.
		return nil, fmt.Errorf("extraction returned no content: %w", common.ErrFatalDocument)
	}

	loop := llm.RetryLoop{
		Schema:      BuildConditionsJSONSchema(),
		MaxAttempts: e.maxAttempts,
		Logger:      e.logger,
	}
	raw, err := loop.Run(ctx, conv, reply)
	if err != nil {
		return nil, fmt.Errorf("extraction validation: %w: %w", common.ErrFatalDocument, err)
	}

	var categories []wireCategory
	if err := json.Unmarshal(raw, &categories); err != nil {
		return nil, fmt.Errorf("decode validated extraction: %w", err)
	}

	conditions := flatten(docID, categories)
	e.logger.Info("extract.ok",
		"document_id", docID,
		"categories", len(categories),
		"conditions", len(conditions),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return &Result{
		Conditions: conditions,
		Call: entity.CallMetadata{
			ID:           uuid.New(),
			DocumentID:   docID,
			Stage:        "extract",
			Model:        e.provider.Model(),
			SystemPrompt: SystemPrompt,
			UserPrompt:   UserPrompt,
			RawResponse:  reply.Raw,
		},
	}, nil
}

func (e *Extractor) buildUserTurn(doc Document) ([]llm.Content, error) {
	user := []llm.Content{{Text: UserPrompt}}

	if e.provider.AcceptsPDF() {
		pdfBytes, err := doc.Bytes()
		if err != nil {
			return nil, err
		}
		return append(user, llm.Content{PDF: pdfBytes}), nil
	}

	for page := 1; page <= doc.PageCount(); page++ {
		img, err := doc.RenderPage(page)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", page, err)
		}
		pngBytes, err := rasterize.EncodePNG(img)
		if err != nil {
			return nil, fmt.Errorf("encode page %d: %w", page, err)
		}
		user = append(user,
			llm.Content{Text: fmt.Sprintf("page_number: %d", page)},
			llm.Content{PNG: pngBytes},
		)
	}
	return user, nil
}

// flatten carries category and item label down onto each leaf condition. A
// condition spanning multiple pages stays one record.
func flatten(docID uuid.UUID, categories []wireCategory) []entity.Condition {
	var out []entity.Condition
	for _, cat := range categories {
		for _, item := range cat.Items {
			for _, cond := range item.Conditions {
				out = append(out, entity.Condition{
					ID:         uuid.New(),
					DocumentID: docID,
					Category:   cat.Category,
					Label:      item.Label,
					Content:    cond.Content,
					Section:    cond.Section,
					Pages:      cond.Pages,
					BBox:       cond.BBox,
				})
			}
		}
	}
	return out
}

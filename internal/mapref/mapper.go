// Package mapref correlates extracted conditions with detected layout blocks,
// one page at a time, resolving LLM-reported indices into ReferenceLinks.
package mapref

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
)

// Mapper asks the LLM, per page, which blocks evidence which conditions.
type Mapper struct {
	provider    llm.Provider
	maxAttempts int
	logger      *slog.Logger
}

func NewMapper(provider llm.Provider, maxAttempts int, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = llm.DefaultMaxAttempts
	}
	return &Mapper{provider: provider, maxAttempts: maxAttempts, logger: logger}
}

// PageInput is everything the mapper needs for one page. Blocks and
// Conditions are ordered slices; their positions are the indices the prompt
// enumerates and the reply refers back to.
type PageInput struct {
	DocumentID uuid.UUID
	Page       int
	Image      image.Image
	Source     PageSource
	Blocks     []entity.Block
	Conditions []entity.Condition
}

// Wire shape of the validated reply.
type wireMatchedBlock struct {
	BlockIndex int    `json:"block_index"`
	Type       string `json:"type"`
}

type wireMappedCondition struct {
	Content string             `json:"content"`
	Blocks  []wireMatchedBlock `json:"blocks"`
}

type wireMapping struct {
	NumBlocks     int                   `json:"num_blocks"`
	NumConditions int                   `json:"num_conditions"`
	Conditions    []wireMappedCondition `json:"conditions"`
}

// MapPage maps one page. Every failure is caught and returned as
// (no links, raw response if any, error); a page's failure never aborts the
// rest of the document. A page with conditions but no blocks is an error,
// not a skip; its conditions cannot be evidenced.
func (m *Mapper) MapPage(ctx context.Context, in PageInput) ([]entity.ReferenceLink, json.RawMessage, error) {
	start := time.Now()

	if len(in.Conditions) == 0 {
		return nil, nil, fmt.Errorf("page %d: no conditions to map: %w", in.Page, common.ErrRecoverablePage)
	}
	if len(in.Blocks) == 0 {
		m.logger.Warn("mapref.page.no_blocks", "document_id", in.DocumentID, "page", in.Page)
		return nil, nil, fmt.Errorf("page %d has conditions but no detected blocks: %w",
			in.Page, common.ErrRecoverablePage)
	}

	user, err := m.buildUserTurn(in)
	if err != nil {
		m.logger.Error("mapref.page.prompt_error",
			"document_id", in.DocumentID, "page", in.Page, "error", err)
		return nil, nil, fmt.Errorf("page %d: %w: %w", in.Page, common.ErrRecoverablePage, err)
	}

	m.logger.Info("mapref.page.start",
		"document_id", in.DocumentID, "page", in.Page,
		"blocks", len(in.Blocks), "conditions", len(in.Conditions))

	reply, conv, err := m.provider.Generate(ctx, llm.Request{System: SystemPrompt, User: user})
	if err != nil {
		m.logger.Error("mapref.page.call_error",
			"document_id", in.DocumentID, "page", in.Page, "error", err)
		return nil, nil, fmt.Errorf("page %d: %w: %w", in.Page, common.ErrProviderCall, err)
	}

	var rawReply json.RawMessage
	if reply != nil {
		rawReply = reply.Raw
	}

	loop := llm.RetryLoop{
		Schema:      BuildMappingJSONSchema(),
		Verify:      verifyIndices(len(in.Blocks), len(in.Conditions)),
		MaxAttempts: m.maxAttempts,
		Logger:      m.logger,
	}
	raw, err := loop.Run(ctx, conv, reply)
	if err != nil {
		m.logger.Error("mapref.page.validation_error",
			"document_id", in.DocumentID, "page", in.Page, "error", err)
		return nil, rawReply, fmt.Errorf("page %d: %w: %w", in.Page, common.ErrRecoverablePage, err)
	}

	var mapping wireMapping
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return nil, rawReply, fmt.Errorf("page %d: decode validated mapping: %w", in.Page, err)
	}

	// Reported counts are the model's self-check. A mismatch may just be
	// miscounting, so it stays a warning.
	if mapping.NumBlocks != len(in.Blocks) || mapping.NumConditions != len(in.Conditions) {
		m.logger.Warn("mapref.page.count_mismatch",
			"document_id", in.DocumentID, "page", in.Page,
			"reported_blocks", mapping.NumBlocks, "actual_blocks", len(in.Blocks),
			"reported_conditions", mapping.NumConditions, "actual_conditions", len(in.Conditions))
	}

	links := m.resolve(in, mapping)
	m.logger.Info("mapref.page.ok",
		"document_id", in.DocumentID, "page", in.Page,
		"links", len(links), "elapsed_ms", time.Since(start).Milliseconds())
	return links, rawReply, nil
}

// Metadata describes the mapper's LLM surface for audit records.
func (m *Mapper) Metadata(docID uuid.UUID, raw json.RawMessage) entity.CallMetadata {
	return entity.CallMetadata{
		ID:           uuid.New(),
		DocumentID:   docID,
		Stage:        "mapref",
		Model:        m.provider.Model(),
		SystemPrompt: SystemPrompt,
		UserPrompt:   UserPrompt,
		RawResponse:  raw,
	}
}

// buildUserTurn enumerates every block and every condition by index. Block
// content comes from the renderer matching the block's type.
func (m *Mapper) buildUserTurn(in PageInput) ([]llm.Content, error) {
	user := []llm.Content{{Text: UserPrompt}, {Text: blockListHeader}}

	for i, block := range in.Blocks {
		user = append(user, llm.Content{
			Text: fmt.Sprintf("block_index: %d\ntype: %s", i, block.Type),
		})
		content, err := rendererFor(block)(in.Source, in.Image, block)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		user = append(user, content)
	}

	user = append(user, llm.Content{Text: conditionListHeader})
	for j, cond := range in.Conditions {
		user = append(user,
			llm.Content{Text: fmt.Sprintf("condition_index: %d", j)},
			llm.Content{Text: cond.Content},
		)
	}
	return user, nil
}

// verifyIndices rejects replies referencing blocks or conditions outside the
// enumerated ranges. Runs inside the retry loop, so a bad index is corrected
// like any other validation failure.
func verifyIndices(numBlocks, numConditions int) func(raw json.RawMessage) error {
	return func(raw json.RawMessage) error {
		var mapping wireMapping
		if err := json.Unmarshal(raw, &mapping); err != nil {
			return fmt.Errorf("%w: %w", common.ErrSchemaValidation, err)
		}
		if len(mapping.Conditions) > numConditions {
			return fmt.Errorf("%w: reply lists %d conditions but only %d were given",
				common.ErrIndexConsistency, len(mapping.Conditions), numConditions)
		}
		for j, cond := range mapping.Conditions {
			for _, mb := range cond.Blocks {
				if mb.BlockIndex < 0 || mb.BlockIndex >= numBlocks {
					return fmt.Errorf("%w: condition %d references block_index %d, valid range is [0, %d)",
						common.ErrIndexConsistency, j, mb.BlockIndex, numBlocks)
				}
			}
		}
		return nil
	}
}

// resolve turns validated (condition_index, block_index) pairs into links via
// bounds-checked positional access on the caller-supplied ordered slices.
func (m *Mapper) resolve(in PageInput, mapping wireMapping) []entity.ReferenceLink {
	var links []entity.ReferenceLink
	for j, cond := range mapping.Conditions {
		if j >= len(in.Conditions) {
			break
		}
		conditionID := in.Conditions[j].ID
		for _, mb := range cond.Blocks {
			if mb.BlockIndex < 0 || mb.BlockIndex >= len(in.Blocks) {
				continue
			}
			links = append(links, entity.ReferenceLink{
				ID:          uuid.New(),
				DocumentID:  in.DocumentID,
				ConditionID: conditionID,
				BlockID:     in.Blocks[mb.BlockIndex].ID,
			})
		}
	}
	return links
}

// Package pipeline sequences the three stages for one document: layout
// detection, condition extraction, and reference mapping.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jwlim/gonggo/constants"
	"github.com/jwlim/gonggo/internal/common"
	"github.com/jwlim/gonggo/internal/entity"
	"github.com/jwlim/gonggo/internal/extract"
	"github.com/jwlim/gonggo/internal/layout"
	"github.com/jwlim/gonggo/internal/mapref"
	"github.com/jwlim/gonggo/internal/rasterize"
	"github.com/jwlim/gonggo/internal/repository"
)

// Document is the page-addressable view of one opened PDF.
// Satisfied by *rasterize.Document.
type Document interface {
	PageCount() int
	RenderPage(page int) (image.Image, error)
	RegionText(page int, bbox entity.BBox) (string, error)
	Bytes() ([]byte, error)
}

// Processor coordinates layout detection, extraction and mapping for one
// document at a time. The detector and provider handles it holds are shared
// across sequential runs and live for the whole process.
type Processor struct {
	Logger    *slog.Logger
	Detector  *layout.Detector
	Extractor *extract.Extractor
	Mapper    *mapref.Mapper
	Store     *repository.Store
}

func NewProcessor(logger *slog.Logger, detector *layout.Detector, extractor *extract.Extractor, mapper *mapref.Mapper, store *repository.Store) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		Logger:    logger,
		Detector:  detector,
		Extractor: extractor,
		Mapper:    mapper,
		Store:     store,
	}
}

// Result is the document-level outcome plus everything that was persisted.
type Result struct {
	DocumentID  uuid.UUID
	State       constants.PipelineState
	Outcome     constants.PipelineOutcome
	Blocks      []entity.Block
	Conditions  []entity.Condition
	Links       []entity.ReferenceLink
	PageResults []entity.PageMappingResult
}

// ProcessDocument runs the full pipeline on one PDF. Aborts before
// CONDITIONS_DONE persist nothing and return an error; failures during the
// mapping phase downgrade the terminal state to partial instead of aborting.
//
// Re-running on a document that already has persisted records duplicates
// them; deduplication is the caller's responsibility.
func (p *Processor) ProcessDocument(ctx context.Context, docID uuid.UUID, pdfPath string) (*Result, error) {
	doc, err := rasterize.Open(pdfPath, p.Logger)
	if err != nil {
		p.Logger.Error("pipeline.open.failed", "document_id", docID, "path", pdfPath, "err", err)
		return &Result{DocumentID: docID, State: constants.StateNotStarted}, err
	}
	defer func() {
		if err := doc.Close(); err != nil {
			p.Logger.Warn("pipeline.close_error", "document_id", docID, "err", err)
		}
	}()
	return p.Process(ctx, docID, doc)
}

// Process runs the pipeline stages over an already-opened document.
func (p *Processor) Process(ctx context.Context, docID uuid.UUID, doc Document) (*Result, error) {
	start := time.Now()
	res := &Result{DocumentID: docID, State: constants.StateNotStarted}

	// Stage 1: layout. Per-page detection failures are tolerated; a page
	// that cannot be rasterized at all aborts the document.
	blocks, err := p.runLayout(ctx, docID, doc)
	if err != nil {
		p.Logger.Error("pipeline.layout.failed", "document_id", docID, "err", err)
		return res, err
	}
	res.Blocks = blocks
	res.State = constants.StateLayoutDone
	p.Logger.Info("pipeline.layout.ok",
		"document_id", docID, "pages", doc.PageCount(), "blocks", len(blocks))

	// Stage 2: extraction. No conditions means no mapping is meaningful.
	extracted, err := p.Extractor.Extract(ctx, docID, doc)
	if err != nil {
		p.Logger.Error("pipeline.extract.failed", "document_id", docID, "err", err)
		return res, err
	}
	res.Conditions = extracted.Conditions
	res.State = constants.StateConditionsDone
	p.Logger.Info("pipeline.extract.ok",
		"document_id", docID, "conditions", len(extracted.Conditions))

	// First persistence point: blocks, conditions, and the extraction
	// call's audit record.
	if err := p.Store.Blocks.CreateMany(ctx, blocks); err != nil {
		return res, fmt.Errorf("persist blocks: %w", err)
	}
	if err := p.Store.Conditions.CreateMany(ctx, extracted.Conditions); err != nil {
		return res, fmt.Errorf("persist conditions: %w", err)
	}
	if err := p.Store.Calls.Create(ctx, &extracted.Call); err != nil {
		return res, fmt.Errorf("persist call metadata: %w", err)
	}

	// Stage 3: mapping, page by page.
	links, pageResults, errored := p.runMapping(ctx, docID, doc, blocks, extracted.Conditions)
	res.Links = links
	res.PageResults = pageResults

	if len(links) > 0 {
		if err := p.Store.Links.CreateMany(ctx, links); err != nil {
			return res, fmt.Errorf("persist reference links: %w", err)
		}
	}

	res.State = constants.StateMappingDone
	res.Outcome = constants.OutcomeSuccess
	if errored {
		res.Outcome = constants.OutcomePartial
	}
	p.Logger.Info("pipeline.ok",
		"document_id", docID,
		"outcome", res.Outcome,
		"blocks", len(res.Blocks),
		"conditions", len(res.Conditions),
		"links", len(res.Links),
		"pages_attempted", len(res.PageResults),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (p *Processor) runLayout(ctx context.Context, docID uuid.UUID, doc Document) ([]entity.Block, error) {
	var blocks []entity.Block
	for page := 1; page <= doc.PageCount(); page++ {
		img, err := doc.RenderPage(page)
		if err != nil {
			return nil, fmt.Errorf("rasterize page %d: %w: %w", page, common.ErrFatalDocument, err)
		}
		pageBlocks, err := p.Detector.DetectPage(ctx, docID, page, img)
		if err != nil {
			// One page's detection failure leaves the document with
			// fewer blocks than pages.
			p.Logger.Warn("pipeline.layout.page_failed",
				"document_id", docID, "page", page, "err", err)
			continue
		}
		blocks = append(blocks, pageBlocks...)
	}
	return blocks, nil
}

func (p *Processor) runMapping(ctx context.Context, docID uuid.UUID, doc Document, blocks []entity.Block, conditions []entity.Condition) ([]entity.ReferenceLink, []entity.PageMappingResult, bool) {
	var (
		links       []entity.ReferenceLink
		pageResults []entity.PageMappingResult
		errored     bool
	)

	for page := 1; page <= doc.PageCount(); page++ {
		pageConditions := conditionsOnPage(conditions, page)
		if len(pageConditions) == 0 {
			// No record at all: distinguishes "nothing to map here"
			// from "mapping attempted and failed".
			continue
		}
		pageBlocks := blocksOnPage(blocks, page)

		pageLinks, raw, err := p.mapOnePage(ctx, docID, doc, page, pageBlocks, pageConditions)

		result := entity.PageMappingResult{
			ID:          uuid.New(),
			DocumentID:  docID,
			PageNumber:  page,
			Status:      constants.MappingSuccess,
			RawResponse: raw,
		}
		if err != nil {
			errored = true
			result.Status = constants.MappingError
			result.ErrorMessage = err.Error()
			p.Logger.Warn("pipeline.mapping.page_failed",
				"document_id", docID, "page", page, "err", err)
		} else {
			links = append(links, pageLinks...)
		}

		if err := p.Store.PageResults.Create(ctx, &result); err != nil {
			p.Logger.Error("pipeline.mapping.persist_result_failed",
				"document_id", docID, "page", page, "err", err)
			errored = true
		}
		pageResults = append(pageResults, result)

		call := p.Mapper.Metadata(docID, raw)
		if err := p.Store.Calls.Create(ctx, &call); err != nil {
			p.Logger.Error("pipeline.mapping.persist_call_failed",
				"document_id", docID, "page", page, "err", err)
		}
	}
	return links, pageResults, errored
}

func (p *Processor) mapOnePage(ctx context.Context, docID uuid.UUID, doc Document, page int, pageBlocks []entity.Block, pageConditions []entity.Condition) ([]entity.ReferenceLink, []byte, error) {
	img, err := doc.RenderPage(page)
	if err != nil {
		return nil, nil, fmt.Errorf("rasterize page %d: %w: %w", page, common.ErrRecoverablePage, err)
	}
	return p.Mapper.MapPage(ctx, mapref.PageInput{
		DocumentID: docID,
		Page:       page,
		Image:      img,
		Source:     doc,
		Blocks:     pageBlocks,
		Conditions: pageConditions,
	})
}

func blocksOnPage(blocks []entity.Block, page int) []entity.Block {
	var out []entity.Block
	for _, b := range blocks {
		if b.Page == page {
			out = append(out, b)
		}
	}
	return out
}

func conditionsOnPage(conditions []entity.Condition, page int) []entity.Condition {
	var out []entity.Condition
	for i := range conditions {
		if conditions[i].AppliesTo(page) {
			out = append(out, conditions[i])
		}
	}
	return out
}

package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/jwlim/gonggo/internal/repository"
)

// Service is a tiny façade over repositories that produces XLSX bytes for exports.
type Service struct {
	conditions repository.ConditionRepository
	links      repository.ReferenceLinkRepository
	blocks     repository.BlockRepository
	logger     *slog.Logger
}

func NewService(store *repository.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		conditions: store.Conditions,
		links:      store.Links,
		blocks:     store.Blocks,
		logger:     logger,
	}
}

// ExportConditionsXLSX returns an XLSX workbook (as bytes) with one row per
// extracted condition for the given document, including the pages its mapped
// reference blocks sit on.
func (s *Service) ExportConditionsXLSX(ctx context.Context, documentID uuid.UUID) ([]byte, error) {
	start := time.Now()

	conditions, err := s.conditions.GetMany(ctx, repository.Filter{DocumentID: documentID})
	if err != nil {
		return nil, fmt.Errorf("query conditions: %w", err)
	}
	links, err := s.links.GetMany(ctx, repository.Filter{DocumentID: documentID})
	if err != nil {
		return nil, fmt.Errorf("query reference links: %w", err)
	}
	blocks, err := s.blocks.GetMany(ctx, repository.Filter{DocumentID: documentID})
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}

	blockPages := make(map[uuid.UUID]int, len(blocks))
	for _, b := range blocks {
		blockPages[b.ID] = b.Page
	}
	linkedPages := make(map[uuid.UUID][]int)
	for _, l := range links {
		if page, ok := blockPages[l.BlockID]; ok {
			linkedPages[l.ConditionID] = append(linkedPages[l.ConditionID], page)
		}
	}

	f := excelize.NewFile()
	const sheet = "Conditions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Category",
		"Label",
		"Content",
		"Section",
		"Pages",
		"Reference Pages",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, c := range conditions {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, c.Category)
		write(2, c.Label)
		write(3, truncate(c.Content, 500))
		write(4, c.Section)
		write(5, joinPages(c.Pages))
		write(6, joinPages(dedupeSorted(linkedPages[c.ID])))

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 18) // category
	_ = f.SetColWidth(sheet, "B", "B", 24) // label
	_ = f.SetColWidth(sheet, "C", "C", 80) // content
	_ = f.SetColWidth(sheet, "D", "D", 16) // section
	_ = f.SetColWidth(sheet, "E", "F", 14) // pages

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"document_id", documentID.String(),
		"rows", len(conditions),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func joinPages(pages []int) string {
	if len(pages) == 0 {
		return ""
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}

func dedupeSorted(pages []int) []int {
	if len(pages) == 0 {
		return nil
	}
	sort.Ints(pages)
	out := pages[:1]
	for _, p := range pages[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

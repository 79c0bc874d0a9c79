package mapref

import (
	"fmt"
	"image"

	"github.com/jwlim/gonggo/internal/entity"
	"github.com/jwlim/gonggo/internal/llm"
	"github.com/jwlim/gonggo/internal/rasterize"
)

// PageSource extracts the raw text under a normalized bbox on one page.
// Satisfied by *rasterize.Document.
type PageSource interface {
	RegionText(page int, bbox entity.BBox) (string, error)
}

// blockRenderer turns one block into prompt content. Two variants: a visual
// crop for pixel-carried blocks (table, figure) and a text extraction for
// everything else. Prompt assembly stays type-agnostic.
type blockRenderer func(src PageSource, pageImg image.Image, b entity.Block) (llm.Content, error)

func rendererFor(b entity.Block) blockRenderer {
	if b.Type.IsVisual() {
		return renderCrop
	}
	return renderText
}

func renderCrop(_ PageSource, pageImg image.Image, b entity.Block) (llm.Content, error) {
	cropped, err := rasterize.Crop(pageImg, b.BBox)
	if err != nil {
		return llm.Content{}, fmt.Errorf("crop block: %w", err)
	}
	pngBytes, err := rasterize.EncodePNG(cropped)
	if err != nil {
		return llm.Content{}, fmt.Errorf("encode block crop: %w", err)
	}
	return llm.Content{PNG: pngBytes}, nil
}

func renderText(src PageSource, _ image.Image, b entity.Block) (llm.Content, error) {
	text, err := src.RegionText(b.Page, b.BBox)
	if err != nil {
		return llm.Content{}, fmt.Errorf("extract block text: %w", err)
	}
	if text == "" {
		// Keeps the block's prompt slot occupied on text-layer-less PDFs.
		text = "(텍스트 없음)"
	}
	return llm.Content{Text: text}, nil
}

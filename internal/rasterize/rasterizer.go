// Package rasterize owns the source PDF for the duration of one document run:
// page rasters, pixel crops under a normalized bbox, and the raw text under a
// normalized bbox.
package rasterize

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"

	"github.com/jwlim/gonggo/internal/common"
	"github.com/jwlim/gonggo/internal/entity"
)

// Document wraps one open PDF. Not safe for concurrent use; the pipeline
// processes pages sequentially. Close releases both underlying readers even
// when later stages fail.
type Document struct {
	path   string
	fz     *fitz.Document
	txt    *pdf.Reader
	txtF   *os.File
	logger *slog.Logger
}

// Open opens the PDF at path. An unreadable file is fatal for the whole
// document; no partial rasterization is possible.
func Open(path string, logger *slog.Logger) (*Document, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fz, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w: %w", path, common.ErrFatalDocument, err)
	}
	if fz.NumPage() == 0 {
		_ = fz.Close()
		return nil, fmt.Errorf("pdf %s has no pages: %w", path, common.ErrFatalDocument)
	}

	// Text layer is optional: a scanned PDF may have none. Region text then
	// returns empty strings and the mapper leans on crops.
	f, r, err := pdf.Open(path)
	if err != nil {
		logger.Warn("rasterize.text_layer_unavailable", "path", path, "error", err)
		f, r = nil, nil
	}

	return &Document{path: path, fz: fz, txt: r, txtF: f, logger: logger}, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.fz.NumPage()
}

// RenderPage renders one page (1-indexed) to a raster at its intrinsic size.
func (d *Document) RenderPage(page int) (image.Image, error) {
	if page < 1 || page > d.fz.NumPage() {
		return nil, fmt.Errorf("page %d out of range 1..%d", page, d.fz.NumPage())
	}
	img, err := d.fz.Image(page - 1)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	return img, nil
}

// Bytes returns the raw PDF bytes, for providers that accept the native file.
func (d *Document) Bytes() ([]byte, error) {
	b, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}
	return b, nil
}

// Crop extracts the pixel sub-region of img under a normalized bbox.
func Crop(img image.Image, bbox entity.BBox) (image.Image, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	rect := bbox.ToPixels(bounds.Dx(), bounds.Dy()).Add(bounds.Min)
	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("image type %T does not support cropping", img)
	}
	return sub.SubImage(rect), nil
}

// EncodePNG encodes an image for transport to the LLM or the detector.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// RegionText extracts the raw text under a normalized bbox on one page
// (1-indexed). Returns "" when the PDF has no text layer.
func (d *Document) RegionText(page int, bbox entity.BBox) (string, error) {
	if err := bbox.Validate(); err != nil {
		return "", err
	}
	if d.txt == nil {
		return "", nil
	}
	if page < 1 || page > d.txt.NumPage() {
		return "", fmt.Errorf("page %d out of range 1..%d", page, d.txt.NumPage())
	}
	p := d.txt.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	w, h, err := pageSize(p)
	if err != nil {
		return "", err
	}

	texts := p.Content().Text
	inside := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		// PDF text coordinates have a bottom-left origin; bboxes are
		// top-left like the raster.
		nx := t.X / w
		ny := 1 - t.Y/h
		if nx >= bbox[0] && nx <= bbox[2] && ny >= bbox[1] && ny <= bbox[3] {
			inside = append(inside, t)
		}
	}
	sort.SliceStable(inside, func(i, j int) bool {
		if inside[i].Y != inside[j].Y {
			return inside[i].Y > inside[j].Y // top of page first
		}
		return inside[i].X < inside[j].X
	})

	var sb strings.Builder
	lastY := -1.0
	for _, t := range inside {
		if lastY >= 0 && t.Y != lastY {
			sb.WriteByte('\n')
		}
		sb.WriteString(t.S)
		lastY = t.Y
	}
	return sb.String(), nil
}

// Close releases the underlying readers.
func (d *Document) Close() error {
	var first error
	if d.fz != nil {
		if err := d.fz.Close(); err != nil && first == nil {
			first = err
		}
		d.fz = nil
	}
	if d.txtF != nil {
		if err := d.txtF.Close(); err != nil && first == nil {
			first = err
		}
		d.txtF = nil
		d.txt = nil
	}
	return first
}

// pageSize resolves the page's MediaBox dimensions in PDF points, walking up
// the page tree when the box is inherited.
func pageSize(p pdf.Page) (w, h float64, err error) {
	v := p.V
	for !v.IsNull() {
		if mb := v.Key("MediaBox"); !mb.IsNull() && mb.Len() == 4 {
			w = mb.Index(2).Float64() - mb.Index(0).Float64()
			h = mb.Index(3).Float64() - mb.Index(1).Float64()
			if w <= 0 || h <= 0 {
				return 0, 0, fmt.Errorf("degenerate media box %vx%v", w, h)
			}
			return w, h, nil
		}
		v = v.Key("Parent")
	}
	return 0, 0, fmt.Errorf("no media box found")
}

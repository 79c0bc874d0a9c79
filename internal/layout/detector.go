// Package layout turns page rasters into typed, confidence-scored blocks
// using a pre-loaded object-detection model.
package layout

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jwlim/gonggo/constants"
	"github.com/jwlim/gonggo/internal/entity"
	"github.com/jwlim/gonggo/internal/rasterize"
)

// RawDetection is one detection as reported by the model backend: a class id,
// a confidence score, and a normalized (x1,y1,x2,y2) box.
type RawDetection struct {
	ClassID    int        `json:"class_id"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// Backend runs inference against a detection model whose weights are loaded
// once per process. Implementations are safe for sequential reuse across
// documents but make no concurrency guarantee; the caller owns the handle.
type Backend interface {
	Detect(ctx context.Context, pagePNG []byte) ([]RawDetection, error)
	ModelID() string
}

// Detector maps a backend's raw detections into Block entities.
type Detector struct {
	backend Backend
	logger  *slog.Logger
}

func NewDetector(backend Backend, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{backend: backend, logger: logger}
}

// DetectPage detects blocks on one page raster. Detections with an unknown
// class id or a degenerate bbox are dropped with a warning rather than
// failing the page.
func (d *Detector) DetectPage(ctx context.Context, docID uuid.UUID, page int, img image.Image) ([]entity.Block, error) {
	pngBytes, err := rasterize.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("detect page %d: %w", page, err)
	}

	dets, err := d.backend.Detect(ctx, pngBytes)
	if err != nil {
		return nil, fmt.Errorf("detect page %d: %w", page, err)
	}

	blocks := make([]entity.Block, 0, len(dets))
	for _, det := range dets {
		typ, ok := constants.BlockTypeFromID(det.ClassID)
		if !ok {
			d.logger.Warn("layout.unknown_class",
				"document_id", docID, "page", page, "class_id", det.ClassID)
			continue
		}
		bbox := entity.BBox(det.BBox)
		if err := bbox.Validate(); err != nil {
			d.logger.Warn("layout.invalid_bbox",
				"document_id", docID, "page", page, "error", err)
			continue
		}
		blocks = append(blocks, entity.Block{
			ID:            uuid.New(),
			DocumentID:    docID,
			Page:          page,
			BBox:          bbox,
			Type:          typ,
			Confidence:    det.Confidence,
			DetectorModel: d.backend.ModelID(),
		})
	}

	d.logger.Info("layout.page.ok",
		"document_id", docID, "page", page,
		"detections", len(dets), "blocks", len(blocks))
	return blocks, nil
}

package entity

import (
	"fmt"
	"image"

	"github.com/google/uuid"

	"github.com/jwlim/gonggo/constants"
)

// BBox is a normalized (x1, y1, x2, y2) rectangle in [0,1]x[0,1] page space.
// Every consumer relies on this normalization; pixel coordinates only exist
// transiently after ToPixels.
type BBox [4]float64

// Validate checks the normalization invariant: each coordinate in [0,1],
// x1 < x2 and y1 < y2.
func (b BBox) Validate() error {
	for i, v := range b {
		if v < 0 || v > 1 {
			return fmt.Errorf("bbox coordinate %d out of [0,1]: %v", i, v)
		}
	}
	if b[0] >= b[2] || b[1] >= b[3] {
		return fmt.Errorf("bbox not ordered: (%v,%v)-(%v,%v)", b[0], b[1], b[2], b[3])
	}
	return nil
}

// ToPixels casts the normalized box into pixel coordinates for a page raster
// of the given dimensions.
func (b BBox) ToPixels(width, height int) image.Rectangle {
	return image.Rect(
		int(b[0]*float64(width)),
		int(b[1]*float64(height)),
		int(b[2]*float64(width)),
		int(b[3]*float64(height)),
	)
}

// Block is one typed, confidence-scored layout region on a page. Immutable
// once persisted.
type Block struct {
	ID            uuid.UUID           `json:"id"`
	DocumentID    uuid.UUID           `json:"document_id"`
	Page          int                 `json:"page"` // 1-indexed
	BBox          BBox                `json:"bbox"`
	Type          constants.BlockType `json:"type"`
	Confidence    float64             `json:"confidence"`
	DetectorModel string              `json:"detector_model"`
}

package mapref

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwlim/gonggo/constants"
	"github.com/jwlim/gonggo/internal/entity"
)

type emptySource struct{}

func (emptySource) RegionText(page int, bbox entity.BBox) (string, error) {
	return "", nil
}

func TestRendererForSelectsByBlockType(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	bbox := entity.BBox{0.1, 0.1, 0.5, 0.5}

	visual := entity.Block{Type: constants.BlockTable, BBox: bbox, Page: 1}
	content, err := rendererFor(visual)(fakeSource{}, img, visual)
	require.NoError(t, err)
	assert.NotEmpty(t, content.PNG)
	assert.Empty(t, content.Text)

	textual := entity.Block{Type: constants.BlockPlainText, BBox: bbox, Page: 1}
	content, err = rendererFor(textual)(fakeSource{}, img, textual)
	require.NoError(t, err)
	assert.Equal(t, "발췌 텍스트", content.Text)
	assert.Empty(t, content.PNG)
}

func TestRenderTextEmptyRegionFallback(t *testing.T) {
	b := entity.Block{Type: constants.BlockPlainText, BBox: entity.BBox{0.1, 0.1, 0.5, 0.5}, Page: 1}
	content, err := renderText(emptySource{}, nil, b)
	require.NoError(t, err)
	assert.Equal(t, "(텍스트 없음)", content.Text)
}

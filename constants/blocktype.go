package constants

// BlockType is the semantic class of a detected layout region.
type BlockType string

// Stable values (store these exact strings in DB).
const (
	BlockTitle           BlockType = "title"
	BlockPlainText       BlockType = "plain_text"
	BlockAbandon         BlockType = "abandon"
	BlockFigure          BlockType = "figure"
	BlockFigureCaption   BlockType = "figure_caption"
	BlockTable           BlockType = "table"
	BlockTableCaption    BlockType = "table_caption"
	BlockTableFootnote   BlockType = "table_footnote"
	BlockIsolateFormula  BlockType = "isolate_formula"
	BlockFormulaCaption  BlockType = "formula_caption"
)

// blockTypeByID maps the detector's class ids to semantic names.
// https://github.com/opendatalab/DocLayout-YOLO/issues/7
var blockTypeByID = map[int]BlockType{
	0: BlockTitle,
	1: BlockPlainText,
	2: BlockAbandon,
	3: BlockFigure,
	4: BlockFigureCaption,
	5: BlockTable,
	6: BlockTableCaption,
	7: BlockTableFootnote,
	8: BlockIsolateFormula,
	9: BlockFormulaCaption,
}

// BlockTypeFromID resolves a detector class id to its semantic name.
func BlockTypeFromID(id int) (BlockType, bool) {
	t, ok := blockTypeByID[id]
	return t, ok
}

// IsVisual reports whether the block's content is carried by pixels rather
// than text. Visual blocks are sent to the mapper as cropped images.
func (t BlockType) IsVisual() bool {
	return t == BlockTable || t == BlockFigure
}

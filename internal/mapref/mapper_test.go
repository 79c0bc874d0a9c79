package mapref

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwlim/gonggo/constants"
	"github.com/jwlim/gonggo/internal/common"
	"github.com/jwlim/gonggo/internal/entity"
	"github.com/jwlim/gonggo/internal/llm"
)

// fakeProvider returns one scripted first reply; corrective turns replay the
// remaining replies in order.
type fakeProvider struct {
	replies []string
	sends   int
}

func (p *fakeProvider) Name() string     { return "fake" }
func (p *fakeProvider) Model() string    { return "fake-model" }
func (p *fakeProvider) AcceptsPDF() bool { return false }

func (p *fakeProvider) Generate(_ context.Context, _ llm.Request) (*llm.Reply, llm.Conversation, error) {
	first := p.next()
	return &llm.Reply{Text: first, Raw: json.RawMessage(`{"fake": true}`)}, p, nil
}

func (p *fakeProvider) Send(_ context.Context, _ string) (*llm.Reply, error) {
	return &llm.Reply{Text: p.next()}, nil
}

func (p *fakeProvider) next() string {
	if p.sends >= len(p.replies) {
		return p.replies[len(p.replies)-1]
	}
	s := p.replies[p.sends]
	p.sends++
	return s
}

type fakeSource struct{}

func (fakeSource) RegionText(page int, bbox entity.BBox) (string, error) {
	return "발췌 텍스트", nil
}

func pageInput(docID uuid.UUID, numBlocks, numConditions int) PageInput {
	blocks := make([]entity.Block, numBlocks)
	for i := range blocks {
		blocks[i] = entity.Block{
			ID:         uuid.New(),
			DocumentID: docID,
			Page:       1,
			BBox:       entity.BBox{0.1, 0.1 + float64(i)*0.05, 0.9, 0.14 + float64(i)*0.05},
			Type:       constants.BlockPlainText,
		}
	}
	conditions := make([]entity.Condition, numConditions)
	for j := range conditions {
		conditions[j] = entity.Condition{
			ID:         uuid.New(),
			DocumentID: docID,
			Content:    fmt.Sprintf("조건 %d", j),
			Pages:      []int{1},
		}
	}
	return PageInput{
		DocumentID: docID,
		Page:       1,
		Image:      image.NewRGBA(image.Rect(0, 0, 100, 100)),
		Source:     fakeSource{},
		Blocks:     blocks,
		Conditions: conditions,
	}
}

func mappingReply(numBlocks, numConditions int, pairs map[int][]int) string {
	m := wireMapping{NumBlocks: numBlocks, NumConditions: numConditions}
	for j := 0; j < numConditions; j++ {
		cond := wireMappedCondition{Content: fmt.Sprintf("조건 %d", j)}
		for _, bi := range pairs[j] {
			cond.Blocks = append(cond.Blocks, wireMatchedBlock{BlockIndex: bi, Type: "plain_text"})
		}
		m.Conditions = append(m.Conditions, cond)
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func TestMapPageResolvesLinks(t *testing.T) {
	docID := uuid.New()
	in := pageInput(docID, 3, 2)
	provider := &fakeProvider{replies: []string{
		mappingReply(3, 2, map[int][]int{0: {0, 2}, 1: {1}}),
	}}
	mapper := NewMapper(provider, 3, nil)

	links, raw, err := mapper.MapPage(context.Background(), in)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	require.Len(t, links, 3)

	assert.Equal(t, in.Conditions[0].ID, links[0].ConditionID)
	assert.Equal(t, in.Blocks[0].ID, links[0].BlockID)
	assert.Equal(t, in.Conditions[0].ID, links[1].ConditionID)
	assert.Equal(t, in.Blocks[2].ID, links[1].BlockID)
	assert.Equal(t, in.Conditions[1].ID, links[2].ConditionID)
	assert.Equal(t, in.Blocks[1].ID, links[2].BlockID)
	for _, l := range links {
		assert.Equal(t, docID, l.DocumentID)
	}
}

func TestMapPageNoConditions(t *testing.T) {
	in := pageInput(uuid.New(), 3, 0)
	mapper := NewMapper(&fakeProvider{replies: []string{"{}"}}, 3, nil)

	links, _, err := mapper.MapPage(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRecoverablePage)
	assert.Empty(t, links)
}

func TestMapPageConditionsButNoBlocks(t *testing.T) {
	in := pageInput(uuid.New(), 0, 2)
	mapper := NewMapper(&fakeProvider{replies: []string{"{}"}}, 3, nil)

	links, _, err := mapper.MapPage(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRecoverablePage)
	assert.Empty(t, links)
}

func TestMapPageOutOfRangeIndexExhaustsRetries(t *testing.T) {
	in := pageInput(uuid.New(), 5, 1)
	// block_index 7 with only 5 blocks, on every attempt.
	bad := mappingReply(5, 1, map[int][]int{0: {7}})
	mapper := NewMapper(&fakeProvider{replies: []string{bad}}, 3, nil)

	links, _, err := mapper.MapPage(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRecoverablePage)
	assert.ErrorIs(t, err, common.ErrIndexConsistency)
	assert.Empty(t, links)
}

func TestMapPageBadIndexCorrectedOnRetry(t *testing.T) {
	in := pageInput(uuid.New(), 5, 1)
	bad := mappingReply(5, 1, map[int][]int{0: {7}})
	good := mappingReply(5, 1, map[int][]int{0: {4}})
	mapper := NewMapper(&fakeProvider{replies: []string{bad, good}}, 3, nil)

	links, _, err := mapper.MapPage(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, in.Blocks[4].ID, links[0].BlockID)
}

func TestMapPageCountMismatchIsNotFatal(t *testing.T) {
	in := pageInput(uuid.New(), 3, 2)
	// Self-reported num_blocks is wrong but every index is in range.
	reply := mappingReply(99, 2, map[int][]int{0: {0}, 1: {1}})
	mapper := NewMapper(&fakeProvider{replies: []string{reply}}, 3, nil)

	links, _, err := mapper.MapPage(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestVerifyIndicesRejectsExcessConditions(t *testing.T) {
	verify := verifyIndices(3, 1)
	reply := mappingReply(3, 2, map[int][]int{0: {0}, 1: {1}})

	err := verify(json.RawMessage(reply))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrIndexConsistency)
}

func TestVerifyIndicesAcceptsValidMapping(t *testing.T) {
	verify := verifyIndices(3, 2)
	reply := mappingReply(3, 2, map[int][]int{0: {0, 1}, 1: {2}})
	assert.NoError(t, verify(json.RawMessage(reply)))
}

func TestMappingSchemaRequiresCounts(t *testing.T) {
	schema, err := llm.CompileSchema(BuildMappingJSONSchema())
	require.NoError(t, err)

	valid := mappingReply(2, 1, map[int][]int{0: {0}})
	require.NoError(t, llm.ValidateAgainstSchema(schema, []byte(valid)))

	assert.Error(t, llm.ValidateAgainstSchema(schema, []byte(`{"conditions": []}`)))
	assert.Error(t, llm.ValidateAgainstSchema(schema,
		[]byte(`{"num_blocks": 1, "num_conditions": 1, "conditions": [{"blocks": [{"type": "table"}]}]}`)))
}

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwlim/gonggo/constants"
	"github.com/jwlim/gonggo/internal/entity"
	"github.com/jwlim/gonggo/internal/extract"
	"github.com/jwlim/gonggo/internal/layout"
	"github.com/jwlim/gonggo/internal/llm"
	"github.com/jwlim/gonggo/internal/mapref"
	"github.com/jwlim/gonggo/internal/repository"
)

// fakeDocument serves a fixed number of blank pages.
type fakeDocument struct {
	pages int
}

func (d *fakeDocument) PageCount() int { return d.pages }

func (d *fakeDocument) RenderPage(page int) (image.Image, error) {
	if page < 1 || page > d.pages {
		return nil, fmt.Errorf("page %d out of range", page)
	}
	return image.NewRGBA(image.Rect(0, 0, 100, 100)), nil
}

func (d *fakeDocument) RegionText(page int, bbox entity.BBox) (string, error) {
	return fmt.Sprintf("%d페이지 텍스트", page), nil
}

func (d *fakeDocument) Bytes() ([]byte, error) { return []byte("%PDF-1.7"), nil }

// fakeBackend returns one scripted detection set per Detect call, in order.
type fakeBackend struct {
	perPage [][]layout.RawDetection
	calls   int
}

func (b *fakeBackend) Detect(_ context.Context, _ []byte) ([]layout.RawDetection, error) {
	if b.calls >= len(b.perPage) {
		return nil, errors.New("unexpected detect call")
	}
	dets := b.perPage[b.calls]
	b.calls++
	return dets, nil
}

func (b *fakeBackend) ModelID() string { return "fake-detector" }

// fakeLLM answers Generate and corrective Send calls from one reply queue.
type fakeLLM struct {
	replies []string
	sends   int
}

func (p *fakeLLM) Name() string     { return "fake" }
func (p *fakeLLM) Model() string    { return "fake-model" }
func (p *fakeLLM) AcceptsPDF() bool { return false }

func (p *fakeLLM) Generate(_ context.Context, _ llm.Request) (*llm.Reply, llm.Conversation, error) {
	return &llm.Reply{Text: p.next(), Raw: json.RawMessage(`{"scripted": true}`)}, p, nil
}

func (p *fakeLLM) Send(_ context.Context, _ string) (*llm.Reply, error) {
	return &llm.Reply{Text: p.next()}, nil
}

func (p *fakeLLM) next() string {
	if p.sends >= len(p.replies) {
		return ""
	}
	s := p.replies[p.sends]
	p.sends++
	return s
}

func detection(classID int, y float64) layout.RawDetection {
	return layout.RawDetection{
		ClassID:    classID,
		Confidence: 0.9,
		BBox:       [4]float64{0.1, y, 0.9, y + 0.1},
	}
}

func extractionReply(pages ...int) string {
	conditions := ""
	for i, p := range pages {
		if i > 0 {
			conditions += ","
		}
		conditions += fmt.Sprintf(
			`{"content": "조건 %d", "section": "%d장", "pages": [%d]}`, i, i+1, p)
	}
	return fmt.Sprintf(
		`[{"category": "임대조건", "items": [{"label": "기준", "conditions": [%s]}]}]`,
		conditions)
}

func mappingReply(numBlocks, numConditions int, blockIndexes ...int) string {
	blocks := ""
	for i, bi := range blockIndexes {
		if i > 0 {
			blocks += ","
		}
		blocks += fmt.Sprintf(`{"block_index": %d, "type": "plain_text"}`, bi)
	}
	return fmt.Sprintf(
		`{"num_blocks": %d, "num_conditions": %d, "conditions": [{"blocks": [%s]}]}`,
		numBlocks, numConditions, blocks)
}

func newTestProcessor(backend layout.Backend, provider llm.Provider, store *repository.Store) *Processor {
	return NewProcessor(
		nil,
		layout.NewDetector(backend, nil),
		extract.NewExtractor(provider, 3, nil),
		mapref.NewMapper(provider, 3, nil),
		store,
	)
}

func TestProcessAllPagesSucceed(t *testing.T) {
	docID := uuid.New()
	doc := &fakeDocument{pages: 2}
	backend := &fakeBackend{perPage: [][]layout.RawDetection{
		{detection(1, 0.1), detection(5, 0.3)},
		{detection(1, 0.1)},
	}}
	provider := &fakeLLM{replies: []string{
		extractionReply(1, 2),
		mappingReply(2, 1, 0, 1),
		mappingReply(1, 1, 0),
	}}
	store := repository.NewMemoryStore()

	res, err := newTestProcessor(backend, provider, store).Process(context.Background(), docID, doc)
	require.NoError(t, err)

	assert.Equal(t, constants.StateMappingDone, res.State)
	assert.Equal(t, constants.OutcomeSuccess, res.Outcome)
	assert.Len(t, res.Blocks, 3)
	assert.Len(t, res.Conditions, 2)
	assert.Len(t, res.Links, 3)
	require.Len(t, res.PageResults, 2)
	for _, pr := range res.PageResults {
		assert.Equal(t, constants.MappingSuccess, pr.Status)
	}

	// Everything reachable from the store afterwards.
	ctx := context.Background()
	blocks, err := store.Blocks.GetMany(ctx, repository.Filter{DocumentID: docID})
	require.NoError(t, err)
	assert.Len(t, blocks, 3)
	links, err := store.Links.GetMany(ctx, repository.Filter{DocumentID: docID})
	require.NoError(t, err)
	assert.Len(t, links, 3)

	// One extraction call plus one call record per mapped page.
	calls, err := store.Calls.GetMany(ctx, repository.Filter{DocumentID: docID})
	require.NoError(t, err)
	assert.Len(t, calls, 3)
}

// A page whose conditions have no detected blocks gets an error record while
// the other pages map independently.
func TestProcessPageWithoutBlocksIsPartial(t *testing.T) {
	docID := uuid.New()
	doc := &fakeDocument{pages: 3}
	backend := &fakeBackend{perPage: [][]layout.RawDetection{
		{detection(1, 0.1), detection(1, 0.3)},
		{}, // page 2: nothing detected
		{detection(5, 0.2)},
	}}
	provider := &fakeLLM{replies: []string{
		extractionReply(1, 2, 3),
		mappingReply(2, 1, 0, 1), // page 1
		mappingReply(1, 1, 0),    // page 3; page 2 fails before any LLM call
	}}
	store := repository.NewMemoryStore()

	res, err := newTestProcessor(backend, provider, store).Process(context.Background(), docID, doc)
	require.NoError(t, err)

	assert.Equal(t, constants.StateMappingDone, res.State)
	assert.Equal(t, constants.OutcomePartial, res.Outcome)
	require.Len(t, res.PageResults, 3)

	byPage := map[int]entity.PageMappingResult{}
	for _, pr := range res.PageResults {
		byPage[pr.PageNumber] = pr
	}
	assert.Equal(t, constants.MappingSuccess, byPage[1].Status)
	assert.Equal(t, constants.MappingError, byPage[2].Status)
	assert.NotEmpty(t, byPage[2].ErrorMessage)
	assert.Equal(t, constants.MappingSuccess, byPage[3].Status)

	// Links only come from the pages that mapped.
	assert.Len(t, res.Links, 3)
	linkedBlocks := map[uuid.UUID]bool{}
	for _, b := range res.Blocks {
		linkedBlocks[b.ID] = true
	}
	for _, l := range res.Links {
		assert.True(t, linkedBlocks[l.BlockID])
	}
}

// A page listed by no condition is skipped without a result record.
func TestProcessPagesWithoutConditionsAreSkipped(t *testing.T) {
	docID := uuid.New()
	doc := &fakeDocument{pages: 3}
	backend := &fakeBackend{perPage: [][]layout.RawDetection{
		{detection(1, 0.1)},
		{detection(1, 0.1)},
		{detection(1, 0.1)},
	}}
	provider := &fakeLLM{replies: []string{
		extractionReply(2), // single condition, page 2 only
		mappingReply(1, 1, 0),
	}}
	store := repository.NewMemoryStore()

	res, err := newTestProcessor(backend, provider, store).Process(context.Background(), docID, doc)
	require.NoError(t, err)

	assert.Equal(t, constants.OutcomeSuccess, res.Outcome)
	require.Len(t, res.PageResults, 1)
	assert.Equal(t, 2, res.PageResults[0].PageNumber)
}

// A failed extraction aborts the document with nothing persisted.
func TestProcessExtractionFailurePersistsNothing(t *testing.T) {
	docID := uuid.New()
	doc := &fakeDocument{pages: 1}
	backend := &fakeBackend{perPage: [][]layout.RawDetection{
		{detection(1, 0.1)},
	}}
	provider := &fakeLLM{replies: []string{
		"not json", "still not json", "nope",
	}}
	store := repository.NewMemoryStore()

	res, err := newTestProcessor(backend, provider, store).Process(context.Background(), docID, doc)
	require.Error(t, err)
	assert.Equal(t, constants.StateLayoutDone, res.State)

	ctx := context.Background()
	blocks, err := store.Blocks.GetMany(ctx, repository.Filter{DocumentID: docID})
	require.NoError(t, err)
	assert.Empty(t, blocks)
	conditions, err := store.Conditions.GetMany(ctx, repository.Filter{DocumentID: docID})
	require.NoError(t, err)
	assert.Empty(t, conditions)
}

// Running the same document twice appends a second copy of every record.
func TestProcessRerunDuplicatesRecords(t *testing.T) {
	docID := uuid.New()
	store := repository.NewMemoryStore()

	run := func() {
		doc := &fakeDocument{pages: 1}
		backend := &fakeBackend{perPage: [][]layout.RawDetection{
			{detection(1, 0.1)},
		}}
		provider := &fakeLLM{replies: []string{
			extractionReply(1),
			mappingReply(1, 1, 0),
		}}
		_, err := newTestProcessor(backend, provider, store).Process(context.Background(), docID, doc)
		require.NoError(t, err)
	}
	run()
	run()

	ctx := context.Background()
	conditions, err := store.Conditions.GetMany(ctx, repository.Filter{DocumentID: docID})
	require.NoError(t, err)
	assert.Len(t, conditions, 2)
	blocks, err := store.Blocks.GetMany(ctx, repository.Filter{DocumentID: docID})
	require.NoError(t, err)
	assert.Len(t, blocks, 2)
}

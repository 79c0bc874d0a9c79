package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwlim/gonggo/constants"
	"github.com/jwlim/gonggo/internal/entity"
)

func TestMemoryBlocksFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	docA, docB := uuid.New(), uuid.New()

	require.NoError(t, store.Blocks.CreateMany(ctx, []entity.Block{
		{ID: uuid.New(), DocumentID: docA, Page: 1, Type: constants.BlockPlainText},
		{ID: uuid.New(), DocumentID: docA, Page: 2, Type: constants.BlockTable},
		{ID: uuid.New(), DocumentID: docB, Page: 1, Type: constants.BlockTitle},
	}))

	all, err := store.Blocks.GetMany(ctx, Filter{DocumentID: docA})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pageOne, err := store.Blocks.GetMany(ctx, Filter{DocumentID: docA, Page: 1})
	require.NoError(t, err)
	require.Len(t, pageOne, 1)
	assert.Equal(t, constants.BlockPlainText, pageOne[0].Type)
}

func TestMemoryConditionsPageFilterUsesMembership(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	docID := uuid.New()

	spanning := entity.Condition{ID: uuid.New(), DocumentID: docID, Content: "조건", Pages: []int{2, 3}}
	single := entity.Condition{ID: uuid.New(), DocumentID: docID, Content: "조건", Pages: []int{5}}
	require.NoError(t, store.Conditions.CreateMany(ctx, []entity.Condition{spanning, single}))

	onPage3, err := store.Conditions.GetMany(ctx, Filter{DocumentID: docID, Page: 3})
	require.NoError(t, err)
	require.Len(t, onPage3, 1)
	assert.Equal(t, spanning.ID, onPage3[0].ID)

	onPage4, err := store.Conditions.GetMany(ctx, Filter{DocumentID: docID, Page: 4})
	require.NoError(t, err)
	assert.Empty(t, onPage4)
}

func TestMemoryGetByID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	docID := uuid.New()

	link := entity.ReferenceLink{ID: uuid.New(), DocumentID: docID, ConditionID: uuid.New(), BlockID: uuid.New()}
	require.NoError(t, store.Links.Create(ctx, &link))

	got, err := store.Links.Get(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, link, *got)

	_, err = store.Links.Get(ctx, uuid.New())
	assert.Error(t, err)
}

func TestMemoryPageResultsOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	docID := uuid.New()

	for page := 1; page <= 3; page++ {
		require.NoError(t, store.PageResults.Create(ctx, &entity.PageMappingResult{
			ID:         uuid.New(),
			DocumentID: docID,
			PageNumber: page,
			Status:     constants.MappingSuccess,
		}))
	}

	results, err := store.PageResults.GetMany(ctx, Filter{DocumentID: docID})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, i+1, r.PageNumber)
	}
}

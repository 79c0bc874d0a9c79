package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwlim/gonggo/internal/entity"
)

// Filter narrows Get/GetMany lookups. Zero values mean "any".
type Filter struct {
	DocumentID uuid.UUID
	Page       int // 1-indexed; 0 means any page
}

// BlockRepository stores layout blocks.
type BlockRepository interface {
	Create(ctx context.Context, b *entity.Block) error
	CreateMany(ctx context.Context, bs []entity.Block) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Block, error)
	GetMany(ctx context.Context, f Filter) ([]entity.Block, error)
}

// ConditionRepository stores extracted conditions.
type ConditionRepository interface {
	Create(ctx context.Context, c *entity.Condition) error
	CreateMany(ctx context.Context, cs []entity.Condition) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Condition, error)
	GetMany(ctx context.Context, f Filter) ([]entity.Condition, error)
}

// ReferenceLinkRepository stores condition-to-block evidence links.
type ReferenceLinkRepository interface {
	Create(ctx context.Context, l *entity.ReferenceLink) error
	CreateMany(ctx context.Context, ls []entity.ReferenceLink) error
	Get(ctx context.Context, id uuid.UUID) (*entity.ReferenceLink, error)
	GetMany(ctx context.Context, f Filter) ([]entity.ReferenceLink, error)
}

// PageMappingResultRepository stores per-page mapping audit rows.
type PageMappingResultRepository interface {
	Create(ctx context.Context, r *entity.PageMappingResult) error
	CreateMany(ctx context.Context, rs []entity.PageMappingResult) error
	Get(ctx context.Context, id uuid.UUID) (*entity.PageMappingResult, error)
	GetMany(ctx context.Context, f Filter) ([]entity.PageMappingResult, error)
}

// CallMetadataRepository stores LLM invocation records.
type CallMetadataRepository interface {
	Create(ctx context.Context, m *entity.CallMetadata) error
	CreateMany(ctx context.Context, ms []entity.CallMetadata) error
	Get(ctx context.Context, id uuid.UUID) (*entity.CallMetadata, error)
	GetMany(ctx context.Context, f Filter) ([]entity.CallMetadata, error)
}

// Store bundles the record repositories the pipeline persists through.
type Store struct {
	Blocks      BlockRepository
	Conditions  ConditionRepository
	Links       ReferenceLinkRepository
	PageResults PageMappingResultRepository
	Calls       CallMetadataRepository
}

package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jwlim/gonggo/internal/entity"
)

// NewMemoryStore returns a Store backed by in-process slices. Used by tests
// and the -inmem CLI mode; preserves insertion order.
func NewMemoryStore() *Store {
	return &Store{
		Blocks:      &memoryBlocks{},
		Conditions:  &memoryConditions{},
		Links:       &memoryLinks{},
		PageResults: &memoryPageResults{},
		Calls:       &memoryCalls{},
	}
}

type memoryBlocks struct {
	mu   sync.Mutex
	rows []entity.Block
}

func (m *memoryBlocks) Create(_ context.Context, b *entity.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *b)
	return nil
}

func (m *memoryBlocks) CreateMany(ctx context.Context, bs []entity.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, bs...)
	return nil
}

func (m *memoryBlocks) Get(_ context.Context, id uuid.UUID) (*entity.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			b := m.rows[i]
			return &b, nil
		}
	}
	return nil, fmt.Errorf("block %s not found", id)
}

func (m *memoryBlocks) GetMany(_ context.Context, f Filter) ([]entity.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Block
	for _, b := range m.rows {
		if f.DocumentID != uuid.Nil && b.DocumentID != f.DocumentID {
			continue
		}
		if f.Page != 0 && b.Page != f.Page {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

type memoryConditions struct {
	mu   sync.Mutex
	rows []entity.Condition
}

func (m *memoryConditions) Create(_ context.Context, c *entity.Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *c)
	return nil
}

func (m *memoryConditions) CreateMany(_ context.Context, cs []entity.Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, cs...)
	return nil
}

func (m *memoryConditions) Get(_ context.Context, id uuid.UUID) (*entity.Condition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			c := m.rows[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("condition %s not found", id)
}

func (m *memoryConditions) GetMany(_ context.Context, f Filter) ([]entity.Condition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Condition
	for _, c := range m.rows {
		if f.DocumentID != uuid.Nil && c.DocumentID != f.DocumentID {
			continue
		}
		if f.Page != 0 && !c.AppliesTo(f.Page) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

type memoryLinks struct {
	mu   sync.Mutex
	rows []entity.ReferenceLink
}

func (m *memoryLinks) Create(_ context.Context, l *entity.ReferenceLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *l)
	return nil
}

func (m *memoryLinks) CreateMany(_ context.Context, ls []entity.ReferenceLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, ls...)
	return nil
}

func (m *memoryLinks) Get(_ context.Context, id uuid.UUID) (*entity.ReferenceLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			l := m.rows[i]
			return &l, nil
		}
	}
	return nil, fmt.Errorf("reference link %s not found", id)
}

func (m *memoryLinks) GetMany(_ context.Context, f Filter) ([]entity.ReferenceLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.ReferenceLink
	for _, l := range m.rows {
		if f.DocumentID != uuid.Nil && l.DocumentID != f.DocumentID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

type memoryPageResults struct {
	mu   sync.Mutex
	rows []entity.PageMappingResult
}

func (m *memoryPageResults) Create(_ context.Context, r *entity.PageMappingResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *r)
	return nil
}

func (m *memoryPageResults) CreateMany(_ context.Context, rs []entity.PageMappingResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rs...)
	return nil
}

func (m *memoryPageResults) Get(_ context.Context, id uuid.UUID) (*entity.PageMappingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			r := m.rows[i]
			return &r, nil
		}
	}
	return nil, fmt.Errorf("page mapping result %s not found", id)
}

func (m *memoryPageResults) GetMany(_ context.Context, f Filter) ([]entity.PageMappingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.PageMappingResult
	for _, r := range m.rows {
		if f.DocumentID != uuid.Nil && r.DocumentID != f.DocumentID {
			continue
		}
		if f.Page != 0 && r.PageNumber != f.Page {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type memoryCalls struct {
	mu   sync.Mutex
	rows []entity.CallMetadata
}

func (m *memoryCalls) Create(_ context.Context, c *entity.CallMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *c)
	return nil
}

func (m *memoryCalls) CreateMany(_ context.Context, cs []entity.CallMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, cs...)
	return nil
}

func (m *memoryCalls) Get(_ context.Context, id uuid.UUID) (*entity.CallMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			c := m.rows[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("call metadata %s not found", id)
}

func (m *memoryCalls) GetMany(_ context.Context, f Filter) ([]entity.CallMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.CallMetadata
	for _, c := range m.rows {
		if f.DocumentID != uuid.Nil && c.DocumentID != f.DocumentID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

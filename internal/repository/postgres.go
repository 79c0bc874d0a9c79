package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jwlim/gonggo/constants"
	"github.com/jwlim/gonggo/internal/entity"
)

// NewPostgresStore returns a Store backed by the given pgx pool. Geometry and
// page lists are stored as jsonb; everything else maps to plain columns.
func NewPostgresStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Blocks:      &pgBlocks{pool: pool},
		Conditions:  &pgConditions{pool: pool},
		Links:       &pgLinks{pool: pool},
		PageResults: &pgPageResults{pool: pool},
		Calls:       &pgCalls{pool: pool},
	}
}

type pgBlocks struct{ pool *pgxpool.Pool }

func (r *pgBlocks) Create(ctx context.Context, b *entity.Block) error {
	bbox, err := json.Marshal(b.BBox)
	if err != nil {
		return fmt.Errorf("marshal bbox: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO block (id, document_id, page, bbox, type, confidence, detector_model)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.DocumentID, b.Page, bbox, string(b.Type), b.Confidence, b.DetectorModel)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

func (r *pgBlocks) CreateMany(ctx context.Context, bs []entity.Block) error {
	batch := &pgx.Batch{}
	for i := range bs {
		b := &bs[i]
		bbox, err := json.Marshal(b.BBox)
		if err != nil {
			return fmt.Errorf("marshal bbox: %w", err)
		}
		batch.Queue(
			`INSERT INTO block (id, document_id, page, bbox, type, confidence, detector_model)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			b.ID, b.DocumentID, b.Page, bbox, string(b.Type), b.Confidence, b.DetectorModel)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *pgBlocks) Get(ctx context.Context, id uuid.UUID) (*entity.Block, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, document_id, page, bbox, type, confidence, detector_model
		 FROM block WHERE id = $1`, id)
	return scanBlock(row)
}

func (r *pgBlocks) GetMany(ctx context.Context, f Filter) ([]entity.Block, error) {
	q := `SELECT id, document_id, page, bbox, type, confidence, detector_model
	      FROM block WHERE document_id = $1`
	args := []any{f.DocumentID}
	if f.Page != 0 {
		q += ` AND page = $2`
		args = append(args, f.Page)
	}
	q += ` ORDER BY page, id`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()
	var out []entity.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBlock(row pgx.Row) (*entity.Block, error) {
	var (
		b       entity.Block
		bboxRaw []byte
		typ     string
	)
	if err := row.Scan(&b.ID, &b.DocumentID, &b.Page, &bboxRaw, &typ, &b.Confidence, &b.DetectorModel); err != nil {
		return nil, fmt.Errorf("scan block: %w", err)
	}
	if err := json.Unmarshal(bboxRaw, &b.BBox); err != nil {
		return nil, fmt.Errorf("unmarshal bbox: %w", err)
	}
	b.Type = constants.BlockType(typ)
	return &b, nil
}

type pgConditions struct{ pool *pgxpool.Pool }

func (r *pgConditions) Create(ctx context.Context, c *entity.Condition) error {
	pages, err := json.Marshal(c.Pages)
	if err != nil {
		return fmt.Errorf("marshal pages: %w", err)
	}
	var bbox []byte
	if c.BBox != nil {
		if bbox, err = json.Marshal(c.BBox); err != nil {
			return fmt.Errorf("marshal bbox: %w", err)
		}
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO condition (id, document_id, category, label, content, section, pages, bbox)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.DocumentID, c.Category, c.Label, c.Content, c.Section, pages, bbox)
	if err != nil {
		return fmt.Errorf("insert condition: %w", err)
	}
	return nil
}

func (r *pgConditions) CreateMany(ctx context.Context, cs []entity.Condition) error {
	for i := range cs {
		if err := r.Create(ctx, &cs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *pgConditions) Get(ctx context.Context, id uuid.UUID) (*entity.Condition, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, document_id, category, label, content, section, pages, bbox
		 FROM condition WHERE id = $1`, id)
	return scanCondition(row)
}

func (r *pgConditions) GetMany(ctx context.Context, f Filter) ([]entity.Condition, error) {
	// Page membership lives inside the jsonb pages list; filter in-process.
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, category, label, content, section, pages, bbox
		 FROM condition WHERE document_id = $1 ORDER BY id`, f.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("query conditions: %w", err)
	}
	defer rows.Close()
	var out []entity.Condition
	for rows.Next() {
		c, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		if f.Page != 0 && !c.AppliesTo(f.Page) {
			continue
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCondition(row pgx.Row) (*entity.Condition, error) {
	var (
		c        entity.Condition
		pagesRaw []byte
		bboxRaw  []byte
	)
	if err := row.Scan(&c.ID, &c.DocumentID, &c.Category, &c.Label, &c.Content, &c.Section, &pagesRaw, &bboxRaw); err != nil {
		return nil, fmt.Errorf("scan condition: %w", err)
	}
	if err := json.Unmarshal(pagesRaw, &c.Pages); err != nil {
		return nil, fmt.Errorf("unmarshal pages: %w", err)
	}
	if len(bboxRaw) > 0 {
		if err := json.Unmarshal(bboxRaw, &c.BBox); err != nil {
			return nil, fmt.Errorf("unmarshal bbox: %w", err)
		}
	}
	return &c, nil
}

type pgLinks struct{ pool *pgxpool.Pool }

func (r *pgLinks) Create(ctx context.Context, l *entity.ReferenceLink) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO reference_link (id, document_id, condition_id, block_id)
		 VALUES ($1, $2, $3, $4)`,
		l.ID, l.DocumentID, l.ConditionID, l.BlockID)
	if err != nil {
		return fmt.Errorf("insert reference link: %w", err)
	}
	return nil
}

func (r *pgLinks) CreateMany(ctx context.Context, ls []entity.ReferenceLink) error {
	batch := &pgx.Batch{}
	for i := range ls {
		l := &ls[i]
		batch.Queue(
			`INSERT INTO reference_link (id, document_id, condition_id, block_id)
			 VALUES ($1, $2, $3, $4)`,
			l.ID, l.DocumentID, l.ConditionID, l.BlockID)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

func (r *pgLinks) Get(ctx context.Context, id uuid.UUID) (*entity.ReferenceLink, error) {
	var l entity.ReferenceLink
	err := r.pool.QueryRow(ctx,
		`SELECT id, document_id, condition_id, block_id FROM reference_link WHERE id = $1`, id).
		Scan(&l.ID, &l.DocumentID, &l.ConditionID, &l.BlockID)
	if err != nil {
		return nil, fmt.Errorf("scan reference link: %w", err)
	}
	return &l, nil
}

func (r *pgLinks) GetMany(ctx context.Context, f Filter) ([]entity.ReferenceLink, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, condition_id, block_id
		 FROM reference_link WHERE document_id = $1 ORDER BY id`, f.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("query reference links: %w", err)
	}
	defer rows.Close()
	var out []entity.ReferenceLink
	for rows.Next() {
		var l entity.ReferenceLink
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.ConditionID, &l.BlockID); err != nil {
			return nil, fmt.Errorf("scan reference link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type pgPageResults struct{ pool *pgxpool.Pool }

func (r *pgPageResults) Create(ctx context.Context, pr *entity.PageMappingResult) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO page_mapping_result (id, document_id, page_number, status, raw_response, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		pr.ID, pr.DocumentID, pr.PageNumber, string(pr.Status), []byte(pr.RawResponse), pr.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert page mapping result: %w", err)
	}
	return nil
}

func (r *pgPageResults) CreateMany(ctx context.Context, prs []entity.PageMappingResult) error {
	for i := range prs {
		if err := r.Create(ctx, &prs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *pgPageResults) Get(ctx context.Context, id uuid.UUID) (*entity.PageMappingResult, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, document_id, page_number, status, raw_response, error_message
		 FROM page_mapping_result WHERE id = $1`, id)
	return scanPageResult(row)
}

func (r *pgPageResults) GetMany(ctx context.Context, f Filter) ([]entity.PageMappingResult, error) {
	q := `SELECT id, document_id, page_number, status, raw_response, error_message
	      FROM page_mapping_result WHERE document_id = $1`
	args := []any{f.DocumentID}
	if f.Page != 0 {
		q += ` AND page_number = $2`
		args = append(args, f.Page)
	}
	q += ` ORDER BY page_number`
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query page mapping results: %w", err)
	}
	defer rows.Close()
	var out []entity.PageMappingResult
	for rows.Next() {
		pr, err := scanPageResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pr)
	}
	return out, rows.Err()
}

func scanPageResult(row pgx.Row) (*entity.PageMappingResult, error) {
	var (
		pr     entity.PageMappingResult
		status string
		raw    []byte
	)
	if err := row.Scan(&pr.ID, &pr.DocumentID, &pr.PageNumber, &status, &raw, &pr.ErrorMessage); err != nil {
		return nil, fmt.Errorf("scan page mapping result: %w", err)
	}
	pr.Status = constants.MappingStatus(status)
	pr.RawResponse = raw
	return &pr, nil
}

type pgCalls struct{ pool *pgxpool.Pool }

func (r *pgCalls) Create(ctx context.Context, m *entity.CallMetadata) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO call_metadata (id, document_id, stage, model, system_prompt, user_prompt, raw_response)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.DocumentID, m.Stage, m.Model, m.SystemPrompt, m.UserPrompt, []byte(m.RawResponse))
	if err != nil {
		return fmt.Errorf("insert call metadata: %w", err)
	}
	return nil
}

func (r *pgCalls) CreateMany(ctx context.Context, ms []entity.CallMetadata) error {
	for i := range ms {
		if err := r.Create(ctx, &ms[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *pgCalls) Get(ctx context.Context, id uuid.UUID) (*entity.CallMetadata, error) {
	var (
		m   entity.CallMetadata
		raw []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, document_id, stage, model, system_prompt, user_prompt, raw_response
		 FROM call_metadata WHERE id = $1`, id).
		Scan(&m.ID, &m.DocumentID, &m.Stage, &m.Model, &m.SystemPrompt, &m.UserPrompt, &raw)
	if err != nil {
		return nil, fmt.Errorf("scan call metadata: %w", err)
	}
	m.RawResponse = raw
	return &m, nil
}

func (r *pgCalls) GetMany(ctx context.Context, f Filter) ([]entity.CallMetadata, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, stage, model, system_prompt, user_prompt, raw_response
		 FROM call_metadata WHERE document_id = $1 ORDER BY id`, f.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("query call metadata: %w", err)
	}
	defer rows.Close()
	var out []entity.CallMetadata
	for rows.Next() {
		var (
			m   entity.CallMetadata
			raw []byte
		)
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.Stage, &m.Model, &m.SystemPrompt, &m.UserPrompt, &raw); err != nil {
			return nil, fmt.Errorf("scan call metadata: %w", err)
		}
		m.RawResponse = raw
		out = append(out, m)
	}
	return out, rows.Err()
}

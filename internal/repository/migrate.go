package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS block (
		id             uuid PRIMARY KEY,
		document_id    uuid NOT NULL,
		page           integer NOT NULL,
		bbox           jsonb NOT NULL,
		type           text NOT NULL,
		confidence     double precision NOT NULL,
		detector_model text NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS block_document_page_idx ON block (document_id, page)`,
	`CREATE TABLE IF NOT EXISTS condition (
		id          uuid PRIMARY KEY,
		document_id uuid NOT NULL,
		category    text NOT NULL DEFAULT '',
		label       text NOT NULL DEFAULT '',
		content     text NOT NULL,
		section     text NOT NULL DEFAULT '',
		pages       jsonb NOT NULL,
		bbox        jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS condition_document_idx ON condition (document_id)`,
	`CREATE TABLE IF NOT EXISTS reference_link (
		id           uuid PRIMARY KEY,
		document_id  uuid NOT NULL,
		condition_id uuid NOT NULL,
		block_id     uuid NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reference_link_document_idx ON reference_link (document_id)`,
	`CREATE TABLE IF NOT EXISTS page_mapping_result (
		id            uuid PRIMARY KEY,
		document_id   uuid NOT NULL,
		page_number   integer NOT NULL,
		status        text NOT NULL,
		raw_response  jsonb,
		error_message text NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS page_mapping_result_document_idx ON page_mapping_result (document_id, page_number)`,
	`CREATE TABLE IF NOT EXISTS call_metadata (
		id            uuid PRIMARY KEY,
		document_id   uuid NOT NULL,
		stage         text NOT NULL,
		model         text NOT NULL DEFAULT '',
		system_prompt text NOT NULL DEFAULT '',
		user_prompt   text NOT NULL DEFAULT '',
		raw_response  jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS call_metadata_document_idx ON call_metadata (document_id)`,
}

// Migrate creates the record tables when they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
)

// PassageRecord is the write-side shape for ingestion. EmbeddingVector is a
// pgvector literal; nil leaves the column NULL so the passage is invisible to
// similarity search until re-embedded.
type PassageRecord struct {
	ID         string
	PaperID    string
	ChunkIndex int
	Content    string
	TokenCount int

	EmbeddingVector *string
}

type PassageRepo struct {
	db *DB
}

func NewPassageRepo(db *DB) *PassageRepo {
	return &PassageRepo{db: db}
}

// ReplacePassages swaps a paper's passage set atomically, so a re-ingest never
// leaves a mix of old and new chunks behind.
func (r *PassageRepo) ReplacePassages(ctx context.Context, paperID string, passages []PassageRecord) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace passages: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM paper_chunks WHERE paper_id::text = $1`, paperID); err != nil {
		return fmt.Errorf("delete old passages: %w", err)
	}
	for _, p := range passages {
		_, err := tx.Exec(ctx, `
INSERT INTO paper_chunks (id, paper_id, content, chunk_index, token_count, embedding)
VALUES ($1, $2, $3, $4, $5, CASE WHEN $6::text IS NULL THEN NULL ELSE $6::vector END)`,
			p.ID, p.PaperID, p.Content, p.ChunkIndex, p.TokenCount, p.EmbeddingVector,
		)
		if err != nil {
			return fmt.Errorf("insert passage %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit passages tx: %w", err)
	}
	return nil
}

func (r *PassageRepo) CountByPaper(ctx context.Context, paperID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM paper_chunks WHERE paper_id::text = $1`, paperID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return n, nil
}

// GetContentByIDs returns passage contents in the order of ids. Ids that no
// longer resolve are dropped, not errored: a cached answer may legitimately
// reference passages deleted by a later re-ingest.
func (r *PassageRepo) GetContentByIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id::text, content FROM paper_chunks WHERE id::text = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch passages by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]string, len(ids))
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("scan passage content: %w", err)
		}
		byID[id] = content
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passage contents: %w", err)
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if content, ok := byID[id]; ok {
			out = append(out, content)
		}
	}
	return out, nil
}

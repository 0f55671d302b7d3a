package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"researchgraph/internal/models"
)

// CacheRepo persists generated answers keyed by (paper, question fingerprint).
// The table carries no uniqueness constraint on that pair: concurrent misses
// for the same question may insert twice, and Lookup resolves the race by
// returning the newest entry. Lookup accepts either the internal uuid or the
// arXiv id so a probe can run before the paper row is resolved. Nothing here
// ever deletes.
type CacheRepo struct {
	db *DB
}

func NewCacheRepo(db *DB) *CacheRepo {
	return &CacheRepo{db: db}
}

func (r *CacheRepo) Lookup(ctx context.Context, paperID, fingerprint string) (models.CacheEntry, bool, error) {
	row := r.db.Pool.QueryRow(ctx, `
SELECT id::text, paper_id::text, question, question_hash, answer, context_chunk_ids,
       COALESCE(model_used,''), COALESCE(tokens_used,0), hit_count, created_at, last_accessed_at
FROM chat_cache
WHERE question_hash = $2
  AND (paper_id::text = $1
       OR paper_id IN (SELECT id FROM papers WHERE arxiv_id = $1))
ORDER BY created_at DESC
LIMIT 1`, paperID, fingerprint)

	var e models.CacheEntry
	err := row.Scan(&e.ID, &e.PaperID, &e.Question, &e.QuestionHash, &e.Answer, &e.ContextPassageIDs,
		&e.ModelUsed, &e.TokensUsed, &e.HitCount, &e.CreatedAt, &e.LastAccessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("cache lookup: %w", err)
	}
	return e, true, nil
}

func (r *CacheRepo) RecordHit(ctx context.Context, entryID string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE chat_cache SET hit_count = hit_count + 1, last_accessed_at = NOW()
WHERE id::text = $1`, entryID)
	if err != nil {
		return fmt.Errorf("record cache hit: %w", err)
	}
	return nil
}

func (r *CacheRepo) Store(ctx context.Context, e models.CacheEntry) (models.CacheEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ContextPassageIDs == nil {
		e.ContextPassageIDs = []string{}
	}
	row := r.db.Pool.QueryRow(ctx, `
INSERT INTO chat_cache (id, paper_id, question, question_hash, answer, context_chunk_ids, model_used, tokens_used)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7,''), $8)
RETURNING created_at, last_accessed_at`,
		e.ID, e.PaperID, e.Question, e.QuestionHash, e.Answer, e.ContextPassageIDs, e.ModelUsed, e.TokensUsed,
	)
	if err := row.Scan(&e.CreatedAt, &e.LastAccessedAt); err != nil {
		return models.CacheEntry{}, fmt.Errorf("store cache entry: %w", err)
	}
	return e, nil
}

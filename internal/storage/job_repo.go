package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"researchgraph/internal/models"
)

type JobRepo struct {
	db *DB
}

func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) CreateJob(ctx context.Context, arxivID string) (models.IngestionJob, error) {
	job := models.IngestionJob{ID: uuid.NewString(), ArxivID: arxivID, Status: models.JobPending}
	row := r.db.Pool.QueryRow(ctx, `
INSERT INTO ingestion_jobs (id, arxiv_id, status)
VALUES ($1, $2, $3)
RETURNING created_at`, job.ID, job.ArxivID, job.Status)
	if err := row.Scan(&job.CreatedAt); err != nil {
		return models.IngestionJob{}, fmt.Errorf("create ingestion job: %w", err)
	}
	return job, nil
}

func (r *JobRepo) UpdateStatus(ctx context.Context, jobID, status, errorMessage string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE ingestion_jobs
SET status = $2,
    error_message = NULLIF($3,''),
    started_at = CASE WHEN $2 = 'running' THEN NOW() ELSE started_at END,
    completed_at = CASE WHEN $2 IN ('completed','failed') THEN NOW() ELSE completed_at END
WHERE id::text = $1`, jobID, status, errorMessage)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func (r *JobRepo) GetLatestByArxivID(ctx context.Context, arxivID string) (models.IngestionJob, bool, error) {
	row := r.db.Pool.QueryRow(ctx, `
SELECT id::text, arxiv_id, status, COALESCE(error_message,''), started_at, completed_at, created_at
FROM ingestion_jobs
WHERE arxiv_id = $1
ORDER BY created_at DESC
LIMIT 1`, arxivID)

	var j models.IngestionJob
	err := row.Scan(&j.ID, &j.ArxivID, &j.Status, &j.ErrorMessage, &j.StartedAt, &j.CompletedAt, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.IngestionJob{}, false, nil
	}
	if err != nil {
		return models.IngestionJob{}, false, fmt.Errorf("get latest job: %w", err)
	}
	return j, true, nil
}

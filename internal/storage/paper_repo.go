package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"researchgraph/internal/models"
)

type PaperRepo struct {
	db *DB
}

func NewPaperRepo(db *DB) *PaperRepo {
	return &PaperRepo{db: db}
}

const paperColumns = `
id::text, arxiv_id, title, COALESCE(abstract,''), authors, categories,
published_date, updated_date, COALESCE(pdf_url,''), COALESCE(local_pdf_path,''),
"references", cited_by, is_processed, chunk_count, created_at, updated_at`

func scanPaper(row pgx.Row) (models.Paper, error) {
	var p models.Paper
	err := row.Scan(&p.ID, &p.ArxivID, &p.Title, &p.Abstract, &p.Authors, &p.Categories,
		&p.PublishedDate, &p.UpdatedDate, &p.PDFURL, &p.LocalPDFPath,
		&p.References, &p.CitedBy, &p.IsProcessed, &p.ChunkCount, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetPaper resolves a paper by internal uuid or external arXiv id.
func (r *PaperRepo) GetPaper(ctx context.Context, idOrArxivID string) (models.Paper, bool, error) {
	row := r.db.Pool.QueryRow(ctx, `
SELECT `+paperColumns+`
FROM papers
WHERE id::text = $1 OR arxiv_id = $1`, idOrArxivID)
	p, err := scanPaper(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Paper{}, false, nil
	}
	if err != nil {
		return models.Paper{}, false, fmt.Errorf("get paper: %w", err)
	}
	return p, true, nil
}

func (r *PaperRepo) UpsertPaper(ctx context.Context, p models.Paper) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO papers (id, arxiv_id, title, abstract, authors, categories,
                    published_date, pdf_url, "references", cited_by, is_processed)
VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, $7, NULLIF($8,''), $9, $10, $11)
ON CONFLICT (arxiv_id)
DO UPDATE SET
  title = EXCLUDED.title,
  abstract = COALESCE(EXCLUDED.abstract, papers.abstract),
  authors = EXCLUDED.authors,
  categories = EXCLUDED.categories,
  published_date = COALESCE(EXCLUDED.published_date, papers.published_date),
  pdf_url = COALESCE(EXCLUDED.pdf_url, papers.pdf_url),
  "references" = EXCLUDED."references",
  updated_at = NOW()`,
		p.ID, p.ArxivID, p.Title, p.Abstract, p.Authors, p.Categories,
		p.PublishedDate, p.PDFURL, p.References, p.CitedBy, p.IsProcessed,
	)
	if err != nil {
		return fmt.Errorf("upsert paper: %w", err)
	}
	return nil
}

func (r *PaperRepo) ListPapersByArxivIDs(ctx context.Context, arxivIDs []string) ([]models.Paper, error) {
	if len(arxivIDs) == 0 {
		return []models.Paper{}, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+paperColumns+`
FROM papers
WHERE arxiv_id = ANY($1)
ORDER BY published_date ASC NULLS LAST`, arxivIDs)
	if err != nil {
		return nil, fmt.Errorf("list papers by arxiv ids: %w", err)
	}
	defer rows.Close()

	out := make([]models.Paper, 0, len(arxivIDs))
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return out, nil
}

func (r *PaperRepo) MarkProcessed(ctx context.Context, paperID string, chunkCount int) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE papers SET is_processed = true, chunk_count = $2, updated_at = NOW()
WHERE id::text = $1`, paperID, chunkCount)
	if err != nil {
		return fmt.Errorf("mark paper processed: %w", err)
	}
	return nil
}

func (r *PaperRepo) SetLocalPDFPath(ctx context.Context, paperID, path string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE papers SET local_pdf_path = $2, updated_at = NOW()
WHERE id::text = $1`, paperID, path)
	if err != nil {
		return fmt.Errorf("set local pdf path: %w", err)
	}
	return nil
}

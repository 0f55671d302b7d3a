package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"researchgraph/internal/models"
)

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// TopK returns the most similar passages of one paper, cosine score
// descending. Score ties fall back to chunk insertion order.
func (s *Searcher) TopK(ctx context.Context, paperID string, queryVec []float32, k int) ([]models.PassageHit, error) {
	if k <= 0 {
		k = 5
	}
	vecLiteral := ToLiteral(queryVec)

	rows, err := s.q.Query(ctx, `
SELECT id::text,
       content,
       1 - (embedding <=> $2::vector) AS score
FROM paper_chunks
WHERE paper_id::text = $1
  AND embedding IS NOT NULL
ORDER BY embedding <=> $2::vector, chunk_index ASC
LIMIT $3`, paperID, vecLiteral, k)
	if err != nil {
		return nil, fmt.Errorf("query passage search: %w", err)
	}
	defer rows.Close()

	results := make([]models.PassageHit, 0, k)
	for rows.Next() {
		var h models.PassageHit
		if err := rows.Scan(&h.ID, &h.Content, &h.Score); err != nil {
			return nil, fmt.Errorf("scan passage hit: %w", err)
		}
		results = append(results, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

package models

import (
	"time"

	"github.com/google/uuid"
)

type Paper struct {
	ID            string     `json:"id"`
	ArxivID       string     `json:"arxiv_id"`
	Title         string     `json:"title"`
	Abstract      string     `json:"abstract,omitempty"`
	Authors       []string   `json:"authors,omitempty"`
	Categories    []string   `json:"categories,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	UpdatedDate   *time.Time `json:"updated_date,omitempty"`
	PDFURL        string     `json:"pdf_url,omitempty"`
	LocalPDFPath  string     `json:"local_pdf_path,omitempty"`
	References    []string   `json:"references,omitempty"`
	CitedBy       []string   `json:"cited_by,omitempty"`
	IsProcessed   bool       `json:"is_processed"`
	ChunkCount    int        `json:"chunk_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Passage struct {
	ID           string    `json:"id"`
	PaperID      string    `json:"paper_id"`
	Content      string    `json:"content"`
	ChunkIndex   int       `json:"chunk_index"`
	PageNumber   *int      `json:"page_number,omitempty"`
	SectionTitle string    `json:"section_title,omitempty"`
	TokenCount   int       `json:"token_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PassageHit is one similarity-search result, score descending.
type PassageHit struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type CacheEntry struct {
	ID                string    `json:"id"`
	PaperID           string    `json:"paper_id"`
	Question          string    `json:"question"`
	QuestionHash      string    `json:"question_hash"`
	Answer            string    `json:"answer"`
	ContextPassageIDs []string  `json:"context_chunk_ids"`
	ModelUsed         string    `json:"model_used,omitempty"`
	TokensUsed        int       `json:"tokens_used,omitempty"`
	HitCount          int       `json:"hit_count"`
	CreatedAt         time.Time `json:"created_at"`
	LastAccessedAt    time.Time `json:"last_accessed_at"`
}

type IngestionJob struct {
	ID           string     `json:"id"`
	ArxivID      string     `json:"arxiv_id"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// PaperIDForArxiv derives the stable paper id from the external arXiv id
// (version-5 UUID in the URL namespace), so re-ingesting the same paper
// always lands on the same row.
func PaperIDForArxiv(arxivID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(arxivID)).String()
}

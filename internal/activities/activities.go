package activities

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"researchgraph/internal/arxiv"
	"researchgraph/internal/config"
	"researchgraph/internal/metrics"
	"researchgraph/internal/models"
	"researchgraph/internal/providers"
	"researchgraph/internal/storage"
	"researchgraph/internal/util"
	"researchgraph/internal/vector"
)

type Activities struct {
	cfg       config.Config
	papers    *storage.PaperRepo
	passages  *storage.PassageRepo
	jobs      *storage.JobRepo
	arxiv     *arxiv.Client
	providers *providers.Manager
	http      *http.Client
	log       *zap.Logger
}

func NewActivities(cfg config.Config, db *storage.DB, ac *arxiv.Client, pm *providers.Manager, log *zap.Logger) *Activities {
	return &Activities{
		cfg:       cfg,
		papers:    storage.NewPaperRepo(db),
		passages:  storage.NewPassageRepo(db),
		jobs:      storage.NewJobRepo(db),
		arxiv:     ac,
		providers: pm,
		http:      &http.Client{Timeout: 2 * time.Minute},
		log:       log,
	}
}

// FetchPaperActivity resolves arXiv metadata and upserts the paper row.
// The paper id is deterministic, so retries of this activity converge on the
// same row.
func (a *Activities) FetchPaperActivity(ctx context.Context, in FetchPaperInput) (FetchPaperOutput, error) {
	entry, err := a.arxiv.FetchByID(ctx, in.ArxivID)
	if err != nil {
		return FetchPaperOutput{}, fmt.Errorf("fetch arxiv metadata: %w", err)
	}

	p := models.Paper{
		ID:         models.PaperIDForArxiv(entry.ArxivID),
		ArxivID:    entry.ArxivID,
		Title:      entry.Title,
		Abstract:   entry.Summary,
		Authors:    entry.Authors,
		Categories: entry.Categories,
		PDFURL:     entry.PDFURL,
	}
	if !entry.Published.IsZero() {
		pub := entry.Published
		p.PublishedDate = &pub
	}
	if !entry.Updated.IsZero() {
		upd := entry.Updated
		p.UpdatedDate = &upd
	}
	if err := a.papers.UpsertPaper(ctx, p); err != nil {
		return FetchPaperOutput{}, fmt.Errorf("store paper: %w", err)
	}
	return FetchPaperOutput{PaperID: p.ID, Title: p.Title, PDFURL: p.PDFURL}, nil
}

func (a *Activities) DownloadPDFActivity(ctx context.Context, in DownloadPDFInput) (DownloadPDFOutput, error) {
	if in.PDFURL == "" {
		return DownloadPDFOutput{}, fmt.Errorf("paper %s has no pdf url", in.ArxivID)
	}
	if err := util.EnsureDir(a.cfg.PaperStoragePath); err != nil {
		return DownloadPDFOutput{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.PDFURL, nil)
	if err != nil {
		return DownloadPDFOutput{}, fmt.Errorf("build pdf request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return DownloadPDFOutput{}, fmt.Errorf("download pdf: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return DownloadPDFOutput{}, fmt.Errorf("download pdf: status %d", resp.StatusCode)
	}

	filename := strings.ReplaceAll(in.ArxivID, "/", "_") + ".pdf"
	finalPath := util.SafeJoin(a.cfg.PaperStoragePath, filename)

	tmp, err := os.CreateTemp(a.cfg.PaperStoragePath, "download-*.pdf")
	if err != nil {
		return DownloadPDFOutput{}, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return DownloadPDFOutput{}, fmt.Errorf("write pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return DownloadPDFOutput{}, err
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return DownloadPDFOutput{}, fmt.Errorf("atomic move pdf: %w", err)
	}

	if err := a.papers.SetLocalPDFPath(ctx, in.PaperID, finalPath); err != nil {
		return DownloadPDFOutput{}, fmt.Errorf("record pdf path: %w", err)
	}
	return DownloadPDFOutput{Path: finalPath}, nil
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	_ = ctx
	f, r, err := pdf.Open(in.Path)
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return ExtractTextOutput{}, fmt.Errorf("read extracted text: %w", err)
	}
	text := util.SanitizeText(strings.TrimSpace(buf.String()))
	if text == "" {
		return ExtractTextOutput{}, util.ErrNoExtractableText
	}
	return ExtractTextOutput{Text: text}, nil
}

func (a *Activities) ChunkTextActivity(ctx context.Context, in ChunkTextInput) (ChunkTextOutput, error) {
	_ = ctx
	if in.ChunkSize <= 0 {
		in.ChunkSize = a.cfg.ChunkSize
	}
	if in.ChunkOverlap < 0 || in.ChunkOverlap >= in.ChunkSize {
		in.ChunkOverlap = a.cfg.ChunkOverlap
	}

	rawChunks := util.ChunkText(in.Text, in.ChunkSize, in.ChunkOverlap)
	chunks := make([]ChunkItem, 0, len(rawChunks))
	for idx, part := range rawChunks {
		part = util.SanitizeText(part)
		if part == "" {
			continue
		}
		contentHash := util.SHA256Hex([]byte(part))
		// Deterministic so a retried ingestion writes the same passage ids.
		passageID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d:%s", in.PaperID, idx, contentHash))).String()
		chunks = append(chunks, ChunkItem{
			PassageID:  passageID,
			ChunkIndex: idx,
			Text:       part,
			TokenCount: util.ApproxTokenCount(part),
		})
	}
	return ChunkTextOutput{Chunks: chunks}, nil
}

func (a *Activities) EmbedPassagesActivity(ctx context.Context, in EmbedPassagesInput) (EmbedPassagesOutput, error) {
	vectors, info, err := a.providers.Embedder().Embed(ctx, providers.EmbedRequest{
		Inputs:    in.Inputs,
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedPassagesOutput{}, err
	}
	if len(vectors) != len(in.Inputs) {
		return EmbedPassagesOutput{}, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(in.Inputs))
	}
	return EmbedPassagesOutput{Vectors: vectors, ProviderName: info.Name, Model: info.Model}, nil
}

// UpsertPassagesActivity replaces the paper's passage set in one transaction,
// so a retried ingestion never leaves duplicate chunks behind.
func (a *Activities) UpsertPassagesActivity(ctx context.Context, in UpsertPassagesInput) error {
	if len(in.Vectors) != len(in.Chunks) {
		return fmt.Errorf("have %d vectors for %d chunks", len(in.Vectors), len(in.Chunks))
	}
	records := make([]storage.PassageRecord, 0, len(in.Chunks))
	for i, c := range in.Chunks {
		lit := vector.ToLiteral(in.Vectors[i])
		records = append(records, storage.PassageRecord{
			ID:              c.PassageID,
			PaperID:         in.PaperID,
			ChunkIndex:      c.ChunkIndex,
			Content:         c.Text,
			TokenCount:      c.TokenCount,
			EmbeddingVector: &lit,
		})
	}
	if err := a.passages.ReplacePassages(ctx, in.PaperID, records); err != nil {
		return fmt.Errorf("store passages: %w", err)
	}
	metrics.PassagesIngested.Add(float64(len(records)))
	return nil
}

func (a *Activities) MarkPaperProcessedActivity(ctx context.Context, in MarkPaperProcessedInput) error {
	return a.papers.MarkProcessed(ctx, in.PaperID, in.ChunkCount)
}

func (a *Activities) UpdateJobStatusActivity(ctx context.Context, in UpdateJobStatusInput) error {
	return a.jobs.UpdateStatus(ctx, in.JobID, in.Status, in.ErrorMessage)
}

package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"researchgraph/internal/metrics"
	"researchgraph/internal/models"
	"researchgraph/internal/providers"
)

// Storage and retrieval capabilities the pipeline consumes. The concrete
// implementations live in internal/storage and internal/vector; tests use
// in-memory fakes.
type PaperStore interface {
	GetPaper(ctx context.Context, idOrArxivID string) (models.Paper, bool, error)
}

type PassageStore interface {
	CountByPaper(ctx context.Context, paperID string) (int, error)
	GetContentByIDs(ctx context.Context, ids []string) ([]string, error)
}

type PassageIndex interface {
	TopK(ctx context.Context, paperID string, vec []float32, k int) ([]models.PassageHit, error)
}

type AnswerCache interface {
	Lookup(ctx context.Context, paperID, fingerprint string) (models.CacheEntry, bool, error)
	RecordHit(ctx context.Context, entryID string) error
	Store(ctx context.Context, e models.CacheEntry) (models.CacheEntry, error)
}

const (
	SourceCache = "cache"
	SourceLLM   = "llm"

	// Suggested wait surfaced with RateLimitedError.
	quotaRetryAfter = 60 * time.Second
)

type AskRequest struct {
	PaperID  string `json:"paper_id"`
	Question string `json:"question"`
}

type AskResponse struct {
	Answer      string   `json:"answer"`
	Source      string   `json:"source"`
	ContextUsed []string `json:"context_used"`
}

// Pipeline answers questions about a single paper: probe the answer cache,
// otherwise resolve the paper, assemble context, generate, and persist the
// result best-effort. There is no single-flight guard: two identical
// concurrent misses may both generate, and both entries are tolerated.
type Pipeline struct {
	papers    PaperStore
	passages  PassageStore
	cache     AnswerCache
	assembler *Assembler
	llm       providers.LLMProvider
	log       *zap.Logger
}

func NewPipeline(papers PaperStore, passages PassageStore, cache AnswerCache, assembler *Assembler, llm providers.LLMProvider, log *zap.Logger) *Pipeline {
	return &Pipeline{
		papers:    papers,
		passages:  passages,
		cache:     cache,
		assembler: assembler,
		llm:       llm,
		log:       log,
	}
}

func (p *Pipeline) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return AskResponse{}, ErrEmptyQuestion
	}
	fingerprint := Fingerprint(question)

	entry, hit, err := p.cache.Lookup(ctx, req.PaperID, fingerprint)
	if err != nil {
		// A broken cache read degrades to a miss, it does not fail the ask.
		p.log.Warn("cache lookup failed", zap.String("paper_id", req.PaperID), zap.Error(err))
	}
	if hit {
		metrics.CacheHits.Inc()
		metrics.AskTotal.WithLabelValues(SourceCache).Inc()
		go p.recordHit(entry.ID)

		contextUsed, err := p.passages.GetContentByIDs(ctx, entry.ContextPassageIDs)
		if err != nil {
			p.log.Warn("cached context replay failed", zap.String("entry_id", entry.ID), zap.Error(err))
			contextUsed = []string{}
		}
		return AskResponse{Answer: entry.Answer, Source: SourceCache, ContextUsed: contextUsed}, nil
	}
	metrics.CacheMisses.Inc()

	paper, found, err := p.papers.GetPaper(ctx, req.PaperID)
	if err != nil {
		return AskResponse{}, fmt.Errorf("resolve paper: %w", err)
	}
	if !found {
		return AskResponse{}, &NotFoundError{Resource: "paper", ID: req.PaperID, Reason: "paper does not exist"}
	}

	blocks, passageIDs, err := p.assembler.Assemble(ctx, paper, question)
	if err != nil {
		return AskResponse{}, err
	}

	resp, info, err := p.llm.Generate(ctx, providers.GenerateRequest{Prompt: buildPrompt(question, blocks)})
	if err != nil {
		return AskResponse{}, mapProviderError("generate", err)
	}
	metrics.LLMTokensUsed.WithLabelValues(info.Model).Add(float64(resp.TokensUsed))
	metrics.AskTotal.WithLabelValues(SourceLLM).Inc()

	if _, err := p.cache.Store(ctx, models.CacheEntry{
		PaperID:           paper.ID,
		Question:          question,
		QuestionHash:      fingerprint,
		Answer:            resp.Text,
		ContextPassageIDs: passageIDs,
		ModelUsed:         info.Model,
		TokensUsed:        resp.TokensUsed,
	}); err != nil {
		// The answer is already in hand; losing the cache write costs a
		// future regeneration, nothing else.
		p.log.Warn("cache write failed", zap.String("paper_id", paper.ID), zap.Error(err))
	}

	return AskResponse{Answer: resp.Text, Source: SourceLLM, ContextUsed: blocks}, nil
}

// recordHit bumps hit accounting on its own deadline so an aborted request
// cannot cancel it.
func (p *Pipeline) recordHit(entryID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.cache.RecordHit(ctx, entryID); err != nil {
		p.log.Warn("cache hit accounting failed", zap.String("entry_id", entryID), zap.Error(err))
	}
}

func buildPrompt(question string, contextBlocks []string) string {
	return "You are a helpful research assistant that answers questions about academic papers. " +
		"You have access to the paper's full metadata including title, authors, publication date, " +
		"abstract, categories, references, and more. " +
		"Answer the question accurately based on the provided context. " +
		"For factual questions (who wrote it, when was it published, how many references, etc.), " +
		"answer directly from the metadata. " +
		"For conceptual questions, provide helpful background knowledge to help the student understand. " +
		"If the context doesn't fully answer the question, use your general knowledge to supplement, " +
		"but clearly indicate when you're doing so.\n\n" +
		"Context:\n" + strings.Join(contextBlocks, providers.ContextSeparator) + "\n\n" +
		"Question: " + question
}

// mapProviderError translates provider failures into the pipeline taxonomy:
// quota and rate exhaustion become RateLimitedError with a retry hint,
// everything else an opaque UpstreamError.
func mapProviderError(op string, err error) error {
	switch providers.ClassifyError(err) {
	case providers.ErrorQuota, providers.ErrorRate:
		return &RateLimitedError{RetryAfter: quotaRetryAfter}
	default:
		return &UpstreamError{Op: op, Err: err}
	}
}

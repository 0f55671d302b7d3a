package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"researchgraph/internal/models"
	"researchgraph/internal/providers"
	"researchgraph/internal/util"
)

type fakePaperStore struct {
	papers map[string]models.Paper
	calls  int
}

func (f *fakePaperStore) GetPaper(_ context.Context, id string) (models.Paper, bool, error) {
	f.calls++
	p, ok := f.papers[id]
	return p, ok, nil
}

type fakePassageStore struct {
	counts  map[string]int
	content map[string]string
}

func (f *fakePassageStore) CountByPaper(_ context.Context, paperID string) (int, error) {
	return f.counts[paperID], nil
}

func (f *fakePassageStore) GetContentByIDs(_ context.Context, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if c, ok := f.content[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeIndex struct {
	hits  []models.PassageHit
	calls int
}

func (f *fakeIndex) TopK(_ context.Context, _ string, _ []float32, k int) ([]models.PassageHit, error) {
	f.calls++
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries []models.CacheEntry
	hits    map[string]int
}

func (f *fakeCache) Lookup(_ context.Context, paperID, fingerprint string) (models.CacheEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.PaperID == paperID && e.QuestionHash == fingerprint {
			return e, true, nil
		}
	}
	return models.CacheEntry{}, false, nil
}

func (f *fakeCache) RecordHit(_ context.Context, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hits == nil {
		f.hits = map[string]int{}
	}
	f.hits[entryID]++
	return nil
}

func (f *fakeCache) Store(_ context.Context, e models.CacheEntry) (models.CacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = fmt.Sprintf("entry-%d", len(f.entries)+1)
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeCache) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type scriptedLLM struct {
	answer string
	err    error
	calls  int
}

func (s *scriptedLLM) Generate(_ context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	s.calls++
	if s.err != nil {
		return providers.GenerateResponse{}, providers.ProviderInfo{}, s.err
	}
	return providers.GenerateResponse{Text: s.answer, TokensUsed: 42}, providers.ProviderInfo{Name: "scripted", Model: "scripted-1"}, nil
}

func testPaper() models.Paper {
	pub := time.Date(2017, 6, 12, 0, 0, 0, 0, time.UTC)
	return models.Paper{
		ID:            models.PaperIDForArxiv("1706.03762"),
		ArxivID:       "1706.03762",
		Title:         "Attention Is All You Need",
		Abstract:      "We propose the Transformer, a model architecture based solely on attention.",
		Authors:       []string{"Ashish Vaswani", "Noam Shazeer"},
		Categories:    []string{"cs.CL"},
		PublishedDate: &pub,
	}
}

func newTestPipeline(paper models.Paper, passages *fakePassageStore, index *fakeIndex, cache *fakeCache, llm *scriptedLLM) (*Pipeline, *fakePaperStore) {
	papers := &fakePaperStore{papers: map[string]models.Paper{paper.ID: paper}}
	embedder := providers.NewMockProvider(16)
	asm := NewAssembler(passages, index, embedder, 5, 16)
	return NewPipeline(papers, passages, cache, asm, llm, zap.NewNop()), papers
}

func TestAskMissThenHit(t *testing.T) {
	paper := testPaper()
	passages := &fakePassageStore{
		counts: map[string]int{paper.ID: 3},
		content: map[string]string{
			"p1": "chunk one",
			"p2": "chunk two",
			"p3": "chunk three",
		},
	}
	index := &fakeIndex{hits: []models.PassageHit{
		{ID: "p1", Content: "chunk one", Score: 0.9},
		{ID: "p2", Content: "chunk two", Score: 0.8},
		{ID: "p3", Content: "chunk three", Score: 0.7},
	}}
	cache := &fakeCache{}
	llm := &scriptedLLM{answer: "The Transformer uses self-attention."}
	p, _ := newTestPipeline(paper, passages, index, cache, llm)

	first, err := p.Ask(context.Background(), AskRequest{PaperID: paper.ID, Question: "What is the Transformer?"})
	if err != nil {
		t.Fatalf("first ask: %v", err)
	}
	if first.Source != SourceLLM {
		t.Fatalf("first source = %q, want %q", first.Source, SourceLLM)
	}
	// Metadata block plus three passages.
	if len(first.ContextUsed) != 4 {
		t.Fatalf("context blocks = %d, want 4", len(first.ContextUsed))
	}
	if !strings.HasPrefix(first.ContextUsed[0], "Title: Attention Is All You Need") {
		t.Fatalf("metadata block must lead the context, got %q", first.ContextUsed[0])
	}
	if cache.size() != 1 {
		t.Fatalf("cache entries = %d, want 1", cache.size())
	}

	// Same question, different casing and padding: must hit without the LLM.
	second, err := p.Ask(context.Background(), AskRequest{PaperID: paper.ID, Question: "  WHAT IS THE TRANSFORMER?  "})
	if err != nil {
		t.Fatalf("second ask: %v", err)
	}
	if second.Source != SourceCache {
		t.Fatalf("second source = %q, want %q", second.Source, SourceCache)
	}
	if second.Answer != first.Answer {
		t.Fatalf("cached answer mismatch: %q vs %q", second.Answer, first.Answer)
	}
	if llm.calls != 1 {
		t.Fatalf("llm calls = %d, want 1", llm.calls)
	}
	if got := len(second.ContextUsed); got != 3 {
		t.Fatalf("replayed context = %d passages, want 3", got)
	}
}

func TestAskMetadataFallback(t *testing.T) {
	paper := testPaper() // abstract set, no passages indexed
	passages := &fakePassageStore{counts: map[string]int{}}
	index := &fakeIndex{}
	cache := &fakeCache{}
	llm := &scriptedLLM{answer: "It was published in 2017."}
	p, _ := newTestPipeline(paper, passages, index, cache, llm)

	resp, err := p.Ask(context.Background(), AskRequest{PaperID: paper.ID, Question: "When was it published?"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if resp.Source != SourceLLM {
		t.Fatalf("source = %q, want %q", resp.Source, SourceLLM)
	}
	if len(resp.ContextUsed) != 1 {
		t.Fatalf("context blocks = %d, want 1 metadata block", len(resp.ContextUsed))
	}
	if index.calls != 0 {
		t.Fatalf("index queried %d times on metadata fallback, want 0", index.calls)
	}
	if cache.size() != 1 {
		t.Fatalf("fallback answers must still be cached, entries = %d", cache.size())
	}
	if got := cache.entries[0].ContextPassageIDs; len(got) != 0 {
		t.Fatalf("fallback entry recorded passage ids %v, want none", got)
	}
}

func TestAskNoContentNotFound(t *testing.T) {
	paper := testPaper()
	paper.Abstract = ""
	passages := &fakePassageStore{counts: map[string]int{}}
	cache := &fakeCache{}
	llm := &scriptedLLM{answer: "unreachable"}
	p, _ := newTestPipeline(paper, passages, &fakeIndex{}, cache, llm)

	_, err := p.Ask(context.Background(), AskRequest{PaperID: paper.ID, Question: "Anything?"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if llm.calls != 0 {
		t.Fatalf("llm called %d times for a paper with no content", llm.calls)
	}
	if cache.size() != 0 {
		t.Fatalf("nothing should be cached on failure, entries = %d", cache.size())
	}
}

func TestAskUnknownPaper(t *testing.T) {
	paper := testPaper()
	passages := &fakePassageStore{counts: map[string]int{paper.ID: 3}}
	llm := &scriptedLLM{answer: "unreachable"}
	index := &fakeIndex{}
	p, _ := newTestPipeline(paper, passages, index, &fakeCache{}, llm)

	_, err := p.Ask(context.Background(), AskRequest{PaperID: "no-such-paper", Question: "Hello?"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	// Existence is checked before any upstream work.
	if index.calls != 0 || llm.calls != 0 {
		t.Fatalf("upstream reached for unknown paper: index=%d llm=%d", index.calls, llm.calls)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	paper := testPaper()
	p, _ := newTestPipeline(paper, &fakePassageStore{}, &fakeIndex{}, &fakeCache{}, &scriptedLLM{})

	_, err := p.Ask(context.Background(), AskRequest{PaperID: paper.ID, Question: "   \n\t "})
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("err = %v, want ErrEmptyQuestion", err)
	}
}

func TestAskQuotaMapsToRateLimited(t *testing.T) {
	paper := testPaper()
	passages := &fakePassageStore{counts: map[string]int{paper.ID: 1}}
	index := &fakeIndex{hits: []models.PassageHit{{ID: "p1", Content: "chunk", Score: 0.5}}}
	llm := &scriptedLLM{err: fmt.Errorf("generate: %w", util.ErrQuotaExhausted)}
	p, _ := newTestPipeline(paper, passages, index, &fakeCache{}, llm)

	_, err := p.Ask(context.Background(), AskRequest{PaperID: paper.ID, Question: "Q?"})
	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want RateLimitedError", err)
	}
	if rl.RetryAfter <= 0 {
		t.Fatalf("RetryAfter = %v, want positive hint", rl.RetryAfter)
	}
}

func TestAskUpstreamFailure(t *testing.T) {
	paper := testPaper()
	passages := &fakePassageStore{counts: map[string]int{paper.ID: 1}}
	index := &fakeIndex{hits: []models.PassageHit{{ID: "p1", Content: "chunk", Score: 0.5}}}
	llm := &scriptedLLM{err: errors.New("connection reset by peer")}
	p, _ := newTestPipeline(paper, passages, index, &fakeCache{}, llm)

	_, err := p.Ask(context.Background(), AskRequest{PaperID: paper.ID, Question: "Q?"})
	var up *UpstreamError
	if !errors.As(err, &up) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if up.Op != "generate" {
		t.Fatalf("Op = %q, want generate", up.Op)
	}
}

func TestCacheReplayDropsDeletedPassages(t *testing.T) {
	paper := testPaper()
	passages := &fakePassageStore{
		counts: map[string]int{paper.ID: 3},
		// p2 has been deleted since the entry was written.
		content: map[string]string{"p1": "chunk one", "p3": "chunk three"},
	}
	cache := &fakeCache{}
	if _, err := cache.Store(context.Background(), models.CacheEntry{
		PaperID:           paper.ID,
		QuestionHash:      Fingerprint("what remains?"),
		Answer:            "cached answer",
		ContextPassageIDs: []string{"p1", "p2", "p3"},
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	p, _ := newTestPipeline(paper, passages, &fakeIndex{}, cache, &scriptedLLM{answer: "unreachable"})

	resp, err := p.Ask(context.Background(), AskRequest{PaperID: paper.ID, Question: "What remains?"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if resp.Source != SourceCache {
		t.Fatalf("source = %q, want %q", resp.Source, SourceCache)
	}
	want := []string{"chunk one", "chunk three"}
	if len(resp.ContextUsed) != len(want) {
		t.Fatalf("replayed context = %v, want %v", resp.ContextUsed, want)
	}
	for i := range want {
		if resp.ContextUsed[i] != want[i] {
			t.Fatalf("replayed context = %v, want %v", resp.ContextUsed, want)
		}
	}
}

func TestDuplicateEntriesNewestWins(t *testing.T) {
	paper := testPaper()
	cache := &fakeCache{}
	hash := Fingerprint("duplicated question")
	for _, answer := range []string{"older answer", "newer answer"} {
		if _, err := cache.Store(context.Background(), models.CacheEntry{
			PaperID:      paper.ID,
			QuestionHash: hash,
			Answer:       answer,
		}); err != nil {
			t.Fatalf("seed cache: %v", err)
		}
	}
	p, _ := newTestPipeline(paper, &fakePassageStore{}, &fakeIndex{}, cache, &scriptedLLM{answer: "unreachable"})

	resp, err := p.Ask(context.Background(), AskRequest{PaperID: paper.ID, Question: "Duplicated question"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if resp.Answer != "newer answer" {
		t.Fatalf("answer = %q, want newest entry", resp.Answer)
	}
}

// Package discover searches arXiv for a topic and builds a reading path
// ordered by difficulty for a given student background.
package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"researchgraph/internal/arxiv"
	"researchgraph/internal/models"
	"researchgraph/internal/providers"
	"researchgraph/internal/rag"
	"researchgraph/internal/util"
)

const (
	defaultCount = 5
	minCount     = 3
	maxCount     = 10

	abstractSnippetLen = 400
	summaryAbstractLen = 500
)

type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]arxiv.Entry, error)
}

type PaperWriter interface {
	UpsertPaper(ctx context.Context, p models.Paper) error
}

type Request struct {
	Topic      string `json:"topic"`
	Background string `json:"background"`
	Count      int    `json:"count"`
}

type PaperSummary struct {
	ID           string   `json:"id"`
	ArxivID      string   `json:"arxiv_id"`
	Title        string   `json:"title"`
	Authors      []string `json:"authors"`
	Year         int      `json:"year,omitempty"`
	Abstract     string   `json:"abstract"`
	ReadingOrder int      `json:"reading_order"`
	Difficulty   string   `json:"difficulty"`
	Reason       string   `json:"reason"`
}

type Response struct {
	Topic      string         `json:"topic"`
	Background string         `json:"background"`
	Papers     []PaperSummary `json:"papers"`
}

type Service struct {
	search Searcher
	papers PaperWriter
	llm    providers.LLMProvider
	log    *zap.Logger
}

func NewService(search Searcher, papers PaperWriter, llm providers.LLMProvider, log *zap.Logger) *Service {
	return &Service{search: search, papers: papers, llm: llm, log: log}
}

// Discover searches the topic, asks the advisor model for a reading order,
// persists every found paper with cross-references to the rest of the set,
// and returns the ordered path. Advisor failures degrade to a chronological
// ordering rather than failing the request.
func (s *Service) Discover(ctx context.Context, req Request) (Response, error) {
	topic := strings.TrimSpace(req.Topic)
	background := strings.TrimSpace(req.Background)
	if topic == "" {
		return Response{}, fmt.Errorf("discover: topic is required")
	}
	if background == "" {
		return Response{}, fmt.Errorf("discover: background is required")
	}
	count := req.Count
	if count == 0 {
		count = defaultCount
	}
	if count < minCount || count > maxCount {
		return Response{}, fmt.Errorf("discover: count must be between %d and %d", minCount, maxCount)
	}

	entries, err := s.search.Search(ctx, topic, count)
	if err != nil {
		return Response{}, fmt.Errorf("discover: search arxiv: %w", err)
	}
	if len(entries) == 0 {
		return Response{}, &rag.NotFoundError{Resource: "topic", ID: topic, Reason: "no papers found"}
	}

	ranked := s.orderByDifficulty(ctx, topic, background, entries)

	allIDs := make([]string, len(ranked))
	for i, r := range ranked {
		allIDs[i] = r.entry.ArxivID
	}
	summaries := make([]PaperSummary, 0, len(ranked))
	for _, r := range ranked {
		e := r.entry
		p := models.Paper{
			ID:         models.PaperIDForArxiv(e.ArxivID),
			ArxivID:    e.ArxivID,
			Title:      e.Title,
			Abstract:   e.Summary,
			Authors:    e.Authors,
			Categories: e.Categories,
			PDFURL:     e.PDFURL,
			References: otherIDs(allIDs, e.ArxivID),
		}
		if !e.Published.IsZero() {
			pub := e.Published
			p.PublishedDate = &pub
		}
		if err := s.papers.UpsertPaper(ctx, p); err != nil {
			return Response{}, fmt.Errorf("discover: store paper %s: %w", e.ArxivID, err)
		}

		sum := PaperSummary{
			ID:           p.ID,
			ArxivID:      e.ArxivID,
			Title:        e.Title,
			Authors:      firstN(e.Authors, 3),
			Abstract:     util.Truncate(e.Summary, summaryAbstractLen),
			ReadingOrder: r.order,
			Difficulty:   r.difficulty,
			Reason:       r.reason,
		}
		if !e.Published.IsZero() {
			sum.Year = e.Published.Year()
		}
		summaries = append(summaries, sum)
	}

	return Response{Topic: topic, Background: background, Papers: summaries}, nil
}

type rankedEntry struct {
	entry      arxiv.Entry
	order      int
	difficulty string
	reason     string
}

type advisorItem struct {
	ArxivID    string `json:"arxiv_id"`
	Difficulty string `json:"difficulty"`
	Reason     string `json:"reason"`
}

func (s *Service) orderByDifficulty(ctx context.Context, topic, background string, entries []arxiv.Entry) []rankedEntry {
	resp, _, err := s.llm.Generate(ctx, providers.GenerateRequest{
		Prompt: advisorPrompt(topic, background, entries),
	})
	if err != nil {
		s.log.Warn("advisor ordering failed, falling back to chronological", zap.Error(err))
		return fallbackOrdering(entries)
	}
	items, err := parseAdvisorOrdering(resp.Text)
	if err != nil {
		s.log.Warn("advisor response unparseable, falling back to chronological", zap.Error(err))
		return fallbackOrdering(entries)
	}
	return applyOrdering(entries, items)
}

func advisorPrompt(topic, background string, entries []arxiv.Entry) string {
	descriptions := make([]string, 0, len(entries))
	for i, e := range entries {
		year := "N/A"
		if !e.Published.IsZero() {
			year = e.Published.Format("2006")
		}
		descriptions = append(descriptions, fmt.Sprintf(
			"%d. [arXiv:%s] %q (%s)\n   Abstract: %s",
			i+1, e.ArxivID, e.Title, year, util.Truncate(e.Summary, abstractSnippetLen)))
	}
	return fmt.Sprintf(
		"You are an academic advisor. A student with the background %q wants to learn about %q.\n\n"+
			"Here are %d research papers found on this topic:\n\n%s\n\n"+
			"Create an optimal reading path from most foundational/accessible to most "+
			"advanced/specialized, considering the student's background level.\n\n"+
			"Return ONLY a JSON array (no markdown, no commentary). Each element must have:\n"+
			"- \"arxiv_id\": the paper's arXiv ID exactly as shown above\n"+
			"- \"difficulty\": one of \"beginner\", \"intermediate\", \"advanced\"\n"+
			"- \"reason\": one sentence explaining why this paper is at this position\n\n"+
			"Order the array from first-to-read to last-to-read.",
		background, topic, len(entries), strings.Join(descriptions, "\n\n"))
}

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// parseAdvisorOrdering extracts a JSON array from the model output, tolerating
// markdown fences and surrounding prose.
func parseAdvisorOrdering(text string) ([]advisorItem, error) {
	raw := strings.TrimSpace(text)
	if m := jsonArrayPattern.FindString(raw); m != "" {
		raw = m
	}
	var items []advisorItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parse advisor ordering: %w", err)
	}
	return items, nil
}

// applyOrdering maps the advisor's ranking back onto the found entries.
// Unknown ids are ignored, duplicates keep their first position, and papers
// the advisor skipped are appended unranked.
func applyOrdering(entries []arxiv.Entry, items []advisorItem) []rankedEntry {
	byID := make(map[string]arxiv.Entry, len(entries))
	for _, e := range entries {
		byID[e.ArxivID] = e
	}
	seen := make(map[string]bool, len(entries))
	ranked := make([]rankedEntry, 0, len(entries))
	for _, item := range items {
		e, ok := byID[item.ArxivID]
		if !ok || seen[item.ArxivID] {
			continue
		}
		seen[item.ArxivID] = true
		difficulty := item.Difficulty
		if difficulty == "" {
			difficulty = "intermediate"
		}
		ranked = append(ranked, rankedEntry{
			entry:      e,
			order:      len(ranked) + 1,
			difficulty: difficulty,
			reason:     item.Reason,
		})
	}
	for _, e := range entries {
		if !seen[e.ArxivID] {
			ranked = append(ranked, rankedEntry{
				entry:      e,
				order:      len(ranked) + 1,
				difficulty: "intermediate",
				reason:     "Not ranked by advisor",
			})
		}
	}
	return ranked
}

// fallbackOrdering sorts oldest first and splits the set into difficulty
// thirds: the first third reads as beginner, the last as advanced.
func fallbackOrdering(entries []arxiv.Entry) []rankedEntry {
	sorted := make([]arxiv.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		yi, yj := fallbackYear(sorted[i]), fallbackYear(sorted[j])
		return yi < yj
	})
	ranked := make([]rankedEntry, len(sorted))
	for i, e := range sorted {
		difficulty := "intermediate"
		switch {
		case i < len(sorted)/3:
			difficulty = "beginner"
		case i >= 2*len(sorted)/3:
			difficulty = "advanced"
		}
		ranked[i] = rankedEntry{
			entry:      e,
			order:      i + 1,
			difficulty: difficulty,
			reason:     "Ordered by publication year",
		}
	}
	return ranked
}

func fallbackYear(e arxiv.Entry) int {
	if e.Published.IsZero() {
		return 9999
	}
	return e.Published.Year()
}

func otherIDs(all []string, self string) []string {
	out := make([]string, 0, len(all)-1)
	for _, id := range all {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	if s == nil {
		return []string{}
	}
	return s
}

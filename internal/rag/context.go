package rag

import (
	"context"
	"fmt"
	"strings"

	"researchgraph/internal/models"
	"researchgraph/internal/providers"
)

const maxReferenceIDsInContext = 20

// Assembler builds the ordered context fed to the answer generator. Priority:
// similarity-ranked passages with a metadata block in front, then a
// metadata-only fallback for papers that have an abstract but no passage
// index, then failure.
type Assembler struct {
	passages PassageStore
	index    PassageIndex
	embedder providers.EmbeddingProvider
	topK     int
	embedDim int
}

func NewAssembler(passages PassageStore, index PassageIndex, embedder providers.EmbeddingProvider, topK, embedDim int) *Assembler {
	if topK <= 0 {
		topK = 5
	}
	return &Assembler{passages: passages, index: index, embedder: embedder, topK: topK, embedDim: embedDim}
}

// Assemble returns the context blocks in generation order and the ids of the
// passages consulted. Ids are empty when the metadata fallback was used.
func (a *Assembler) Assemble(ctx context.Context, paper models.Paper, question string) ([]string, []string, error) {
	meta := MetadataBlock(paper)

	count, err := a.passages.CountByPaper(ctx, paper.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("count passages: %w", err)
	}

	if count > 0 {
		vectors, _, err := a.embedder.Embed(ctx, providers.EmbedRequest{
			Inputs:    []string{question},
			Dimension: a.embedDim,
		})
		if err != nil || len(vectors) == 0 {
			if err == nil {
				err = fmt.Errorf("embedding provider returned no vectors")
			}
			return nil, nil, mapProviderError("embed", err)
		}
		hits, err := a.index.TopK(ctx, paper.ID, vectors[0], a.topK)
		if err != nil {
			return nil, nil, fmt.Errorf("passage search: %w", err)
		}
		blocks := make([]string, 0, len(hits)+1)
		ids := make([]string, 0, len(hits))
		blocks = append(blocks, meta)
		for _, h := range hits {
			blocks = append(blocks, h.Content)
			ids = append(ids, h.ID)
		}
		return blocks, ids, nil
	}

	if strings.TrimSpace(paper.Abstract) != "" {
		return []string{meta}, []string{}, nil
	}

	return nil, nil, &NotFoundError{Resource: "paper content", ID: paper.ID, Reason: "paper has no indexed passages and no abstract"}
}

// MetadataBlock renders every known fact about a paper as one text block.
// Factual questions (authors, dates, reference counts) are answered from
// here rather than from similarity-ranked prose. Absent fields simply omit
// their line.
func MetadataBlock(p models.Paper) string {
	parts := make([]string, 0, 12)

	title := p.Title
	if title == "" {
		title = "Unknown"
	}
	parts = append(parts, "Title: "+title)

	if p.ArxivID != "" {
		parts = append(parts, "arXiv ID: "+p.ArxivID)
	}
	if len(p.Authors) > 0 {
		parts = append(parts, "Authors: "+strings.Join(p.Authors, ", "))
		parts = append(parts, fmt.Sprintf("Number of authors: %d", len(p.Authors)))
	}
	if p.PublishedDate != nil {
		parts = append(parts, "Published: "+p.PublishedDate.Format("2006-01-02"))
	}
	if len(p.Categories) > 0 {
		parts = append(parts, "Categories: "+strings.Join(p.Categories, ", "))
	}
	if p.PDFURL != "" {
		parts = append(parts, "PDF URL: "+p.PDFURL)
	}
	if len(p.References) > 0 {
		parts = append(parts, fmt.Sprintf("Number of references: %d", len(p.References)))
		refs := p.References
		if len(refs) > maxReferenceIDsInContext {
			refs = refs[:maxReferenceIDsInContext]
		}
		parts = append(parts, "References (arXiv IDs): "+strings.Join(refs, ", "))
	}
	if len(p.CitedBy) > 0 {
		parts = append(parts, fmt.Sprintf("Cited by: %d papers", len(p.CitedBy)))
	}
	if p.Abstract != "" {
		parts = append(parts, "\nAbstract:\n"+p.Abstract)
	}

	return strings.Join(parts, "\n")
}

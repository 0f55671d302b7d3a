package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"researchgraph/internal/models"
	"researchgraph/internal/providers"
)

func TestMetadataBlockOmitsAbsentFields(t *testing.T) {
	block := MetadataBlock(models.Paper{Title: "Sparse Paper"})
	if !strings.Contains(block, "Title: Sparse Paper") {
		t.Fatalf("missing title line:\n%s", block)
	}
	for _, forbidden := range []string{"Authors:", "Published:", "Categories:", "References", "Cited by:", "Abstract:"} {
		if strings.Contains(block, forbidden) {
			t.Fatalf("block contains %q for a paper without that field:\n%s", forbidden, block)
		}
	}
}

func TestMetadataBlockUnknownTitle(t *testing.T) {
	block := MetadataBlock(models.Paper{ArxivID: "2401.00001"})
	if !strings.HasPrefix(block, "Title: Unknown") {
		t.Fatalf("empty title must render as Unknown:\n%s", block)
	}
}

func TestMetadataBlockFullPaper(t *testing.T) {
	pub := time.Date(2020, 3, 14, 0, 0, 0, 0, time.UTC)
	p := models.Paper{
		Title:         "Complete Paper",
		ArxivID:       "2003.12345",
		Authors:       []string{"A. One", "B. Two", "C. Three"},
		PublishedDate: &pub,
		Categories:    []string{"cs.LG", "stat.ML"},
		PDFURL:        "https://arxiv.org/pdf/2003.12345",
		References:    []string{"1706.03762", "1810.04805"},
		CitedBy:       []string{"2104.00001"},
		Abstract:      "A complete abstract.",
	}
	block := MetadataBlock(p)
	for _, want := range []string{
		"Title: Complete Paper",
		"arXiv ID: 2003.12345",
		"Authors: A. One, B. Two, C. Three",
		"Number of authors: 3",
		"Published: 2020-03-14",
		"Categories: cs.LG, stat.ML",
		"Number of references: 2",
		"References (arXiv IDs): 1706.03762, 1810.04805",
		"Cited by: 1 papers",
		"Abstract:\nA complete abstract.",
	} {
		if !strings.Contains(block, want) {
			t.Fatalf("block missing %q:\n%s", want, block)
		}
	}
}

func TestMetadataBlockTruncatesReferenceList(t *testing.T) {
	refs := make([]string, 30)
	for i := range refs {
		refs[i] = fmt.Sprintf("2001.%05d", i)
	}
	block := MetadataBlock(models.Paper{Title: "Heavily Referenced", References: refs})
	if !strings.Contains(block, "Number of references: 30") {
		t.Fatalf("reference count must stay exact:\n%s", block)
	}
	if strings.Contains(block, refs[maxReferenceIDsInContext]) {
		t.Fatalf("reference id list must be capped at %d entries:\n%s", maxReferenceIDsInContext, block)
	}
	if !strings.Contains(block, refs[maxReferenceIDsInContext-1]) {
		t.Fatalf("last id under the cap must survive:\n%s", block)
	}
}

func TestAssemblePassagesCappedAtTopK(t *testing.T) {
	paper := testPaper()
	hits := make([]models.PassageHit, 8)
	passages := &fakePassageStore{counts: map[string]int{paper.ID: 8}}
	for i := range hits {
		hits[i] = models.PassageHit{ID: fmt.Sprintf("p%d", i), Content: fmt.Sprintf("chunk %d", i), Score: 1 - float64(i)/10}
	}
	asm := NewAssembler(passages, &fakeIndex{hits: hits}, providers.NewMockProvider(16), 5, 16)

	blocks, ids, err := asm.Assemble(context.Background(), paper, "question")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("passage ids = %d, want top-5", len(ids))
	}
	if len(blocks) != 6 {
		t.Fatalf("blocks = %d, want metadata + 5 passages", len(blocks))
	}
	if !strings.HasPrefix(blocks[0], "Title: ") {
		t.Fatalf("metadata must be the first block, got %q", blocks[0])
	}
	for i, id := range ids {
		want := fmt.Sprintf("p%d", i)
		if id != want {
			t.Fatalf("ids[%d] = %q, want similarity order %q", i, id, want)
		}
	}
}

func TestAssembleFallbackNeedsAbstract(t *testing.T) {
	paper := testPaper()
	paper.Abstract = "   "
	passages := &fakePassageStore{counts: map[string]int{}}
	asm := NewAssembler(passages, &fakeIndex{}, providers.NewMockProvider(16), 5, 16)

	_, _, err := asm.Assemble(context.Background(), paper, "question")
	nf, ok := err.(*NotFoundError)
	if !ok {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if nf.Resource != "paper content" {
		t.Fatalf("Resource = %q, want paper content", nf.Resource)
	}
}

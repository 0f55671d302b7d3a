package models

import "testing"

func TestPaperIDForArxivStable(t *testing.T) {
	a := PaperIDForArxiv("1706.03762")
	b := PaperIDForArxiv("1706.03762")
	if a != b {
		t.Fatalf("same arxiv id produced different paper ids: %s vs %s", a, b)
	}
	if a == PaperIDForArxiv("1512.03385") {
		t.Fatalf("distinct arxiv ids collided on %s", a)
	}
	if len(a) != 36 {
		t.Fatalf("expected canonical uuid form, got %q", a)
	}
}

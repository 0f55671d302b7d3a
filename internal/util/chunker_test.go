package util

import "testing"

func TestChunkText(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := ChunkText(text, 10, 2)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	if chunks[0] != "abcdefghij" {
		t.Fatalf("unexpected first chunk: %s", chunks[0])
	}
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := ChunkText("short", 1000, 200)
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Fatalf("unexpected chunks for short input: %#v", chunks)
	}
}

func TestApproxTokenCount(t *testing.T) {
	if n := ApproxTokenCount("attention is all you need"); n != 5 {
		t.Fatalf("expected 5 tokens, got %d", n)
	}
	if n := ApproxTokenCount("   "); n != 0 {
		t.Fatalf("expected 0 tokens for blank input, got %d", n)
	}
}

package rag

import "testing"

func TestFingerprintIgnoresCaseAndWhitespace(t *testing.T) {
	if Fingerprint(" What is X? ") != Fingerprint("what is x?") {
		t.Fatal("case/whitespace variants should share a fingerprint")
	}
}

func TestFingerprintDistinguishesQuestions(t *testing.T) {
	if Fingerprint("What is X?") == Fingerprint("What is Y?") {
		t.Fatal("distinct questions collided")
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("who are the authors?")
	b := Fingerprint("who are the authors?")
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 256-bit hex digest, got %d chars", len(a))
	}
}

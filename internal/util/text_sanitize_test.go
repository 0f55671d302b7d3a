package util

import (
	"strings"
	"testing"
)

func TestSanitizeTextStripsControls(t *testing.T) {
	in := "Hello\x00 world\x01\ttabs stay\n"
	out := SanitizeText(in)
	if strings.Contains(out, "\x00") || strings.Contains(out, "\x01") {
		t.Fatalf("control characters survived: %q", out)
	}
	if !strings.Contains(out, "\t") {
		t.Fatalf("tab should be preserved: %q", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 4); got != "abcd..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := Truncate("abc", 4); got != "abc" {
		t.Fatalf("short input should pass through: %q", got)
	}
}

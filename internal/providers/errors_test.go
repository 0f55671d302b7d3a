package providers

import (
	"errors"
	"fmt"
	"testing"

	"researchgraph/internal/util"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota": ErrorQuota,
		"RESOURCE_EXHAUSTED": ErrorQuota,
		"429 rate":           ErrorRate,
		"timeout":            ErrorTransient,
		"bad request":        ErrorPermanent,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
}

func TestClassifyErrorSentinelWins(t *testing.T) {
	err := fmt.Errorf("gemini generate failed: %w", util.ErrQuotaExhausted)
	if got := ClassifyError(err); got != ErrorQuota {
		t.Fatalf("wrapped quota sentinel classified as %s", got)
	}
}

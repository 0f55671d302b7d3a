package rag

import (
	"strings"

	"researchgraph/internal/util"
)

// Fingerprint canonicalizes a question into its cache key: surrounding
// whitespace and letter case are ignored, everything else is significant.
func Fingerprint(question string) string {
	canonical := strings.ToLower(strings.TrimSpace(question))
	return util.SHA256Hex([]byte(canonical))
}

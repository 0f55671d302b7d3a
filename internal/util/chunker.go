package util

import "strings"

// ChunkText splits text into overlapping rune windows. Passages are trimmed
// and empty windows dropped, so indices of the returned slice are dense.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	runes := []rune(text)
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}
	out := make([]string, 0)
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		part := strings.TrimSpace(string(runes[i:end]))
		if part != "" {
			out = append(out, part)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// ApproxTokenCount is a cheap whitespace-based token estimate recorded with
// each stored passage.
func ApproxTokenCount(s string) int {
	return len(strings.Fields(s))
}

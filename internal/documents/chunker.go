package documents

import "strings"

const (
	// DefaultChunkSize is the target chunk length in runes.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the rune overlap carried between adjacent chunks.
	DefaultChunkOverlap = 200
)

// ChunkText splits text into fixed-size overlapping chunks. size <= 0 and
// out-of-range overlap fall back to the defaults. Whitespace-only input
// yields no chunks.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

package ingest

import "strings"

const (
	DefaultChunkSize     = 4000
	DefaultChunkOverlap  = 200
	DefaultMinChunkChars = 50
)

// ChunkWords splits text into windows of size words, each starting
// size-overlap words after the previous one. Windows shorter than minChars
// characters are dropped.
func ChunkWords(text string, size, overlap, minChars int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := size - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[start:end], " ")
		if len(chunk) >= minChars {
			chunks = append(chunks, chunk)
		}
		if end == len(words) {
			break
		}
	}
	return chunks
}

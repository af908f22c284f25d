package knowledge

// Chunk splits text into overlapping windows of at most size runes.
// Overlap carries trailing context into the next chunk so passages that
// straddle a boundary remain retrievable. size must be positive; an overlap
// at or above size is reduced to size-1 to guarantee forward progress.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 || text == "" {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

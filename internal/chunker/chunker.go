// Package chunker splits a transcript into fixed-size extraction windows.
package chunker

import (
	"fmt"

	"github.com/rcliao/convo-memory/internal/model"
)

// DefaultSize is the default number of turns per chunk.
const DefaultSize = 10

// Split divides turns into contiguous, non-overlapping windows of at most
// size turns, in transcript order. The last window may be shorter; no turn
// is dropped or duplicated. Chunk ids are the 0-based window positions.
func Split(turns []model.Turn, size int) ([]model.Chunk, error) {
	if size <= 0 {
		return nil, &model.ConfigError{Reason: fmt.Sprintf("chunk size must be positive, got %d", size)}
	}
	if len(turns) == 0 {
		return nil, nil
	}

	chunks := make([]model.Chunk, 0, (len(turns)+size-1)/size)
	for start := 0; start < len(turns); start += size {
		end := start + size
		if end > len(turns) {
			end = len(turns)
		}
		window := turns[start:end]
		chunks = append(chunks, model.Chunk{
			ID:    len(chunks),
			Turns: window,
			Start: window[0].Index,
			End:   window[len(window)-1].Index,
		})
	}
	return chunks, nil
}

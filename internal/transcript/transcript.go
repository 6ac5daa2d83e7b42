// Package transcript loads conversation transcripts from JSON.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rcliao/convo-memory/internal/model"
)

// On-disk transcripts are either a wrapped {"conversation": [...]} object
// or a bare turn array.
type file struct {
	Conversation []model.Turn `json:"conversation"`
}

// Load reads and validates a transcript file.
func Load(path string) ([]model.Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.PersistError{Path: path, Op: "read transcript", Err: err}
	}
	turns, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("transcript %s: %w", path, err)
	}
	return turns, nil
}

// Parse decodes transcript JSON and validates turn ordering and roles.
func Parse(data []byte) ([]model.Turn, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil || f.Conversation == nil {
		// Fall back to a bare array of turns
		var turns []model.Turn
		if arrErr := json.Unmarshal(data, &turns); arrErr != nil {
			if err == nil {
				err = arrErr
			}
			return nil, fmt.Errorf("parse: %w", err)
		}
		f.Conversation = turns
	}

	for i := range f.Conversation {
		t := &f.Conversation[i]
		// The companion's recorder labels the agent side "assistant"
		if t.Speaker == "assistant" {
			t.Speaker = model.SpeakerAgent
		}
		if !model.ValidSpeakers[t.Speaker] {
			return nil, fmt.Errorf("turn %d: unknown speaker %q", t.Index, t.Speaker)
		}
		if i > 0 && t.Index <= f.Conversation[i-1].Index {
			return nil, fmt.Errorf("turn index %d not monotonic after %d", t.Index, f.Conversation[i-1].Index)
		}
	}
	return f.Conversation, nil
}

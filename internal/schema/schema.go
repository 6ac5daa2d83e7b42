// Package schema parses raw oracle output into validated memory candidates.
//
// The oracle is expected to return a JSON object with three arrays
// (preferences, emotional_patterns, long_term_facts); each element needs
// key, value and confidence, with optional evidence. Validation is
// fail-fast per chunk: one invalid record rejects the whole chunk so error
// attribution stays chunk-precise.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/rcliao/convo-memory/internal/model"
)

// DefaultConfidenceFloor drops candidates below this confidence at parse time.
const DefaultConfidenceFloor = 0.5

type envelope struct {
	Preferences       []record `json:"preferences"`
	EmotionalPatterns []record `json:"emotional_patterns"`
	LongTermFacts     []record `json:"long_term_facts"`
}

// record uses pointer fields so an absent required field is distinguishable
// from a zero value.
type record struct {
	Type       *string      `json:"type"`
	Key        *string      `json:"key"`
	Value      *string      `json:"value"`
	Confidence *float64     `json:"confidence"`
	Evidence   *rawEvidence `json:"evidence"`
}

type rawEvidence struct {
	Quote string `json:"quote"`
	Turns []int  `json:"turns"`
}

// Parse validates rawText against the extraction schema and returns the
// chunk's candidates in emission order (preferences, then emotional
// patterns, then long-term facts, each in array order). Every candidate is
// stamped with source_chunk = chunkID regardless of oracle output.
// Candidates with confidence below floor are dropped after validation.
func Parse(rawText string, chunkID int, floor float64) ([]model.Candidate, error) {
	env, err := decode(rawText)
	if err != nil {
		return nil, &model.MalformedError{Chunk: chunkID, Raw: rawText, Err: err}
	}

	groups := []struct {
		memType string
		records []record
	}{
		{model.TypePreference, env.Preferences},
		{model.TypeEmotionalPattern, env.EmotionalPatterns},
		{model.TypeLongTermFact, env.LongTermFacts},
	}

	var candidates []model.Candidate
	for _, g := range groups {
		for i, r := range g.records {
			if err := validate(r, g.memType); err != nil {
				return nil, &model.MalformedError{
					Chunk: chunkID,
					Raw:   rawText,
					Err:   fmt.Errorf("%s[%d]: %w", g.memType, i, err),
				}
			}
			if *r.Confidence < floor {
				continue
			}
			c := model.Candidate{
				Type:        g.memType,
				Key:         strings.TrimSpace(*r.Key),
				Value:       *r.Value,
				Confidence:  *r.Confidence,
				SourceChunk: chunkID,
			}
			if r.Evidence != nil {
				c.Evidence = model.Evidence{Quote: r.Evidence.Quote, Turns: r.Evidence.Turns}
			}
			candidates = append(candidates, c)
		}
	}
	return candidates, nil
}

// decode unmarshals the oracle text, stripping surrounding prose or markdown
// fences and attempting a jsonrepair pass before giving up.
func decode(rawText string) (*envelope, error) {
	jsonStr := extractObject(rawText)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON object found in output")
	}

	var env envelope
	if err := json.Unmarshal([]byte(jsonStr), &env); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(jsonStr)
		if repairErr != nil {
			return nil, fmt.Errorf("unmarshal: %w (repair also failed: %v)", err, repairErr)
		}
		if err := json.Unmarshal([]byte(repaired), &env); err != nil {
			return nil, fmt.Errorf("unmarshal repaired output: %w", err)
		}
	}
	return &env, nil
}

// extractObject returns the substring from the first '{' to the last '}',
// which tolerates models that wrap JSON in code fences or commentary.
func extractObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func validate(r record, impliedType string) error {
	if r.Key == nil || strings.TrimSpace(*r.Key) == "" {
		return fmt.Errorf("missing required field key")
	}
	if r.Value == nil {
		return fmt.Errorf("missing required field value")
	}
	if r.Confidence == nil {
		return fmt.Errorf("missing required field confidence")
	}
	if *r.Confidence < 0 || *r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", *r.Confidence)
	}
	// An explicit type must agree with the containing array
	if r.Type != nil && *r.Type != impliedType {
		return fmt.Errorf("type %q does not match containing array %q", *r.Type, impliedType)
	}
	return nil
}

// Package model defines the core memory data types.
package model

// Speaker roles recognized in a transcript.
const (
	SpeakerUser  = "user"
	SpeakerAgent = "agent"
)

// ValidSpeakers are the allowed transcript speaker roles.
var ValidSpeakers = map[string]bool{
	SpeakerUser:  true,
	SpeakerAgent: true,
}

// Memory types recognized by the pipeline.
const (
	TypePreference       = "preference"
	TypeEmotionalPattern = "emotional_pattern"
	TypeLongTermFact     = "long_term_fact"
)

// ValidTypes are the allowed memory types.
var ValidTypes = map[string]bool{
	TypePreference:       true,
	TypeEmotionalPattern: true,
	TypeLongTermFact:     true,
}

// Turn is a single transcript turn. Immutable once loaded.
type Turn struct {
	Index   int    `json:"turn"`
	Speaker string `json:"role"`
	Text    string `json:"content"`
}

// Chunk is a contiguous window of turns processed as one extraction unit.
type Chunk struct {
	ID    int
	Turns []Turn
	// Start and End are the absolute turn indices covered, inclusive.
	Start int
	End   int
}

// Evidence holds the quote and turn indices supporting a memory.
type Evidence struct {
	Quote string `json:"quote"`
	Turns []int  `json:"turns"`
}

// Candidate is a memory record proposed by a single chunk's extraction,
// before cross-chunk merging. Never mutated after creation.
type Candidate struct {
	Type        string   `json:"type"`
	Key         string   `json:"key"`
	Value       string   `json:"value"`
	Confidence  float64  `json:"confidence"`
	Evidence    Evidence `json:"evidence"`
	SourceChunk int      `json:"source_chunk"`
}

// Memory is a finalized, deduplicated record. The (Type, Key) pair is its
// identity: the aggregator guarantees at most one Memory per pair.
type Memory struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Key          string   `json:"key"`
	Value        string   `json:"value"`
	Confidence   float64  `json:"confidence"`
	Evidence     Evidence `json:"evidence"`
	SourceChunks []int    `json:"source_chunks"`
}

// MemorySet buckets memories by type. Within a bucket, order is the order in
// which each (type, key) was first seen across chunks.
type MemorySet struct {
	Preferences       []Memory `json:"preferences"`
	EmotionalPatterns []Memory `json:"emotional_patterns"`
	LongTermFacts     []Memory `json:"long_term_facts"`
}

// All returns every memory in bucket order.
func (s *MemorySet) All() []Memory {
	out := make([]Memory, 0, s.Len())
	out = append(out, s.Preferences...)
	out = append(out, s.EmotionalPatterns...)
	out = append(out, s.LongTermFacts...)
	return out
}

// Len returns the total number of memories across buckets.
func (s *MemorySet) Len() int {
	return len(s.Preferences) + len(s.EmotionalPatterns) + len(s.LongTermFacts)
}

// Bucket returns the bucket slice for a memory type.
func (s *MemorySet) Bucket(memType string) []Memory {
	switch memType {
	case TypePreference:
		return s.Preferences
	case TypeEmotionalPattern:
		return s.EmotionalPatterns
	case TypeLongTermFact:
		return s.LongTermFacts
	}
	return nil
}

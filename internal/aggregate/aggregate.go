// Package aggregate merges per-chunk memory candidates into a deduplicated
// memory set.
package aggregate

import (
	"math/rand"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/convo-memory/internal/model"
)

type dedupKey struct {
	memType string
	key     string
}

// Aggregator accumulates candidates chunk by chunk. Candidates must be added
// in chunk order; within a chunk, emission order is preserved. The merge is
// deterministic: highest confidence strictly wins value and quote, ties keep
// the first-seen record, and evidence turns and source chunks always union.
type Aggregator struct {
	byKey   map[dedupKey]*entry
	order   []dedupKey
	entropy *rand.Rand
}

type entry struct {
	memory  model.Memory
	turns   map[int]bool
	sources map[int]bool
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		byKey:   make(map[dedupKey]*entry),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (a *Aggregator) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), a.entropy).String()
}

// Add merges one chunk's candidates. The aggregator assumes candidate types
// were validated upstream.
func (a *Aggregator) Add(candidates []model.Candidate) {
	for _, c := range candidates {
		k := dedupKey{memType: c.Type, key: c.Key}
		e, ok := a.byKey[k]
		if !ok {
			e = &entry{
				memory: model.Memory{
					ID:         a.newID(),
					Type:       c.Type,
					Key:        c.Key,
					Value:      c.Value,
					Confidence: c.Confidence,
					Evidence:   model.Evidence{Quote: c.Evidence.Quote},
				},
				turns:   make(map[int]bool),
				sources: make(map[int]bool),
			}
			a.byKey[k] = e
			a.order = append(a.order, k)
		} else if c.Confidence > e.memory.Confidence {
			// Strictly greater wins; ties keep the first-seen record
			e.memory.Value = c.Value
			e.memory.Confidence = c.Confidence
			e.memory.Evidence.Quote = c.Evidence.Quote
		}
		for _, turn := range c.Evidence.Turns {
			e.turns[turn] = true
		}
		e.sources[c.SourceChunk] = true
	}
}

// Result assembles the final memory set. Buckets are ordered by the first
// time each (type, key) was seen; turn and chunk sets come out ascending.
func (a *Aggregator) Result() *model.MemorySet {
	set := &model.MemorySet{}
	for _, k := range a.order {
		e := a.byKey[k]
		m := e.memory
		m.Evidence.Turns = sortedInts(e.turns)
		m.SourceChunks = sortedInts(e.sources)
		switch m.Type {
		case model.TypePreference:
			set.Preferences = append(set.Preferences, m)
		case model.TypeEmotionalPattern:
			set.EmotionalPatterns = append(set.EmotionalPatterns, m)
		case model.TypeLongTermFact:
			set.LongTermFacts = append(set.LongTermFacts, m)
		}
	}
	return set
}

func sortedInts(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

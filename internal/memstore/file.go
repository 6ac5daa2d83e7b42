// Package memstore persists memory sets: a JSON file store for the memory
// artifact consumers read, and a SQLite archive of extraction runs.
package memstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rcliao/convo-memory/internal/model"
)

// Save writes the memory set to path. The file is written to a temp file in
// the same directory and renamed into place, so readers never observe a
// partially written artifact.
func Save(path string, set *model.MemorySet) error {
	data, err := json.MarshalIndent(normalize(set), "", "  ")
	if err != nil {
		return &model.PersistError{Path: path, Op: "encode", Err: err}
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &model.PersistError{Path: path, Op: "create dir for", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".memory-*.json")
	if err != nil {
		return &model.PersistError{Path: path, Op: "create temp for", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &model.PersistError{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &model.PersistError{Path: path, Op: "write", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &model.PersistError{Path: path, Op: "publish", Err: err}
	}
	return nil
}

// Load reads a memory set previously written by Save.
func Load(path string) (*model.MemorySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.PersistError{Path: path, Op: "read", Err: err}
	}
	var set model.MemorySet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, &model.PersistError{Path: path, Op: "decode", Err: err}
	}
	for _, m := range set.All() {
		if !model.ValidTypes[m.Type] {
			return nil, &model.PersistError{Path: path, Op: "decode", Err: fmt.Errorf("memory %s has unknown type %q", m.ID, m.Type)}
		}
	}
	return &set, nil
}

// normalize returns a copy with nil slices replaced by empty ones so the
// persisted buckets are always JSON arrays.
func normalize(set *model.MemorySet) *model.MemorySet {
	out := &model.MemorySet{
		Preferences:       normalizeBucket(set.Preferences),
		EmotionalPatterns: normalizeBucket(set.EmotionalPatterns),
		LongTermFacts:     normalizeBucket(set.LongTermFacts),
	}
	return out
}

func normalizeBucket(bucket []model.Memory) []model.Memory {
	out := make([]model.Memory, len(bucket))
	for i, m := range bucket {
		if m.Evidence.Turns == nil {
			m.Evidence.Turns = []int{}
		}
		if m.SourceChunks == nil {
			m.SourceChunks = []int{}
		}
		out[i] = m
	}
	return out
}

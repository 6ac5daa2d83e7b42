package memstore

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rcliao/convo-memory/internal/model"
)

func sampleSet() *model.MemorySet {
	return &model.MemorySet{
		Preferences: []model.Memory{{
			ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", Type: model.TypePreference,
			Key: "exercise_preference", Value: "prefers running over gym", Confidence: 0.95,
			Evidence:     model.Evidence{Quote: "I prefer running", Turns: []int{3, 11}},
			SourceChunks: []int{0, 1},
		}},
		EmotionalPatterns: []model.Memory{{
			ID: "01ARZ3NDEKTSV4RRFFQ69G5FB0", Type: model.TypeEmotionalPattern,
			Key: "sleep_anxiety_pattern", Value: "poor sleep leads to anxiety", Confidence: 0.8,
			Evidence:     model.Evidence{Quote: "I feel anxious", Turns: []int{5}},
			SourceChunks: []int{0},
		}},
		LongTermFacts: []model.Memory{{
			ID: "01ARZ3NDEKTSV4RRFFQ69G5FB1", Type: model.TypeLongTermFact,
			Key: "occupation", Value: "software engineer", Confidence: 1.0,
			Evidence:     model.Evidence{Quote: "I'm a software engineer", Turns: []int{1}},
			SourceChunks: []int{0},
		}},
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	want := sampleSet()

	if err := Save(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestSave_EmptySetWritesArrays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	if err := Save(path, &model.MemorySet{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, bucket := range []string{"preferences", "emotional_patterns", "long_term_facts"} {
		if !strings.Contains(string(data), `"`+bucket+`": []`) {
			t.Errorf("expected empty array for %s, got:\n%s", bucket, data)
		}
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("expected empty set, got %d", got.Len())
	}
}

func TestSave_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "memory.json")
	if err := Save(path, sampleSet()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file at %s: %v", path, err)
	}
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.json")
	if err := Save(path, sampleSet()); err != nil {
		t.Fatalf("save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "memory.json" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("expected only memory.json, got %v", names)
	}
}

func TestSave_OverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	if err := Save(path, sampleSet()); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := Save(path, &model.MemorySet{}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("expected overwritten empty set, got %d memories", got.Len())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error")
	}
	var persistErr *model.PersistError
	if !errors.As(err, &persistErr) {
		t.Errorf("expected PersistError, got %T", err)
	}
}

func TestLoad_UnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	content := `{"preferences":[{"id":"x","type":"whim","key":"k","value":"v","confidence":0.5,"evidence":{"quote":"","turns":[]},"source_chunks":[]}],"emotional_patterns":[],"long_term_facts":[]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown memory type")
	}
}

func TestLoad_CorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for corrupt file")
	}
}

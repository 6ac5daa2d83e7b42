package extract

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/oracle"
)

func makeTurns(n int) []model.Turn {
	turns := make([]model.Turn, n)
	for i := range turns {
		speaker := model.SpeakerUser
		if i%2 == 1 {
			speaker = model.SpeakerAgent
		}
		turns[i] = model.Turn{Index: i, Speaker: speaker, Text: fmt.Sprintf("message %d", i)}
	}
	return turns
}

// stubOracle returns canned output per chunk id, parsed out of the prompt.
func stubOracle(outputs map[int]string, errs map[int]error) oracle.CallFunc {
	return func(ctx context.Context, req oracle.Request) (string, error) {
		id := chunkIDFromPrompt(req.User)
		if err, ok := errs[id]; ok {
			return "", err
		}
		if out, ok := outputs[id]; ok {
			return out, nil
		}
		return `{"preferences":[],"emotional_patterns":[],"long_term_facts":[]}`, nil
	}
}

func chunkIDFromPrompt(prompt string) int {
	const marker = "chunk_id="
	i := strings.Index(prompt, marker)
	rest := prompt[i+len(marker):]
	end := strings.IndexByte(rest, ')')
	var id int
	fmt.Sscanf(rest[:end], "%d", &id)
	return id
}

const chunk0Output = `{
	"preferences": [{"key": "exercise_preference", "value": "likes yoga", "confidence": 0.7,
		"evidence": {"quote": "yoga is nice", "turns": [3]}}],
	"emotional_patterns": [], "long_term_facts": []
}`

const chunk1Output = `{
	"preferences": [{"key": "exercise_preference", "value": "prefers running over gym", "confidence": 0.95,
		"evidence": {"quote": "I prefer running", "turns": [11]}}],
	"emotional_patterns": [], "long_term_facts": []
}`

func newTestExtractor(t *testing.T, call oracle.CallFunc, mut func(*Config)) *Extractor {
	t.Helper()
	cfg := DefaultConfig()
	if mut != nil {
		mut(&cfg)
	}
	e, err := New(call, cfg, nil)
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	return e
}

func TestRun_TwoChunkMerge(t *testing.T) {
	call := stubOracle(map[int]string{0: chunk0Output, 1: chunk1Output}, nil)
	e := newTestExtractor(t, call, nil)

	set, report, err := e.Run(context.Background(), makeTurns(12))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Chunks != 2 {
		t.Errorf("expected 2 chunks, got %d", report.Chunks)
	}
	if len(report.Skipped) != 0 {
		t.Errorf("expected no skipped chunks, got %v", report.Skipped)
	}
	if len(set.Preferences) != 1 {
		t.Fatalf("expected 1 preference, got %d", len(set.Preferences))
	}
	m := set.Preferences[0]
	if m.Value != "prefers running over gym" || m.Confidence != 0.95 {
		t.Errorf("unexpected winner: %+v", m)
	}
	if !reflect.DeepEqual(m.Evidence.Turns, []int{3, 11}) {
		t.Errorf("expected turns [3 11], got %v", m.Evidence.Turns)
	}
	if !reflect.DeepEqual(m.SourceChunks, []int{0, 1}) {
		t.Errorf("expected source chunks [0 1], got %v", m.SourceChunks)
	}
}

func TestRun_EmptyTranscript(t *testing.T) {
	e := newTestExtractor(t, stubOracle(nil, nil), nil)
	set, report, err := e.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if set.Len() != 0 || report.Chunks != 0 {
		t.Errorf("expected empty result, got %d memories over %d chunks", set.Len(), report.Chunks)
	}
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	outputs := map[int]string{0: chunk0Output, 1: chunk1Output}
	seq := newTestExtractor(t, stubOracle(outputs, nil), func(c *Config) { c.Workers = 1 })
	par := newTestExtractor(t, stubOracle(outputs, nil), func(c *Config) { c.Workers = 8 })

	turns := makeTurns(12)
	setSeq, _, err := seq.Run(context.Background(), turns)
	if err != nil {
		t.Fatalf("sequential run: %v", err)
	}
	setPar, _, err := par.Run(context.Background(), turns)
	if err != nil {
		t.Fatalf("parallel run: %v", err)
	}

	// IDs are freshly minted per run; compare everything else
	for i, a := range setSeq.Preferences {
		b := setPar.Preferences[i]
		a.ID, b.ID = "", ""
		if !reflect.DeepEqual(a, b) {
			t.Errorf("memory %d differs between runs:\n%+v\n%+v", i, a, b)
		}
	}
}

func TestRun_StrictAbortsOnTransportError(t *testing.T) {
	call := stubOracle(map[int]string{0: chunk0Output}, map[int]error{1: errors.New("connection refused")})
	e := newTestExtractor(t, call, nil)

	_, _, err := e.Run(context.Background(), makeTurns(12))
	var transport *model.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transport.Chunk != 1 {
		t.Errorf("expected failing chunk 1, got %d", transport.Chunk)
	}
}

func TestRun_StrictAbortsOnMalformedOutput(t *testing.T) {
	call := stubOracle(map[int]string{1: "sorry, no JSON today"}, nil)
	e := newTestExtractor(t, call, nil)

	_, _, err := e.Run(context.Background(), makeTurns(12))
	var malformed *model.MalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedError, got %v", err)
	}
	if malformed.Chunk != 1 {
		t.Errorf("expected failing chunk 1, got %d", malformed.Chunk)
	}
	if malformed.Raw == "" {
		t.Error("expected raw text preserved for diagnostics")
	}
}

func TestRun_BestEffortRecordsGaps(t *testing.T) {
	call := stubOracle(
		map[int]string{0: chunk0Output, 2: "garbage"},
		map[int]error{1: errors.New("timeout")},
	)
	e := newTestExtractor(t, call, func(c *Config) { c.BestEffort = true })

	set, report, err := e.Run(context.Background(), makeTurns(25))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Skipped) != 2 {
		t.Fatalf("expected 2 skipped chunks, got %v", report.Skipped)
	}
	if report.Skipped[0].Chunk != 1 || report.Skipped[1].Chunk != 2 {
		t.Errorf("skipped chunks out of order: %v", report.Skipped)
	}
	// The surviving chunk's memory still comes through
	if len(set.Preferences) != 1 || set.Preferences[0].Value != "likes yoga" {
		t.Errorf("unexpected set: %+v", set.Preferences)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	_, err := New(stubOracle(nil, nil), Config{ChunkSize: 0}, nil)
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}

	_, err = New(stubOracle(nil, nil), Config{ChunkSize: 10, ConfidenceFloor: 1.5}, nil)
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for bad floor, got %v", err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newTestExtractor(t, stubOracle(map[int]string{0: chunk0Output}, nil), nil)
	_, _, err := e.Run(ctx, makeTurns(5))
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestBuildRequest_Deterministic(t *testing.T) {
	chunk := model.Chunk{ID: 3, Turns: makeTurns(2), Start: 0, End: 1}
	a := buildRequest(chunk)
	b := buildRequest(chunk)
	if a != b {
		t.Error("expected identical requests for identical chunks")
	}
	if !strings.Contains(a.User, "chunk_id=3") {
		t.Error("prompt missing chunk id")
	}
	if !strings.Contains(a.User, "Turn 0 (user): message 0") {
		t.Errorf("prompt missing formatted turn:\n%s", a.User)
	}
	if !strings.Contains(a.System, "memory extraction") {
		t.Error("system prompt missing role text")
	}
}

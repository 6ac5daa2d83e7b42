// Package extract drives the chunked extraction pipeline: window the
// transcript, call the oracle per chunk, validate each chunk's output, and
// merge everything into one deduplicated memory set.
package extract

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rcliao/convo-memory/internal/aggregate"
	"github.com/rcliao/convo-memory/internal/chunker"
	"github.com/rcliao/convo-memory/internal/model"
	"github.com/rcliao/convo-memory/internal/oracle"
	"github.com/rcliao/convo-memory/internal/schema"
)

// Report describes one extraction run.
type Report struct {
	Provider  string         `json:"provider,omitempty"`
	Model     string         `json:"model,omitempty"`
	ChunkSize int            `json:"chunk_size"`
	Chunks    int            `json:"chunks"`
	Skipped   []SkippedChunk `json:"skipped,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// SkippedChunk records a chunk whose contribution is absent from the run.
// A gap is distinct from a chunk that legitimately had nothing to extract.
type SkippedChunk struct {
	Chunk  int    `json:"chunk"`
	Reason string `json:"reason"`
}

// Extractor runs the pipeline against a single oracle capability.
type Extractor struct {
	call oracle.CallFunc
	cfg  Config
	log  *log.Logger
}

// New creates an Extractor. The oracle call is injected so tests can run the
// whole pipeline against a deterministic stub.
func New(call oracle.CallFunc, cfg Config, logger *log.Logger) (*Extractor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{call: call, cfg: cfg, log: logger}, nil
}

// Run builds a caller from the config and runs the pipeline. This is the
// entry point consumers use when they do not supply their own oracle.
func Run(ctx context.Context, turns []model.Turn, cfg Config, logger *log.Logger) (*model.MemorySet, *Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	call, err := oracle.NewCaller(oracle.Config{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, nil, &model.ConfigError{Reason: err.Error()}
	}
	e, err := New(call, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return e.Run(ctx, turns)
}

type chunkResult struct {
	raw string
	err error
}

// Run extracts memories from a full transcript. Oracle calls run with
// bounded concurrency; results are buffered per chunk and aggregated
// strictly in chunk order so merge tie-breaks stay deterministic. In strict
// mode (default) any chunk failure aborts the run; with BestEffort the
// failure lands in the report and the run continues.
func (e *Extractor) Run(ctx context.Context, turns []model.Turn) (*model.MemorySet, *Report, error) {
	start := time.Now()

	chunks, err := chunker.Split(turns, e.cfg.ChunkSize)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{
		Provider:  e.cfg.Provider,
		Model:     e.cfg.Model,
		ChunkSize: e.cfg.ChunkSize,
		Chunks:    len(chunks),
	}

	results := e.callAll(ctx, chunks)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	agg := aggregate.New()
	for _, chunk := range chunks {
		res := results[chunk.ID]
		if res.err == nil {
			var candidates []model.Candidate
			candidates, res.err = schema.Parse(res.raw, chunk.ID, e.cfg.ConfidenceFloor)
			if res.err == nil {
				agg.Add(candidates)
				continue
			}
		}
		if !e.cfg.BestEffort {
			return nil, nil, res.err
		}
		e.log.Warn("skipping chunk", "chunk", chunk.ID, "err", res.err)
		report.Skipped = append(report.Skipped, SkippedChunk{Chunk: chunk.ID, Reason: res.err.Error()})
	}

	report.Duration = time.Since(start)
	return agg.Result(), report, nil
}

// callAll invokes the oracle for every chunk, at most cfg.Workers at a time.
// Chunks share no mutable state, so calls may complete out of order; the
// result slice is indexed by chunk id to replay them in order.
func (e *Extractor) callAll(ctx context.Context, chunks []model.Chunk) []chunkResult {
	results := make([]chunkResult, len(chunks))

	workers := e.cfg.Workers
	if workers == 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(c model.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()

			e.log.Debug("extracting chunk", "chunk", c.ID, "turns", len(c.Turns))
			raw, err := e.call(ctx, buildRequest(c))
			if err != nil {
				err = &model.TransportError{Chunk: c.ID, Err: err}
			}
			results[c.ID] = chunkResult{raw: raw, err: err}
		}(chunk)
	}
	wg.Wait()
	return results
}

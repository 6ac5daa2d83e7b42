package memstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/convo-memory/internal/extract"
	"github.com/rcliao/convo-memory/internal/model"
)

// Run is one archived extraction run.
type Run struct {
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	Provider  string                 `json:"provider,omitempty"`
	Model     string                 `json:"model,omitempty"`
	ChunkSize int                    `json:"chunk_size"`
	Chunks    int                    `json:"chunks"`
	Skipped   []extract.SkippedChunk `json:"skipped,omitempty"`
	Memories  int                    `json:"memories"`
}

// Archive stores extraction runs and their memories in SQLite.
type Archive struct {
	db      *sql.DB
	entropy *ulid.MonotonicEntropy
}

// OpenArchive opens or creates the archive database at the given path.
func OpenArchive(dbPath string) (*Archive, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &model.PersistError{Path: dbPath, Op: "create dir for", Err: err}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, &model.PersistError{Path: dbPath, Op: "open", Err: err}
	}

	// Monotonic entropy keeps run ids strictly ordered even within one ms
	a := &Archive{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, &model.PersistError{Path: dbPath, Op: "migrate", Err: err}
	}
	return a, nil
}

func (a *Archive) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), a.entropy).String()
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		created_at  TEXT NOT NULL,
		provider    TEXT,
		model       TEXT,
		chunk_size  INTEGER NOT NULL,
		chunks      INTEGER NOT NULL,
		skipped     TEXT,
		memories    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);

	CREATE TABLE IF NOT EXISTS memories (
		id            TEXT NOT NULL,
		run_id        TEXT NOT NULL REFERENCES runs(id),
		type          TEXT NOT NULL,
		key           TEXT NOT NULL,
		value         TEXT NOT NULL,
		confidence    REAL NOT NULL,
		quote         TEXT,
		turns         TEXT NOT NULL,
		source_chunks TEXT NOT NULL,
		pos           INTEGER NOT NULL,
		PRIMARY KEY (run_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_memories_run ON memories(run_id);
	CREATE INDEX IF NOT EXISTS idx_memories_type_key ON memories(run_id, type, key);
	`
	_, err := a.db.Exec(schema)
	return err
}

// SaveRun archives a run and its memory set in a single transaction, so a
// failure partway through leaves nothing visible.
func (a *Archive) SaveRun(ctx context.Context, report *extract.Report, set *model.MemorySet) (*Run, error) {
	run := &Run{
		ID:        a.newID(),
		CreatedAt: time.Now().UTC(),
		Provider:  report.Provider,
		Model:     report.Model,
		ChunkSize: report.ChunkSize,
		Chunks:    report.Chunks,
		Skipped:   report.Skipped,
		Memories:  set.Len(),
	}

	var skippedJSON *string
	if len(run.Skipped) > 0 {
		b, _ := json.Marshal(run.Skipped)
		s := string(b)
		skippedJSON = &s
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, provider, model, chunk_size, chunks, skipped, memories)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(time.RFC3339), run.Provider, run.Model,
		run.ChunkSize, run.Chunks, skippedJSON, run.Memories)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	pos := 0
	for _, m := range normalize(set).All() {
		turnsJSON, _ := json.Marshal(m.Evidence.Turns)
		chunksJSON, _ := json.Marshal(m.SourceChunks)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO memories (id, run_id, type, key, value, confidence, quote, turns, source_chunks, pos)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, run.ID, m.Type, m.Key, m.Value, m.Confidence,
			m.Evidence.Quote, string(turnsJSON), string(chunksJSON), pos)
		if err != nil {
			return nil, fmt.Errorf("insert memory %s: %w", m.Key, err)
		}
		pos++
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns archived runs, newest first.
func (a *Archive) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, created_at, provider, model, chunk_size, chunks, skipped, memories
		 FROM runs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun loads one archived run and its memory set. Bucket ordering is the
// insertion order recorded at save time.
func (a *Archive) GetRun(ctx context.Context, runID string) (*Run, *model.MemorySet, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT id, created_at, provider, model, chunk_size, chunks, skipped, memories
		 FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, nil, err
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT id, type, key, value, confidence, quote, turns, source_chunks
		 FROM memories WHERE run_id = ? ORDER BY pos`, runID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	set := &model.MemorySet{}
	for rows.Next() {
		var m model.Memory
		var quote sql.NullString
		var turnsJSON, chunksJSON string
		if err := rows.Scan(&m.ID, &m.Type, &m.Key, &m.Value, &m.Confidence, &quote, &turnsJSON, &chunksJSON); err != nil {
			return nil, nil, err
		}
		if quote.Valid {
			m.Evidence.Quote = quote.String
		}
		json.Unmarshal([]byte(turnsJSON), &m.Evidence.Turns)
		json.Unmarshal([]byte(chunksJSON), &m.SourceChunks)

		switch m.Type {
		case model.TypePreference:
			set.Preferences = append(set.Preferences, m)
		case model.TypeEmotionalPattern:
			set.EmotionalPatterns = append(set.EmotionalPatterns, m)
		case model.TypeLongTermFact:
			set.LongTermFacts = append(set.LongTermFacts, m)
		}
	}
	return &run, set, rows.Err()
}

// LatestRun returns the most recent archived run, or nil if none exist.
func (a *Archive) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := a.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var createdAt string
	var provider, mdl, skipped sql.NullString

	err := row.Scan(&r.ID, &createdAt, &provider, &mdl, &r.ChunkSize, &r.Chunks, &skipped, &r.Memories)
	if err != nil {
		return r, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if provider.Valid {
		r.Provider = provider.String
	}
	if mdl.Valid {
		r.Model = mdl.String
	}
	if skipped.Valid {
		json.Unmarshal([]byte(skipped.String), &r.Skipped)
	}
	return r, nil
}

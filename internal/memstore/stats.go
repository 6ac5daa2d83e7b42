package memstore

import (
	"context"
	"os"
)

// Stats holds archive statistics.
type Stats struct {
	DBPath            string `json:"db_path"`
	DBSizeBytes       int64  `json:"db_size_bytes"`
	Runs              int    `json:"runs"`
	TotalMemories     int    `json:"total_memories"`
	Preferences       int    `json:"preferences"`
	EmotionalPatterns int    `json:"emotional_patterns"`
	LongTermFacts     int    `json:"long_term_facts"`
}

// Stats returns archive statistics.
func (a *Archive) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&st.Runs)
	a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalMemories)

	rows, err := a.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM memories GROUP BY type`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var memType string
		var count int
		rows.Scan(&memType, &count)
		switch memType {
		case "preference":
			st.Preferences = count
		case "emotional_pattern":
			st.EmotionalPatterns = count
		case "long_term_fact":
			st.LongTermFacts = count
		}
	}
	return st, rows.Err()
}

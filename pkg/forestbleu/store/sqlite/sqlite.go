package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/forestbleu/pkg/forestbleu/internalerr"
	"github.com/cognicore/forestbleu/pkg/forestbleu/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db  *sql.DB
	ids *store.IDSource
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %v: %w", path, err, internalerr.ErrStoreUnavailable)
	}
	// Single writer. The pragmas below are per connection, and ":memory:"
	// would otherwise give every connection its own database.
	db.SetMaxOpenConns(1)

	// Enable WAL mode so other processes can read while a run writes
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %v: %w", path, err, internalerr.ErrStoreUnavailable)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Initialize schema
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db, ids: store.NewIDSource()}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	bleu_weight REAL NOT NULL,
	ngram_order INTEGER NOT NULL,
	weights TEXT
);

CREATE TABLE IF NOT EXISTS hypotheses (
	run_id TEXT NOT NULL,
	sentence_id INTEGER NOT NULL,
	span_start INTEGER NOT NULL,
	span_end INTEGER NOT NULL,
	text TEXT NOT NULL,
	features TEXT,
	model_score REAL,
	bleu_stats TEXT,
	bleu_stats_pot TEXT,
	fingerprint TEXT NOT NULL,
	PRIMARY KEY(run_id, sentence_id, span_start, span_end),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_hypotheses_fingerprint ON hypotheses(run_id, sentence_id, fingerprint);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// CreateRun inserts a new run with a fresh ULID
func (s *sqliteStore) CreateRun(ctx context.Context, info store.RunInfo) (store.Run, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	run := store.Run{ID: s.ids.Next(now), CreatedAt: now, RunInfo: info}

	weights, err := json.Marshal(info.Weights)
	if err != nil {
		return store.Run{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, bleu_weight, ngram_order, weights) VALUES (?, ?, ?, ?, ?)`,
		run.ID, now.Format(time.RFC3339Nano), info.BleuWeight, info.Order, string(weights))
	if err != nil {
		return store.Run{}, err
	}
	return run, nil
}

// GetRun returns a run by ID
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	var (
		run       store.Run
		createdAt string
		weights   sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, bleu_weight, ngram_order, weights FROM runs WHERE id=?`, id,
	).Scan(&run.ID, &createdAt, &run.BleuWeight, &run.Order, &weights)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, false, nil
	}
	if err != nil {
		return store.Run{}, false, err
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return store.Run{}, false, fmt.Errorf("run %s created_at: %w", id, err)
	}
	if err := decodeJSON(weights, &run.Weights); err != nil {
		return store.Run{}, false, fmt.Errorf("run %s weights: %w", id, err)
	}
	return run, true, nil
}

// SaveHypothesis inserts or replaces the hypothesis for (run, sentence, span)
func (s *sqliteStore) SaveHypothesis(ctx context.Context, runID string, rec store.Record) error {
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return err
	}
	stats, err := json.Marshal(rec.BleuStats)
	if err != nil {
		return err
	}
	pot, err := json.Marshal(rec.BleuStatsPot)
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO hypotheses (run_id, sentence_id, span_start, span_end, text, features, model_score, bleu_stats, bleu_stats_pot, fingerprint)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, sentence_id, span_start, span_end) DO UPDATE SET
	text=excluded.text,
	features=excluded.features,
	model_score=excluded.model_score,
	bleu_stats=excluded.bleu_stats,
	bleu_stats_pot=excluded.bleu_stats_pot,
	fingerprint=excluded.fingerprint;
`
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id=?`, runID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, stmt,
		runID, rec.SentenceID, rec.Span.Start, rec.Span.End, rec.Text,
		string(features), rec.ModelScore, string(stats), string(pot),
		strconv.FormatUint(rec.Fingerprint, 16))
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Hypotheses returns all records of a sentence ordered by span
func (s *sqliteStore) Hypotheses(ctx context.Context, runID string, sentenceID int) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT span_start, span_end, text, features, model_score, bleu_stats, bleu_stats_pot, fingerprint
FROM hypotheses
WHERE run_id=? AND sentence_id=?
ORDER BY span_start, span_end`, runID, sentenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var rec store.Record
		var features, stats, pot sql.NullString
		var fingerprint string
		rec.SentenceID = sentenceID
		if err := rows.Scan(&rec.Span.Start, &rec.Span.End, &rec.Text, &features,
			&rec.ModelScore, &stats, &pot, &fingerprint); err != nil {
			return nil, err
		}
		if err := decodeJSON(features, &rec.Features); err != nil {
			return nil, err
		}
		if err := decodeJSON(stats, &rec.BleuStats); err != nil {
			return nil, err
		}
		if err := decodeJSON(pot, &rec.BleuStatsPot); err != nil {
			return nil, err
		}
		if rec.Fingerprint, err = strconv.ParseUint(fingerprint, 16, 64); err != nil {
			return nil, fmt.Errorf("fingerprint %q: %w", fingerprint, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DistinctTexts counts distinct hypothesis texts of a sentence
func (s *sqliteStore) DistinctTexts(ctx context.Context, runID string, sentenceID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT fingerprint) FROM hypotheses WHERE run_id=? AND sentence_id=?`,
		runID, sentenceID).Scan(&n)
	return n, err
}

func decodeJSON(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samuelfneumann/godreamer/dreamer"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by an SQLite database file
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteStore returns a new SQLiteStore using the database at path.
// The database is created when the store is initialized if it does not
// exist.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates its tables
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// CreateRun creates and stores a new run with a random ID
func (s *SQLiteStore) CreateRun(ctx context.Context, name string, seed uint64,
	config []byte) (Run, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, err
	}

	run := Run{
		ID:      uuid.NewString(),
		Name:    name,
		Seed:    seed,
		Config:  append([]byte(nil), config...),
		Created: time.Now().UTC(),
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, name, seed, config, created)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Name, int64(run.Seed), run.Config, run.Created.UnixNano())
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// GetRun returns the run with the given ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (Run, bool,
	error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	run := Run{ID: id}
	var seed, created int64
	err = db.QueryRowContext(ctx, `
		SELECT name, seed, config, created FROM runs WHERE id = ?
	`, id).Scan(&run.Name, &seed, &run.Config, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}
	run.Seed = uint64(seed)
	run.Created = time.Unix(0, created).UTC()
	return run, true, nil
}

// AppendDiagnostics appends diagnostics records to a run in a single
// transaction
func (s *SQLiteStore) AppendDiagnostics(ctx context.Context, runID string,
	records []DiagnosticsRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO diagnostics (run_id, step, idx, loss, model_loss,
			actor_loss, value_loss, prior_entropy, post_entropy, divergence,
			reward_loss, image_loss)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx, runID, r.Step, r.Index, r.Loss,
			r.ModelLoss, r.ActorLoss, r.ValueLoss, r.PriorEntropy,
			r.PostEntropy, r.Divergence, r.RewardLoss, r.ImageLoss)
		if err != nil {
			return fmt.Errorf("append diagnostics: %w", err)
		}
	}
	return tx.Commit()
}

// GetDiagnostics returns the diagnostics records of a run in the order
// they were appended
func (s *SQLiteStore) GetDiagnostics(ctx context.Context,
	runID string) ([]DiagnosticsRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT step, idx, loss, model_loss, actor_loss, value_loss,
			prior_entropy, post_entropy, divergence, reward_loss, image_loss
		FROM diagnostics WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []DiagnosticsRecord
	for rows.Next() {
		var r DiagnosticsRecord
		err := rows.Scan(&r.Step, &r.Index, &r.Loss, &r.ModelLoss,
			&r.ActorLoss, &r.ValueLoss, &r.PriorEntropy, &r.PostEntropy,
			&r.Divergence, &r.RewardLoss, &r.ImageLoss)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// AppendReturn stores the return of an episode of a run
func (s *SQLiteStore) AppendReturn(ctx context.Context, runID string,
	episode int, ret float64) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO returns (run_id, episode, ret)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, episode) DO UPDATE SET ret = excluded.ret
	`, runID, episode, ret)
	return err
}

// GetReturns returns the episodic returns of a run ordered by episode
func (s *SQLiteStore) GetReturns(ctx context.Context,
	runID string) ([]float64, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT ret FROM returns WHERE run_id = ? ORDER BY episode
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var returns []float64
	for rows.Next() {
		var ret float64
		if err := rows.Scan(&ret); err != nil {
			return nil, err
		}
		returns = append(returns, ret)
	}
	return returns, rows.Err()
}

// SaveOptimState stores a solver state checkpoint of a run, replacing
// any earlier checkpoint
func (s *SQLiteStore) SaveOptimState(ctx context.Context, runID string,
	step int, state dreamer.OptimState) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO optim_state (run_id, step, model, actor, value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			step = excluded.step,
			model = excluded.model,
			actor = excluded.actor,
			value = excluded.value
	`, runID, step, state.Model, state.Actor, state.Value)
	return err
}

// LatestOptimState returns the last solver state checkpoint of a run
// and the step at which it was taken
func (s *SQLiteStore) LatestOptimState(ctx context.Context,
	runID string) (int, dreamer.OptimState, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, dreamer.OptimState{}, false, err
	}

	var step int
	var state dreamer.OptimState
	err = db.QueryRowContext(ctx, `
		SELECT step, model, actor, value FROM optim_state WHERE run_id = ?
	`, runID).Scan(&step, &state.Model, &state.Actor, &state.Value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, dreamer.OptimState{}, false, nil
		}
		return 0, dreamer.OptimState{}, false, err
	}
	return step, state, true, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			seed INTEGER NOT NULL,
			config BLOB,
			created INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS diagnostics (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			step INTEGER NOT NULL,
			idx INTEGER NOT NULL,
			loss REAL NOT NULL,
			model_loss REAL NOT NULL,
			actor_loss REAL NOT NULL,
			value_loss REAL NOT NULL,
			prior_entropy REAL NOT NULL,
			post_entropy REAL NOT NULL,
			divergence REAL NOT NULL,
			reward_loss REAL NOT NULL,
			image_loss REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS diagnostics_run ON diagnostics (run_id);
		CREATE TABLE IF NOT EXISTS returns (
			run_id TEXT NOT NULL REFERENCES runs(id),
			episode INTEGER NOT NULL,
			ret REAL NOT NULL,
			PRIMARY KEY (run_id, episode)
		);
		CREATE TABLE IF NOT EXISTS optim_state (
			run_id TEXT PRIMARY KEY REFERENCES runs(id),
			step INTEGER NOT NULL,
			model BLOB,
			actor BLOB,
			value BLOB
		);
	`)
	return err
}

package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/facegen/latentsearch/apis/latentsearch/v1alpha1"
)

// RunSummary is one row of the runs table.
type RunSummary struct {
	Name             string
	Algorithm        string
	GeneratedAt      time.Time
	TotalEvaluations int
	ParetoSize       int
}

// SQLiteStore accumulates run results in a single database file. Each run is
// kept as a document plus queryable generation and archive tables.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

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

// SaveRun stores result under its RunName, replacing an earlier run of the
// same name.
func (s *SQLiteStore) SaveRun(ctx context.Context, result *v1alpha1.RunResult) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if result.RunName == "" {
		return errors.New("run name is required")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	var generatedAt int64
	if result.GeneratedAt != nil {
		generatedAt = result.GeneratedAt.UnixNano()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"generations", "pareto_front"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, result.RunName); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, algorithm, generated_at, total_evaluations, pareto_size, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			algorithm = excluded.algorithm,
			generated_at = excluded.generated_at,
			total_evaluations = excluded.total_evaluations,
			pareto_size = excluded.pareto_size,
			payload = excluded.payload
	`, result.RunName, result.Algorithm, generatedAt, result.TotalEvaluations, len(result.ParetoFront), payload)
	if err != nil {
		return err
	}

	for _, rec := range result.Logbook {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO generations (run_id, generation, evaluations, avg_identity, avg_gender, max_identity, max_gender)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, result.RunName, rec.Generation, rec.Evaluations, rec.Avg.Identity, rec.Avg.Gender, rec.Max.Identity, rec.Max.Gender)
		if err != nil {
			return fmt.Errorf("generation %d: %w", rec.Generation, err)
		}
	}

	for i, sol := range result.ParetoFront {
		latent, err := json.Marshal(sol.Latent)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pareto_front (run_id, position, identity, gender, latent)
			VALUES (?, ?, ?, ?, ?)
		`, result.RunName, i, sol.Objectives.Identity, sol.Objectives.Gender, latent)
		if err != nil {
			return fmt.Errorf("pareto member %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetRun(ctx context.Context, name string) (*v1alpha1.RunResult, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, name).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	result := &v1alpha1.RunResult{}
	if err := json.Unmarshal(payload, result); err != nil {
		return nil, false, fmt.Errorf("decode run %s: %w", name, err)
	}
	return result, true, nil
}

// ListRuns returns every stored run, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, algorithm, generated_at, total_evaluations, pareto_size
		FROM runs ORDER BY generated_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			sum RunSummary
			ts  int64
		)
		if err := rows.Scan(&sum.Name, &sum.Algorithm, &ts, &sum.TotalEvaluations, &sum.ParetoSize); err != nil {
			return nil, err
		}
		sum.GeneratedAt = time.Unix(0, ts).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// BestByObjective returns the archived latent vector of a run with the highest
// value of the named objective, "identity" or "gender".
func (s *SQLiteStore) BestByObjective(ctx context.Context, name, objective string) ([]float64, float64, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, 0, err
	}
	if objective != "identity" && objective != "gender" {
		return nil, 0, fmt.Errorf("unknown objective %q", objective)
	}

	var (
		latent []byte
		value  float64
	)
	err = db.QueryRowContext(ctx, `
		SELECT latent, `+objective+` FROM pareto_front
		WHERE run_id = ? ORDER BY `+objective+` DESC, position LIMIT 1
	`, name).Scan(&latent, &value)
	if err != nil {
		return nil, 0, err
	}
	var vec []float64
	if err := json.Unmarshal(latent, &vec); err != nil {
		return nil, 0, err
	}
	return vec, value, nil
}

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
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			algorithm TEXT NOT NULL,
			generated_at INTEGER NOT NULL,
			total_evaluations INTEGER NOT NULL,
			pareto_size INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS generations (
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			evaluations INTEGER NOT NULL,
			avg_identity REAL NOT NULL,
			avg_gender REAL NOT NULL,
			max_identity REAL NOT NULL,
			max_gender REAL NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
		CREATE TABLE IF NOT EXISTS pareto_front (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			identity REAL NOT NULL,
			gender REAL NOT NULL,
			latent BLOB NOT NULL,
			PRIMARY KEY (run_id, position)
		);
	`)
	return err
}

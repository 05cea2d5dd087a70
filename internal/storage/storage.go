package storage

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"sinogen/internal/stack"
)

// ErrNotFound reports a dataset absent from the output store.
var ErrNotFound = errors.New("dataset not found")

// Store wraps SQLite-backed persistence: assembly job records plus the
// output datasets (sinograms and per-peak fit diagnostics, keyed by the
// peak display key). A single writer process is assumed.
type Store struct {
	DB *sql.DB
}

// New opens (or creates) the database at path and ensures schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS assembly_jobs (
            id TEXT PRIMARY KEY,
            job_type TEXT NOT NULL,
            status TEXT NOT NULL,
            input_path TEXT,
            output_path TEXT,
            options_json TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            started_at TIMESTAMP,
            completed_at TIMESTAMP,
            error_message TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS job_results (
            job_id TEXT,
            meta_json TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS sinograms (
            peak_key TEXT PRIMARY KEY,
            shape_json TEXT NOT NULL,
            data BLOB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS diagnostics (
            peak_key TEXT PRIMARY KEY,
            shape_json TEXT NOT NULL,
            data BLOB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// JobRecord captures persisted job info.
type JobRecord struct {
	ID          string
	JobType     string
	Status      string
	InputPath   string
	OutputPath  string
	OptionsJSON string
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// RecordJobQueued inserts a pending job.
func (s *Store) RecordJobQueued(rec JobRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT OR REPLACE INTO assembly_jobs (id, job_type, status, input_path, output_path, options_json) VALUES (?, ?, ?, ?, ?, ?);`,
		rec.ID, rec.JobType, rec.Status, rec.InputPath, rec.OutputPath, rec.OptionsJSON)
	return err
}

// RecordJobStart marks a job as running.
func (s *Store) RecordJobStart(id string) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`UPDATE assembly_jobs SET status='running', started_at=CURRENT_TIMESTAMP WHERE id=?;`, id)
	return err
}

// RecordJobResult finalizes a job with status and meta.
func (s *Store) RecordJobResult(id string, status string, meta map[string]any, errMsg string) error {
	if s == nil {
		return nil
	}
	metaJSON, _ := json.Marshal(meta)
	_, err := s.DB.Exec(`UPDATE assembly_jobs SET status=?, completed_at=CURRENT_TIMESTAMP, error_message=? WHERE id=?;`, status, errMsg, id)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(`INSERT INTO job_results (job_id, meta_json) VALUES (?, ?);`, id, string(metaJSON))
	return err
}

// RecentJobs returns the latest jobs up to limit.
func (s *Store) RecentJobs(limit int) ([]JobRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT id, job_type, status, input_path, output_path, options_json, created_at, started_at, completed_at, error_message FROM assembly_jobs ORDER BY created_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []JobRecord
	for rows.Next() {
		var rec JobRecord
		var created time.Time
		var started, completed sql.NullTime
		var errorMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.JobType, &rec.Status, &rec.InputPath, &rec.OutputPath, &rec.OptionsJSON, &created, &started, &completed, &errorMsg); err != nil {
			return nil, err
		}
		rec.CreatedAt = created
		if started.Valid {
			rec.StartedAt = &started.Time
		}
		if completed.Valid {
			rec.CompletedAt = &completed.Time
		}
		if errorMsg.Valid {
			rec.Error = errorMsg.String
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// HasSinogram reports whether a sinogram dataset exists for the peak key.
// This check drives the assembler's idempotent skip-if-present resume.
func (s *Store) HasSinogram(peakKey string) (bool, error) {
	if s == nil {
		return false, errors.New("store not initialized")
	}
	var one int
	err := s.DB.QueryRow(`SELECT 1 FROM sinograms WHERE peak_key=?;`, peakKey).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// WriteSinogram persists one sinogram dataset under the peak display key.
func (s *Store) WriteSinogram(peakKey string, data *stack.Array) error {
	return s.writeDataset("sinograms", peakKey, data)
}

// ReadSinogram loads one sinogram dataset.
func (s *Store) ReadSinogram(peakKey string) (*stack.Array, error) {
	return s.readDataset("sinograms", peakKey)
}

// WriteDiagnostics persists the raw/fit window pairs for one peak.
func (s *Store) WriteDiagnostics(peakKey string, data *stack.Array) error {
	return s.writeDataset("diagnostics", peakKey, data)
}

// ReadDiagnostics loads the raw/fit window pairs for one peak.
func (s *Store) ReadDiagnostics(peakKey string) (*stack.Array, error) {
	return s.readDataset("diagnostics", peakKey)
}

// PeakKeys lists the peaks present in the sinogram group.
func (s *Store) PeakKeys() ([]string, error) {
	rows, err := s.DB.Query(`SELECT peak_key FROM sinograms ORDER BY peak_key;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) writeDataset(table, peakKey string, data *stack.Array) error {
	if s == nil {
		return errors.New("store not initialized")
	}
	shapeJSON, err := json.Marshal(data.Shape)
	if err != nil {
		return err
	}
	blob := make([]byte, 8*len(data.Data))
	for i, v := range data.Data {
		binary.LittleEndian.PutUint64(blob[8*i:], math.Float64bits(v))
	}
	_, err = s.DB.Exec(`INSERT OR REPLACE INTO `+table+` (peak_key, shape_json, data) VALUES (?, ?, ?);`,
		peakKey, string(shapeJSON), blob)
	return err
}

func (s *Store) readDataset(table, peakKey string) (*stack.Array, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	var shapeJSON string
	var blob []byte
	err := s.DB.QueryRow(`SELECT shape_json, data FROM `+table+` WHERE peak_key=?;`, peakKey).Scan(&shapeJSON, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, table, peakKey)
	}
	if err != nil {
		return nil, err
	}
	var shape []int
	if err := json.Unmarshal([]byte(shapeJSON), &shape); err != nil {
		return nil, fmt.Errorf("dataset %s/%s: %w", table, peakKey, err)
	}
	n := len(blob) / 8
	data := make([]float64, n)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	return &stack.Array{Shape: shape, Data: data}, nil
}

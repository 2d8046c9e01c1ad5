package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"placementai/ml"
)

const schema = `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL UNIQUE,
        model_name VARCHAR(50),
        accuracy REAL,
        precision REAL,
        recall REAL,
        f1 REAL,
        log_loss REAL,
        test_accuracy REAL,
        trained_at DATETIME,
        data_points INTEGER,
        duration_ms INTEGER,
        artifact_path TEXT
    );
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        request_id TEXT,
        input TEXT NOT NULL,
        placed INTEGER NOT NULL,
        probability REAL NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_training_log_trained_at ON training_log(trained_at);
    `

// Store is the audit log for training runs and served predictions.
type Store struct {
	db *sql.DB
}

// Open creates the database file if needed and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	database.SetMaxOpenConns(1)

	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type TrainingLog struct {
	RunID        string    `json:"run_id"`
	ModelName    string    `json:"model_name"`
	Accuracy     float64   `json:"accuracy"`
	Precision    float64   `json:"precision"`
	Recall       float64   `json:"recall"`
	F1           float64   `json:"f1"`
	LogLoss      float64   `json:"log_loss"`
	TestAccuracy *float64  `json:"test_accuracy,omitempty"`
	TrainedAt    time.Time `json:"trained_at"`
	DataPoints   int       `json:"data_points"`
	DurationMs   int64     `json:"duration_ms"`
	ArtifactPath string    `json:"artifact_path"`
}

// SaveTrainingRun records a finished run and where its artifact was written.
func (s *Store) SaveTrainingRun(ctx context.Context, report *ml.TrainingReport, artifactPath string) error {
	if report == nil {
		return errors.New("training report required")
	}
	var testAccuracy sql.NullFloat64
	if report.Test != nil {
		testAccuracy = sql.NullFloat64{Float64: report.Test.Accuracy, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (
            run_id, model_name, accuracy, precision, recall, f1, log_loss,
            test_accuracy, trained_at, data_points, duration_ms, artifact_path
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		ml.ModelTypeLogisticRegression,
		report.Train.Accuracy,
		report.Train.Precision,
		report.Train.Recall,
		report.Train.F1,
		report.Train.LogLoss,
		testAccuracy,
		report.TrainedAt.UTC(),
		report.Samples,
		report.Duration.Milliseconds(),
		artifactPath,
	)
	return err
}

// RecentTrainingRuns returns up to limit runs, newest first.
func (s *Store) RecentTrainingRuns(ctx context.Context, limit int) ([]TrainingLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT run_id, model_name, accuracy, precision, recall, f1, log_loss,
               test_accuracy, trained_at, data_points, duration_ms, artifact_path
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		var testAccuracy sql.NullFloat64
		if err := rows.Scan(&log.RunID, &log.ModelName, &log.Accuracy, &log.Precision, &log.Recall,
			&log.F1, &log.LogLoss, &testAccuracy, &log.TrainedAt, &log.DataPoints, &log.DurationMs,
			&log.ArtifactPath); err != nil {
			return nil, err
		}
		if testAccuracy.Valid {
			value := testAccuracy.Float64
			log.TestAccuracy = &value
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// SavePrediction stores the raw request features and the served result.
func (s *Store) SavePrediction(ctx context.Context, requestID string, input map[string]float64, result *ml.PredictionResult) error {
	if result == nil {
		return errors.New("prediction result required")
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO predictions (request_id, input, placed, probability, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		requestID, string(payload), result.Placed, result.Probability, time.Now().UTC())
	return err
}

type PredictionStats struct {
	Total          int     `json:"total"`
	Placed         int     `json:"placed"`
	AvgProbability float64 `json:"avg_probability"`
}

func (s *Store) PredictionStats(ctx context.Context) (PredictionStats, error) {
	var stats PredictionStats
	var placed sql.NullInt64
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*), SUM(placed), AVG(probability)
        FROM predictions`).Scan(&stats.Total, &placed, &avg)
	if err != nil {
		return stats, err
	}
	stats.Placed = int(placed.Int64)
	stats.AvgProbability = avg.Float64
	return stats, nil
}

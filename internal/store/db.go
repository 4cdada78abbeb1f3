package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"hospital-kpi-pipeline/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// InitDB opens the sqlite database and creates the run tables.
func InitDB(dbPath string) error {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}

	runTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		request TEXT,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);
	`
	errorTable := `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		endpoint_id TEXT,
		error_kind TEXT,
		error_message TEXT,
		created_at DATETIME
	);
	`
	cardTable := `
	CREATE TABLE IF NOT EXISTS run_cards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		card TEXT,
		created_at DATETIME
	);
	`
	overrideTable := `
	CREATE TABLE IF NOT EXISTS run_overrides (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		endpoint_id TEXT,
		key TEXT,
		value TEXT,
		created_at DATETIME
	);
	`

	for _, stmt := range []string{runTable, errorTable, cardTable, overrideTable} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun stores a new run in pending state.
func SaveRun(runID string, req model.RunRequest) error {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO runs (id, request, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, reqJSON, "pending", now, now)
	return err
}

// UpdateRunStatus moves a run between pending, running, completed and failed.
func UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// SaveRunError records one endpoint failure for a run.
func SaveRunError(runID string, res model.EndpointResult) error {
	if res.Success {
		return nil
	}
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO run_errors (run_id, endpoint_id, error_kind, error_message, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, res.EndpointID, string(res.Kind), res.Message, now)
	return err
}

// SaveRunCards persists the assembled card list of a completed run.
func SaveRunCards(runID string, cards []model.KpiCard) error {
	now := time.Now().UTC()
	for _, card := range cards {
		cardJSON, err := json.Marshal(card)
		if err != nil {
			return err
		}
		if _, err := db.Exec(`INSERT INTO run_cards (run_id, card, created_at) VALUES (?, ?, ?)`,
			runID, cardJSON, now); err != nil {
			return err
		}
	}
	return nil
}

// GetRunCards returns the cards of a run in insertion order.
func GetRunCards(runID string) ([]model.KpiCard, error) {
	rows, err := db.Query(`SELECT card FROM run_cards WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []model.KpiCard
	for rows.Next() {
		var cardJSON string
		if err := rows.Scan(&cardJSON); err != nil {
			return nil, err
		}
		var card model.KpiCard
		if err := json.Unmarshal([]byte(cardJSON), &card); err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// SaveRunOverrides persists the defaults that were applied during a run.
func SaveRunOverrides(runID string, overrides []model.Override) error {
	now := time.Now().UTC()
	for _, ov := range overrides {
		if _, err := db.Exec(`INSERT INTO run_overrides (run_id, endpoint_id, key, value, created_at) VALUES (?, ?, ?, ?, ?)`,
			runID, ov.EndpointID, ov.Key, ov.Value, now); err != nil {
			return err
		}
	}
	return nil
}

// GetRunOverrides returns the applied defaults of a run.
func GetRunOverrides(runID string) ([]model.Override, error) {
	rows, err := db.Query(`SELECT endpoint_id, key, value FROM run_overrides WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []model.Override
	for rows.Next() {
		var ov model.Override
		if err := rows.Scan(&ov.EndpointID, &ov.Key, &ov.Value); err != nil {
			return nil, err
		}
		overrides = append(overrides, ov)
	}
	return overrides, rows.Err()
}

// ListRuns returns all runs with basic info, newest first.
func ListRuns() ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT id, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []map[string]interface{}
	for rows.Next() {
		var id, status string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, map[string]interface{}{
			"id":        id,
			"status":    status,
			"createdAt": createdAt,
			"updatedAt": updatedAt,
		})
	}
	return runs, rows.Err()
}

// GetRun fetches the full request and status of one run.
func GetRun(runID string) (map[string]interface{}, error) {
	var reqJSON, status string
	var createdAt, updatedAt time.Time

	err := db.QueryRow(`SELECT request, status, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&reqJSON, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var req model.RunRequest
	if err := json.Unmarshal([]byte(reqJSON), &req); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"id":        runID,
		"request":   req,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}, nil
}

// GetRunErrors returns the endpoint failures recorded for a run.
func GetRunErrors(runID string) ([]map[string]interface{}, error) {
	rows, err := db.Query(`SELECT endpoint_id, error_kind, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errors []map[string]interface{}
	for rows.Next() {
		var endpointID, kind, message string
		var createdAt time.Time
		if err := rows.Scan(&endpointID, &kind, &message, &createdAt); err != nil {
			return nil, err
		}
		errors = append(errors, map[string]interface{}{
			"endpointId": endpointID,
			"errorKind":  kind,
			"message":    message,
			"createdAt":  createdAt,
		})
	}
	return errors, rows.Err()
}

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Record is one dispatched hotkey action with its timings
type Record struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ActivationID  string    `json:"activation_id"`
	Action        string    `json:"action"`
	Role          string    `json:"role"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	PromptText    string    `json:"prompt_text"`
	ResponseText  string    `json:"response_text"`
	PromptChars   int       `json:"prompt_chars"`
	ResponseChars int       `json:"response_chars"`
	CaptureMs     int64     `json:"capture_ms"`
	GenerateMs    int64     `json:"generate_ms"`
	InjectMs      int64     `json:"inject_ms"`
	TotalMs       int64     `json:"total_ms"`
	Success       bool      `json:"success"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

// SaveRecord saves a record and sets its ID
func (db *DB) SaveRecord(r *Record) error {
	query := `
		INSERT INTO completions (
			activation_id, action, role, provider, model,
			prompt_text, response_text, prompt_chars, response_chars,
			capture_ms, generate_ms, inject_ms, total_ms,
			success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.conn.Exec(query,
		r.ActivationID, r.Action, r.Role, r.Provider, r.Model,
		r.PromptText, r.ResponseText, r.PromptChars, r.ResponseChars,
		r.CaptureMs, r.GenerateMs, r.InjectMs, r.TotalMs,
		r.Success, r.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	r.ID = id
	return nil
}

// ListRecords retrieves records newest first with pagination
func (db *DB) ListRecords(limit, offset int) ([]Record, error) {
	query := `
		SELECT
			id, timestamp, activation_id, action, role, provider, model,
			prompt_text, response_text, prompt_chars, response_chars,
			capture_ms, generate_ms, inject_ms, total_ms,
			success, error_message
		FROM completions
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.conn.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		var errorMessage sql.NullString

		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.ActivationID, &r.Action, &r.Role, &r.Provider, &r.Model,
			&r.PromptText, &r.ResponseText, &r.PromptChars, &r.ResponseChars,
			&r.CaptureMs, &r.GenerateMs, &r.InjectMs, &r.TotalMs,
			&r.Success, &errorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		if errorMessage.Valid {
			r.ErrorMessage = errorMessage.String
		}

		records = append(records, r)
	}

	return records, rows.Err()
}

// DeleteRecord deletes a record by ID
func (db *DB) DeleteRecord(id int64) error {
	result, err := db.conn.Exec(`DELETE FROM completions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return nil
}

// CountRecords returns the total number of records
func (db *DB) CountRecords() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM completions").Scan(&count)
	return count, err
}

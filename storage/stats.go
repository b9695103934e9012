package storage

import "fmt"

// DailyStats represents statistics for a single day
type DailyStats struct {
	Date          string `json:"date"`
	Total         int    `json:"total"`
	ResponseChars int    `json:"response_chars"`
	SuccessCount  int    `json:"success_count"`
	FailureCount  int    `json:"failure_count"`
}

// GroupStats represents statistics grouped by action or provider
type GroupStats struct {
	Name         string  `json:"name"`
	Total        int     `json:"total"`
	SuccessCount int     `json:"success_count"`
	FailureCount int     `json:"failure_count"`
	AvgTotalMs   float64 `json:"avg_total_ms"`
}

// OverallStats represents overall statistics
type OverallStats struct {
	Total              int     `json:"total"`
	SuccessCount       int     `json:"success_count"`
	FailureCount       int     `json:"failure_count"`
	TotalPromptChars   int64   `json:"total_prompt_chars"`
	TotalResponseChars int64   `json:"total_response_chars"`
	AvgCaptureMs       float64 `json:"avg_capture_ms"`
	AvgGenerateMs      float64 `json:"avg_generate_ms"`
	AvgInjectMs        float64 `json:"avg_inject_ms"`
	AvgTotalMs         float64 `json:"avg_total_ms"`
}

// DailyStats retrieves statistics grouped by date for the last N days
func (db *DB) DailyStats(days int) ([]DailyStats, error) {
	query := `
		SELECT
			DATE(timestamp) as date,
			COUNT(*) as total,
			COALESCE(SUM(response_chars), 0) as response_chars,
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0) as success_count,
			COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0) as failure_count
		FROM completions
		WHERE timestamp >= datetime('now', '-' || ? || ' days')
		GROUP BY DATE(timestamp)
		ORDER BY date DESC
	`

	rows, err := db.conn.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	stats := []DailyStats{}
	for rows.Next() {
		var s DailyStats
		if err := rows.Scan(&s.Date, &s.Total, &s.ResponseChars, &s.SuccessCount, &s.FailureCount); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// ActionStats retrieves statistics grouped by action for the last N days
func (db *DB) ActionStats(days int) ([]GroupStats, error) {
	return db.groupStats("action", days)
}

// ProviderStats retrieves statistics grouped by provider for the last N days
func (db *DB) ProviderStats(days int) ([]GroupStats, error) {
	return db.groupStats("provider", days)
}

// groupStats groups by column, which must be a trusted column name
func (db *DB) groupStats(column string, days int) ([]GroupStats, error) {
	query := fmt.Sprintf(`
		SELECT
			%s,
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0) as success_count,
			COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0) as failure_count,
			COALESCE(AVG(total_ms), 0) as avg_total_ms
		FROM completions
		WHERE timestamp >= datetime('now', '-' || ? || ' days')
		GROUP BY %s
		ORDER BY total DESC
	`, column, column)

	rows, err := db.conn.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s stats: %w", column, err)
	}
	defer rows.Close()

	stats := []GroupStats{}
	for rows.Next() {
		var s GroupStats
		if err := rows.Scan(&s.Name, &s.Total, &s.SuccessCount, &s.FailureCount, &s.AvgTotalMs); err != nil {
			return nil, fmt.Errorf("failed to scan %s stats: %w", column, err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// OverallStats retrieves overall statistics for the last N days
func (db *DB) OverallStats(days int) (*OverallStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0) as success_count,
			COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0) as failure_count,
			COALESCE(SUM(prompt_chars), 0) as total_prompt_chars,
			COALESCE(SUM(response_chars), 0) as total_response_chars,
			COALESCE(AVG(capture_ms), 0) as avg_capture_ms,
			COALESCE(AVG(generate_ms), 0) as avg_generate_ms,
			COALESCE(AVG(inject_ms), 0) as avg_inject_ms,
			COALESCE(AVG(total_ms), 0) as avg_total_ms
		FROM completions
		WHERE timestamp >= datetime('now', '-' || ? || ' days')
	`

	var stats OverallStats
	err := db.conn.QueryRow(query, days).Scan(
		&stats.Total,
		&stats.SuccessCount,
		&stats.FailureCount,
		&stats.TotalPromptChars,
		&stats.TotalResponseChars,
		&stats.AvgCaptureMs,
		&stats.AvgGenerateMs,
		&stats.AvgInjectMs,
		&stats.AvgTotalMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query overall stats: %w", err)
	}

	return &stats, nil
}

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CycleRecord is the persisted outcome of one request/response cycle.
type CycleRecord struct {
	ID         string          `json:"id"`
	Seq        uint64          `json:"seq"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Nodes      int             `json:"nodes"`
	Bytes      int             `json:"bytes"`
	Edges      int             `json:"edges"`
	Clusters   int             `json:"clusters"`
	AvgHops    float64         `json:"avg_hops"`
	Mismatch   bool            `json:"mismatch"`
	DurationMs int64           `json:"duration_ms"`
	Matrix     json.RawMessage `json:"matrix,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
}

const cycleColumns = `id, seq, status, error, nodes, bytes, edges, clusters, avg_hops, mismatch, duration_ms, matrix, started_at`

func scanCycle(scanner interface {
	Scan(dest ...any) error
}) (*CycleRecord, error) {
	r := &CycleRecord{}
	var errText, matrix *string
	var startedMs int64
	err := scanner.Scan(&r.ID, &r.Seq, &r.Status, &errText, &r.Nodes, &r.Bytes, &r.Edges, &r.Clusters, &r.AvgHops, &r.Mismatch, &r.DurationMs, &matrix, &startedMs)
	if err != nil {
		return nil, err
	}
	if errText != nil {
		r.Error = *errText
	}
	if matrix != nil {
		r.Matrix = json.RawMessage(*matrix)
	}
	r.StartedAt = time.UnixMilli(startedMs).UTC()
	return r, nil
}

func (s *Store) SaveCycle(r *CycleRecord) error {
	var errText, matrix *string
	if r.Error != "" {
		errText = &r.Error
	}
	if len(r.Matrix) > 0 {
		m := string(r.Matrix)
		matrix = &m
	}
	_, err := s.db.Exec(`
		INSERT INTO cycles (`+cycleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			duration_ms = excluded.duration_ms`,
		r.ID, r.Seq, r.Status, errText, r.Nodes, r.Bytes, r.Edges, r.Clusters, r.AvgHops, r.Mismatch, r.DurationMs, matrix, r.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save cycle: %w", err)
	}
	return nil
}

func (s *Store) GetCycle(id string) (*CycleRecord, error) {
	row := s.db.QueryRow(`SELECT `+cycleColumns+` FROM cycles WHERE id = ?`, id)
	r, err := scanCycle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cycle: %w", err)
	}
	return r, nil
}

// ListCycles returns the most recent cycles, newest first.
func (s *Store) ListCycles(limit int) ([]CycleRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+cycleColumns+` FROM cycles ORDER BY started_at DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		r, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// CountByStatus returns how many recorded cycles ended in each status.
func (s *Store) CountByStatus() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM cycles GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count cycles: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DeleteCyclesBefore prunes history older than t.
func (s *Store) DeleteCyclesBefore(t time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM cycles WHERE started_at < ?`, t.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete cycles: %w", err)
	}
	return res.RowsAffected()
}

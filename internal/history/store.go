package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/briefkit/brief/internal/outline"
)

// Execution is one recorded query execution.
type Execution struct {
	ExecutionID string `json:"execution_id"`
	SQLHash     string `json:"sql_hash"`
	Query       string `json:"query,omitempty"`
	Description string `json:"description,omitempty"`
	RowCount    int    `json:"row_count"`
	ExecutedAt  string `json:"executed_at"`
}

// Store persists query executions in sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the history store at the given path.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// HashSQL returns the content hash used to cite a query by its text.
func HashSQL(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

// Record inserts one execution. An empty id is generated, an empty hash is
// derived from the query text, an empty timestamp defaults to now.
func (s *Store) Record(ctx context.Context, ex Execution) (Execution, error) {
	if ex.ExecutionID == "" {
		ex.ExecutionID = uuid.NewString()
	}
	if ex.SQLHash == "" {
		ex.SQLHash = HashSQL(ex.Query)
	}
	if ex.ExecutedAt == "" {
		ex.ExecutedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO executions(execution_id, sql_hash, query, description, row_count, executed_at)
		VALUES(?, ?, ?, ?, ?, ?)`,
		ex.ExecutionID, ex.SQLHash, ex.Query, ex.Description, ex.RowCount, ex.ExecutedAt)
	if err != nil {
		return Execution{}, fmt.Errorf("insert execution: %w", err)
	}
	return ex, nil
}

// Lookup finds an execution by id first, then by sql hash.
func (s *Store) Lookup(ctx context.Context, src outline.DatasetSource) (Execution, bool, error) {
	if src.ExecutionID != "" {
		ex, ok, err := s.queryOne(ctx, `SELECT execution_id, sql_hash, query, description, row_count, executed_at
			FROM executions WHERE execution_id=?`, src.ExecutionID)
		if err != nil || ok {
			return ex, ok, err
		}
	}
	if src.SQLHash != "" {
		return s.queryOne(ctx, `SELECT execution_id, sql_hash, query, description, row_count, executed_at
			FROM executions WHERE sql_hash=? ORDER BY executed_at DESC LIMIT 1`, src.SQLHash)
	}
	return Execution{}, false, nil
}

func (s *Store) queryOne(ctx context.Context, query string, arg any) (Execution, bool, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	var ex Execution
	if err := row.Scan(&ex.ExecutionID, &ex.SQLHash, &ex.Query, &ex.Description, &ex.RowCount, &ex.ExecutedAt); err != nil {
		if err == sql.ErrNoRows {
			return Execution{}, false, nil
		}
		return Execution{}, false, fmt.Errorf("read execution: %w", err)
	}
	return ex, true, nil
}

// Resolve implements the change validator's citation check.
func (s *Store) Resolve(ctx context.Context, src outline.DatasetSource) (bool, error) {
	_, ok, err := s.Lookup(ctx, src)
	return ok, err
}

// List returns the most recent executions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT execution_id, sql_hash, query, description, row_count, executed_at
		FROM executions ORDER BY executed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Execution
	for rows.Next() {
		var ex Execution
		if err := rows.Scan(&ex.ExecutionID, &ex.SQLHash, &ex.Query, &ex.Description, &ex.RowCount, &ex.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return out, nil
}

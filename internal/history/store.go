// Package history provides access to the scans table for querying
// what was read from the device and how it was resolved.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edmw/volumio-hid/internal/command"
)

// Scan represents a single finalized identifier and its resolution.
type Scan struct {
	ID         string          `json:"id"`
	Identifier string          `json:"identifier"`
	Outcome    command.Outcome `json:"outcome"`
	Command    string          `json:"command,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Filter controls which scans to return.
type Filter struct {
	Outcome    command.Outcome // optional: filter by outcome (command, playlist, unmatched)
	Identifier string          // optional: filter by exact identifier
	Limit      int             // default 50, max 200
	Offset     int             // pagination offset
}

// ListResult contains the paginated scan results.
type ListResult struct {
	Scans  []Scan `json:"scans"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// Logger interface for optional logging support.
type Logger interface {
	Error(msg string, args ...any)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

// Store reads and writes scan history in SQLite.
type Store struct {
	db     *sql.DB
	logger Logger
}

// NewStore creates a new scan history store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, logger: noopLogger{}}
}

// SetLogger sets a logger for background write failures.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Record writes one scan from the device pipeline.
//
// It is fire-and-forget: a failed write is logged and dropped so the
// pipeline never stalls on the history store.
func (s *Store) Record(ctx context.Context, identifier string, outcome command.Outcome, commandName string) {
	scan := &Scan{
		Identifier: identifier,
		Outcome:    outcome,
		Command:    commandName,
	}
	if err := s.Create(ctx, scan); err != nil {
		s.logger.Error("scan history write failed",
			"identifier", identifier,
			"error", err,
		)
	}
}

// Create inserts a new scan. The ID and CreatedAt are generated if empty.
func (s *Store) Create(ctx context.Context, scan *Scan) error {
	if scan.ID == "" {
		scan.ID = "scan-" + uuid.NewString()[:8]
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, identifier, outcome, command, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		scan.ID, scan.Identifier, string(scan.Outcome),
		nullableString(scan.Command),
		scan.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting scan: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns scans matching the filter, ordered by most recent first.
func (s *Store) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for scan history queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.Identifier != "" {
		conditions = append(conditions, "identifier = ?")
		args = append(args, filter.Identifier)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM scans %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting scans: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, identifier, outcome, command, created_at FROM scans %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying scans: %w", err)
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		var scan Scan
		var outcome string
		var commandName sql.NullString
		var createdAt string

		if err := rows.Scan(&scan.ID, &scan.Identifier, &outcome, &commandName, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}

		scan.Outcome = command.Outcome(outcome)
		if commandName.Valid {
			scan.Command = commandName.String
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing scan timestamp %q: %w", createdAt, err)
		}
		scan.CreatedAt = t

		scans = append(scans, scan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scans: %w", err)
	}

	if scans == nil {
		scans = []Scan{}
	}

	return &ListResult{
		Scans:  scans,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

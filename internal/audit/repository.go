// Package audit provides access to the audit_entries table for
// querying hardware mutation history.
//
// Every write that reaches the embedded controller through the daemon
// is recorded here: profile applies, cooler boost and backlight
// switches, battery threshold changes and raw register pokes.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action values recorded in audit entries.
const (
	ActionApply         = "apply"
	ActionBoost         = "boost"
	ActionBacklight     = "backlight"
	ActionBattery       = "battery"
	ActionRegisterWrite = "register_write"
	ActionProfileSave   = "profile_save"
)

// Actor values identifying which interface performed the mutation.
const (
	ActorAPI  = "api"
	ActorMQTT = "mqtt"
)

// Paging bounds for List.
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Entry represents a single audit trail entry.
type Entry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Target    string         `json:"target,omitempty"`
	Actor     string         `json:"actor"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which audit entries to return. Zero-value fields
// match everything; Limit defaults to 50 and is capped at 200.
type Filter struct {
	Action string
	Actor  string
	Target string
	Limit  int
	Offset int
}

// normalise applies the paging defaults and caps.
func (f Filter) normalise() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// clause renders the filter's WHERE fragment and its arguments. The
// fragment is assembled from fixed column names; values always bind
// through placeholders.
func (f Filter) clause() (string, []any) {
	var conds []string
	var args []any
	for _, c := range []struct {
		column string
		value  string
	}{
		{"action", f.Action},
		{"actor", f.Actor},
		{"target", f.Target},
	} {
		if c.value != "" {
			conds = append(conds, c.column+" = ?")
			args = append(args, c.value)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListResult contains one page of audit entries. Total counts every
// match, not just this page.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository records and queries the audit trail.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores audit entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new audit entry repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entryColumns = "id, action, target, actor, details, created_at"

// Create inserts a new audit entry, generating ID and CreatedAt when
// unset. The generated values are written back to entry.
func (r *SQLiteRepository) Create(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "aud-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	details := sql.NullString{}
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO audit_entries ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		entry.ID,
		entry.Action,
		sql.NullString{String: entry.Target, Valid: entry.Target != ""},
		entry.Actor,
		details,
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns one page of entries matching the filter, newest first,
// along with the total match count for pagination.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter = filter.normalise()
	where, args := filter.clause()

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_entries"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query := "SELECT " + entryColumns + " FROM audit_entries" + where +
		" ORDER BY created_at DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var entry Entry
	var target, details sql.NullString
	var createdAt string

	if err := rows.Scan(&entry.ID, &entry.Action, &target, &entry.Actor, &details, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning audit entry: %w", err)
	}

	entry.Target = target.String
	if details.Valid && details.String != "" {
		// A row with mangled details still lists; the column is
		// advisory context, not the record of what happened.
		var m map[string]any
		if json.Unmarshal([]byte(details.String), &m) == nil {
			entry.Details = m
		}
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing audit entry timestamp %q: %w", createdAt, err)
	}
	entry.CreatedAt = t

	return entry, nil
}

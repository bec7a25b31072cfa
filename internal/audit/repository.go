// Package audit persists a trail of security-relevant actions:
// logins, lockouts, routing changes, and link management.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openav/matrix-gate/internal/infrastructure/database"
)

// Known audit actions.
const (
	ActionLogin       = "login"
	ActionLoginFailed = "login_failed"
	ActionLockout     = "lockout"
	ActionLogout      = "logout"
	ActionSwitch      = "switch"
	ActionConnect     = "connect"
	ActionDisconnect  = "disconnect"
)

// defaultListLimit caps List results when the caller asks for everything.
const defaultListLimit = 100

// Entry is one audit record.
type Entry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Username   string         `json:"username"`
	ClientAddr string         `json:"client_addr"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Repository provides append and query access to the audit trail.
type Repository struct {
	db *database.DB
}

// NewRepository creates an audit repository backed by the database.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Record appends one entry to the trail. Details may be nil.
func (r *Repository) Record(ctx context.Context, action, username, clientAddr string, details map[string]any) error {
	var detailsJSON sql.NullString
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	id := "aud-" + uuid.NewString()[:8]

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, action, username, client_addr, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, action, username, clientAddr, detailsJSON, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	Action   string
	Username string
	Since    time.Time
	Limit    int
}

// List returns matching entries, newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, action, username, client_addr, details, created_at
		FROM audit_logs WHERE 1=1`
	args := []any{}

	if f.Action != "" {
		query += " AND action = ?"
		args = append(args, f.Action)
	}
	if f.Username != "" {
		query += " AND username = ?"
		args = append(args, f.Username)
	}
	if !f.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, f.Since.UTC())
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			detailsJSON sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Username, &e.ClientAddr, &detailsJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if detailsJSON.Valid {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshalling audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return entries, nil
}

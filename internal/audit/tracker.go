package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/akquise-tool/internal/lock"
	"github.com/akquise-tool/internal/record"
)

// Tracker persists lock decisions to Postgres so admins can report who was
// blocked where. A nil *Tracker is valid and records nothing.
type Tracker struct {
	db *sql.DB
}

// NewTracker creates a new lock decision tracker.
func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db}
}

// Entry is one recorded lock decision.
type Entry struct {
	ID          int64     `json:"id"`
	AddressKey  string    `json:"address_key"`
	HouseNumber string    `json:"house_number"`
	AgentID     string    `json:"agent_id"`
	Allowed     bool      `json:"allowed"`
	Reason      string    `json:"reason"`
	BlockedBy   string    `json:"blocked_by,omitempty"`
	BlockedByID string    `json:"blocked_by_id,omitempty"`
	BlockedAt   time.Time `json:"blocked_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary aggregates recorded decisions for reporting.
type Summary struct {
	Total        int64            `json:"total"`
	ByReason     map[string]int64 `json:"by_reason"`
	LastDecision time.Time        `json:"last_decision,omitempty"`
}

// EnsureSchema creates the audit table and its index if they do not exist.
func (t *Tracker) EnsureSchema(ctx context.Context) error {
	if t == nil {
		return nil
	}

	_, err := t.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS lock_audit (
			audit_id        bigserial PRIMARY KEY,
			address_key     text NOT NULL,
			house_number    text NOT NULL DEFAULT '',
			agent_id        text NOT NULL,
			allowed         boolean NOT NULL,
			reason          text NOT NULL,
			blocked_by      text NOT NULL DEFAULT '',
			blocked_by_id   text NOT NULL DEFAULT '',
			blocked_at      timestamptz,
			created_at      timestamptz NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create lock_audit table: %w", err)
	}

	_, err = t.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_lock_audit_key
		ON lock_audit (address_key, created_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create lock_audit index: %w", err)
	}
	return nil
}

// RecordLockDecision saves one decision. Failures are logged, never
// returned; auditing must not fail the request being audited.
func (t *Tracker) RecordLockDecision(ctx context.Context, q record.AddressQuery, identity string, d lock.Decision) {
	if t == nil {
		return
	}
	if err := t.insert(ctx, q, identity, d); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"key":   q.Key(),
			"agent": identity,
		}).Error("Failed to record lock decision")
	}
}

func (t *Tracker) insert(ctx context.Context, q record.AddressQuery, identity string, d lock.Decision) error {
	var blockedBy, blockedByID string
	var blockedAt sql.NullTime
	if d.Blocking != nil {
		blockedBy = d.Blocking.CreatedBy
		blockedByID = d.Blocking.ID
		blockedAt = sql.NullTime{Time: d.Blocking.CreatedAt, Valid: true}
	}

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO lock_audit (
			address_key, house_number, agent_id, allowed, reason,
			blocked_by, blocked_by_id, blocked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, q.Key(), q.HouseNumber, identity, d.Allowed, d.Reason,
		blockedBy, blockedByID, blockedAt)

	if err != nil {
		return fmt.Errorf("failed to insert lock decision: %w", err)
	}
	return nil
}

// History returns the most recent decisions for an address key, newest
// first.
func (t *Tracker) History(ctx context.Context, addressKey string, limit int) ([]Entry, error) {
	if t == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := t.db.QueryContext(ctx, `
		SELECT audit_id, address_key, house_number, agent_id, allowed, reason,
		       blocked_by, blocked_by_id, blocked_at, created_at
		FROM lock_audit
		WHERE address_key = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, addressKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query lock history: %w", err)
	}
	defer rows.Close()

	var history []Entry
	for rows.Next() {
		var e Entry
		var blockedAt sql.NullTime

		err := rows.Scan(
			&e.ID,
			&e.AddressKey,
			&e.HouseNumber,
			&e.AgentID,
			&e.Allowed,
			&e.Reason,
			&e.BlockedBy,
			&e.BlockedByID,
			&blockedAt,
			&e.CreatedAt,
		)
		if err != nil {
			log.WithError(err).Warn("Skipping unreadable lock_audit row")
			continue
		}
		if blockedAt.Valid {
			e.BlockedAt = blockedAt.Time
		}
		history = append(history, e)
	}
	return history, rows.Err()
}

// Summarize aggregates all recorded decisions by reason.
func (t *Tracker) Summarize(ctx context.Context) (*Summary, error) {
	if t == nil {
		return &Summary{ByReason: map[string]int64{}}, nil
	}

	rows, err := t.db.QueryContext(ctx, `
		SELECT reason, COUNT(*), MAX(created_at)
		FROM lock_audit
		GROUP BY reason
		ORDER BY reason
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lock decision stats: %w", err)
	}
	defer rows.Close()

	s := &Summary{ByReason: make(map[string]int64)}
	for rows.Next() {
		var reason string
		var count int64
		var last time.Time

		if err := rows.Scan(&reason, &count, &last); err != nil {
			continue
		}
		s.ByReason[reason] = count
		s.Total += count
		if last.After(s.LastDecision) {
			s.LastDecision = last
		}
	}
	return s, rows.Err()
}

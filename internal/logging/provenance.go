package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(ctx context.Context, db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO provenance_log (user_id, inventory, version_id, trigger_type, input_text, observation, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID,
		entry.Inventory,
		nullIfEmpty(entry.VersionID),
		entry.TriggerType,
		nullIfEmpty(entry.InputText),
		nullIfEmpty(entry.ObservationJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}
// #endregion log-decision

// #region read-entries
// ReadEntries returns a user's provenance entries oldest first. When
// sinceReset is set only entries after the user's most recent reset are returned.
func ReadEntries(ctx context.Context, db *sql.DB, userID string, sinceReset bool) ([]ProvenanceEntry, error) {
	var after int64
	if sinceReset {
		var last sql.NullInt64
		err := db.QueryRowContext(ctx,
			`SELECT MAX(id) FROM provenance_log WHERE user_id = ? AND trigger_type = ?`,
			userID, TriggerReset,
		).Scan(&last)
		if err != nil {
			return nil, fmt.Errorf("last reset: %w", err)
		}
		after = last.Int64
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, inventory, version_id, trigger_type, input_text, observation, decision, reason, created_at
		 FROM provenance_log WHERE user_id = ? AND id > ? ORDER BY id ASC`,
		userID, after,
	)
	if err != nil {
		return nil, fmt.Errorf("read provenance: %w", err)
	}
	defer rows.Close()

	var entries []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var versionID, input, obs, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Inventory, &versionID, &e.TriggerType,
			&input, &obs, &e.Decision, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan provenance: %w", err)
		}
		e.VersionID = versionID.String
		e.InputText = input.String
		e.ObservationJSON = obs.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
// #endregion read-entries

// #region recorder
// Recorder writes provenance entries and mirrors them to the structured log.
// A nil db records to the log only.
type Recorder struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRecorder returns a recorder over db.
func NewRecorder(db *sql.DB, log zerolog.Logger) *Recorder {
	return &Recorder{db: db, log: log.With().Str("component", "provenance").Logger()}
}

// Record logs entry. Persistence failures are logged, not returned: the
// provenance trail never blocks a turn.
func (r *Recorder) Record(ctx context.Context, entry ProvenanceEntry) {
	r.log.Debug().
		Str("user", entry.UserID).
		Str("inventory", entry.Inventory).
		Str("decision", entry.Decision).
		Str("version", entry.VersionID).
		Msg(entry.Reason)
	if r.db == nil {
		return
	}
	if err := LogDecision(ctx, r.db, entry); err != nil {
		r.log.Warn().Err(err).Msg("provenance write failed")
	}
}
// #endregion recorder

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers

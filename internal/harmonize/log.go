package harmonize

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harmon-data/harmon/internal/catalog"
)

// LogEntry is one recorded step execution. It owns the change records
// written at apply time; Reverted toggles between the applied and reverted
// states of the undo/redo state machine.
type LogEntry struct {
	ID             int64     `json:"id"`
	StepID         string    `json:"step_id"`
	StepName       string    `json:"step_name"`
	RecordsUpdated int       `json:"records_updated"`
	FieldsModified []string  `json:"fields_modified"`
	Details        string    `json:"details,omitempty"`
	Reverted       bool      `json:"reverted"`
	ExecutedAt     time.Time `json:"executed_at"`
}

// insertLog writes a log entry and its change records inside the caller's
// transaction, so the entry can never exist without its changes.
func insertLog(ctx context.Context, tx catalog.DBTX, entry *LogEntry, changes []Change) (int64, error) {
	fieldsJSON, err := json.Marshal(entry.FieldsModified)
	if err != nil {
		return 0, fmt.Errorf("insert log: marshal fields: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO harmonization_logs
		(step_id, step_name, records_updated, fields_modified, details, reverted, executed_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`,
		entry.StepID,
		entry.StepName,
		entry.RecordsUpdated,
		string(fieldsJSON),
		entry.Details,
		entry.ExecutedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("insert log: %w", err)
	}
	logID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert log: last insert id: %w", err)
	}

	for _, c := range changes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO harmonization_changes (log_id, record_id, field, old_value, new_value)
			VALUES (?, ?, ?, ?, ?)
		`, logID, c.RecordID, c.Field, c.OldValue, c.NewValue)
		if err != nil {
			return 0, fmt.Errorf("insert change record: %w", err)
		}
	}

	return logID, nil
}

func scanLogEntry(row interface{ Scan(...any) error }) (LogEntry, error) {
	var entry LogEntry
	var fieldsJSON, executedAt string
	var details sql.NullString
	if err := row.Scan(
		&entry.ID, &entry.StepID, &entry.StepName, &entry.RecordsUpdated,
		&fieldsJSON, &details, &entry.Reverted, &executedAt,
	); err != nil {
		return LogEntry{}, err
	}
	entry.Details = details.String
	if err := json.Unmarshal([]byte(fieldsJSON), &entry.FieldsModified); err != nil {
		return LogEntry{}, fmt.Errorf("unmarshal fields_modified: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, executedAt); err == nil {
		entry.ExecutedAt = t
	}
	return entry, nil
}

const logColumns = `id, step_id, step_name, records_updated, fields_modified, details, reverted, executed_at`

// getLog loads one log entry, or catalog.ErrNotFound.
func getLog(ctx context.Context, db catalog.DBTX, logID int64) (LogEntry, error) {
	row := db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM harmonization_logs WHERE id = ?", logColumns), logID)
	entry, err := scanLogEntry(row)
	if err == sql.ErrNoRows {
		return LogEntry{}, fmt.Errorf("harmonization log %d: %w", logID, catalog.ErrNotFound)
	}
	if err != nil {
		return LogEntry{}, fmt.Errorf("get harmonization log %d: %w", logID, err)
	}
	return entry, nil
}

// getChanges loads the change records of one log entry in insertion order.
func getChanges(ctx context.Context, db catalog.DBTX, logID int64) ([]Change, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT record_id, field, old_value, new_value
		FROM harmonization_changes WHERE log_id = ? ORDER BY id ASC
	`, logID)
	if err != nil {
		return nil, fmt.Errorf("get changes for log %d: %w", logID, err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var c Change
		if err := rows.Scan(&c.RecordID, &c.Field, &c.OldValue, &c.NewValue); err != nil {
			return nil, fmt.Errorf("scan change record: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change records: %w", err)
	}
	return changes, nil
}

// setReverted flips the entry's reverted flag inside the caller's
// transaction, guarded on the expected current state so two concurrent
// undos cannot both proceed. Returns false when the entry was not in the
// expected state.
func setReverted(ctx context.Context, tx catalog.DBTX, logID int64, reverted bool) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE harmonization_logs SET reverted = ? WHERE id = ? AND reverted = ?
	`, reverted, logID, !reverted)
	if err != nil {
		return false, fmt.Errorf("set reverted on log %d: %w", logID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set reverted on log %d: rows affected: %w", logID, err)
	}
	return n > 0, nil
}

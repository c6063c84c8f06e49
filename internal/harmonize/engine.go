package harmonize

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/harmon-data/harmon/internal/catalog"
	"github.com/harmon-data/harmon/internal/store"
)

// sampleSize is how many changes a preview includes as a readable sample
// alongside the full change list.
const sampleSize = 10

// Engine executes harmonization steps against the catalog and maintains
// the audit log.
//
// Every apply, undo, and redo runs as one transaction: either all computed
// field mutations and the audit writes commit together, or none do.
// Concurrent applies of the same step against overlapping records are the
// caller's race to avoid; the engine only guards the audit log's reverted
// flag transitions.
type Engine struct {
	store   *store.Store
	catalog *catalog.Repository
	rules   RuleSource
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow overrides the engine's clock. Used by tests for stable
// executed_at values.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a harmonization engine.
func NewEngine(st *store.Store, cat *catalog.Repository, ruleSrc RuleSource, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		catalog: cat,
		rules:   ruleSrc,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// loadEnv snapshots the state one step run observes: the full catalog in
// id order plus the current export-header revision.
func (e *Engine) loadEnv(ctx context.Context) (*env, error) {
	products, err := e.catalog.All(ctx)
	if err != nil {
		return nil, err
	}
	rev, err := e.ExportRevision(ctx)
	if err != nil {
		return nil, err
	}
	return &env{
		products:        products,
		rules:           e.rules,
		exportCorrected: rev >= ExportRevisionCorrected,
	}, nil
}

// Preview describes what one step would change, without persisting.
type Preview struct {
	StepID        string   `json:"step_id"`
	StepName      string   `json:"step_name"`
	Description   string   `json:"description"`
	TotalAffected int      `json:"total_affected"`
	Changes       []Change `json:"changes"`
	SampleChanges []Change `json:"sample_changes"`
	Details       string   `json:"details,omitempty"`
}

// Preview computes a step's change list in dry-run mode.
// An unknown step ID is rejected before execution.
func (e *Engine) Preview(ctx context.Context, stepID string) (*Preview, error) {
	def, ok := LookupStep(stepID)
	if !ok {
		return nil, NewUnknownStepError(stepID)
	}

	stepEnv, err := e.loadEnv(ctx)
	if err != nil {
		return nil, err
	}
	changes, details, err := def.run(ctx, stepEnv)
	if err != nil {
		return nil, err
	}

	return &Preview{
		StepID:        def.ID,
		StepName:      def.Name,
		Description:   def.Description,
		TotalAffected: len(distinctRecords(changes)),
		Changes:       changes,
		SampleChanges: sample(changes),
		Details:       details,
	}, nil
}

// ApplyResult reports one persisted step execution.
type ApplyResult struct {
	StepID         string   `json:"step_id"`
	StepName       string   `json:"step_name"`
	RecordsUpdated int      `json:"records_updated"`
	FieldsModified []string `json:"fields_modified"`
	LogID          int64    `json:"log_id"`
	Details        string   `json:"details,omitempty"`
}

// Apply computes a step's changes, persists the new field values, and logs
// the execution with its change records. Applying the same step again
// immediately produces zero changes: each step's output is its own fixed
// point.
func (e *Engine) Apply(ctx context.Context, stepID string) (*ApplyResult, error) {
	def, ok := LookupStep(stepID)
	if !ok {
		return nil, NewUnknownStepError(stepID)
	}

	stepEnv, err := e.loadEnv(ctx)
	if err != nil {
		return nil, err
	}
	changes, details, err := def.run(ctx, stepEnv)
	if err != nil {
		return nil, err
	}

	records := distinctRecords(changes)
	entry := &LogEntry{
		StepID:         def.ID,
		StepName:       def.Name,
		RecordsUpdated: len(records),
		FieldsModified: distinctFields(changes),
		Details:        details,
		ExecutedAt:     e.now(),
	}

	var logID int64
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, c := range changes {
			if _, err := e.catalog.SetField(ctx, tx, c.RecordID, c.Field, c.NewValue); err != nil {
				return err
			}
		}
		id, err := insertLog(ctx, tx, entry, changes)
		if err != nil {
			return err
		}
		logID = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", def.ID, err)
	}

	e.logger.Info("harmonization step applied",
		"step", def.ID,
		"records_updated", len(records),
		"changes", len(changes),
		"log_id", logID,
	)

	return &ApplyResult{
		StepID:         def.ID,
		StepName:       def.Name,
		RecordsUpdated: len(records),
		FieldsModified: entry.FieldsModified,
		LogID:          logID,
		Details:        details,
	}, nil
}

// ApplyAll runs every step in declared order, logging each independently.
// Later steps observe the effects of earlier ones: the environment is
// reloaded per step.
func (e *Engine) ApplyAll(ctx context.Context) ([]ApplyResult, error) {
	ordered := make([]StepDefinition, len(Steps))
	copy(ordered, Steps)
	// Order is declared explicitly on the definitions; do not trust slice
	// position.
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].Order < ordered[i].Order {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}

	results := make([]ApplyResult, 0, len(ordered))
	for _, def := range ordered {
		res, err := e.Apply(ctx, def.ID)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

// RevertResult reports one undo or redo.
type RevertResult struct {
	LogID           int64 `json:"log_id"`
	RecordsRestored int   `json:"records_restored"`
	ChangesSkipped  int   `json:"changes_skipped"`
}

// Undo restores every change record of an applied log entry to its old
// value and marks the entry reverted.
//
// Valid only from the applied state. An entry that reports updated records
// but holds zero change records is inconsistent and is rejected without
// mutating anything. Records deleted since the apply are skipped; the
// restored count may be lower than the original.
func (e *Engine) Undo(ctx context.Context, logID int64) (*RevertResult, error) {
	entry, err := getLog(ctx, e.store.DB(), logID)
	if err != nil {
		return nil, err
	}
	if entry.Reverted {
		return nil, &ConflictError{
			Code:    CodeAlreadyReverted,
			Message: "log entry is already reverted; redo it before undoing again",
			LogID:   logID,
		}
	}

	changes, err := getChanges(ctx, e.store.DB(), logID)
	if err != nil {
		return nil, err
	}
	if entry.RecordsUpdated > 0 && len(changes) == 0 {
		return nil, &ConflictError{
			Code:    CodeInconsistentLog,
			Message: fmt.Sprintf("log entry reports %d updated records but holds no change records", entry.RecordsUpdated),
			LogID:   logID,
		}
	}

	result, err := e.replay(ctx, logID, changes, true)
	if err != nil {
		return nil, err
	}

	e.logger.Info("harmonization step undone",
		"step", entry.StepID,
		"log_id", logID,
		"records_restored", result.RecordsRestored,
		"changes_skipped", result.ChangesSkipped,
	)
	return result, nil
}

// Redo reapplies every change record's new value on a reverted entry and
// marks it applied again.
func (e *Engine) Redo(ctx context.Context, logID int64) (*RevertResult, error) {
	entry, err := getLog(ctx, e.store.DB(), logID)
	if err != nil {
		return nil, err
	}
	if !entry.Reverted {
		return nil, &ConflictError{
			Code:    CodeNotReverted,
			Message: "log entry is not reverted; only reverted entries can be redone",
			LogID:   logID,
		}
	}

	changes, err := getChanges(ctx, e.store.DB(), logID)
	if err != nil {
		return nil, err
	}

	result, err := e.replay(ctx, logID, changes, false)
	if err != nil {
		return nil, err
	}

	e.logger.Info("harmonization step redone",
		"step", entry.StepID,
		"log_id", logID,
		"records_restored", result.RecordsRestored,
		"changes_skipped", result.ChangesSkipped,
	)
	return result, nil
}

// replay writes either the old (undo) or new (redo) side of every change
// record and flips the reverted flag, all in one transaction. The flag
// update is guarded on the expected current state, so a concurrent
// undo/redo of the same entry loses cleanly.
func (e *Engine) replay(ctx context.Context, logID int64, changes []Change, toReverted bool) (*RevertResult, error) {
	result := &RevertResult{LogID: logID}
	restored := map[int64]bool{}

	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		ok, err := setReverted(ctx, tx, logID, toReverted)
		if err != nil {
			return err
		}
		if !ok {
			code, msg := CodeAlreadyReverted, "log entry is already reverted"
			if !toReverted {
				code, msg = CodeNotReverted, "log entry is not reverted"
			}
			return &ConflictError{Code: code, Message: msg, LogID: logID}
		}

		for _, c := range changes {
			value := c.OldValue
			if !toReverted {
				value = c.NewValue
			}
			exists, err := e.catalog.SetField(ctx, tx, c.RecordID, c.Field, value)
			if err != nil {
				return err
			}
			if exists {
				restored[c.RecordID] = true
			} else {
				result.ChangesSkipped++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.RecordsRestored = len(restored)
	return result, nil
}

// History returns log entries, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := e.store.DB().QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM harmonization_logs ORDER BY id DESC LIMIT ?", logColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate: %w", err)
	}
	if entries == nil {
		entries = []LogEntry{}
	}
	return entries, nil
}

// Changes returns the change records of one log entry.
func (e *Engine) Changes(ctx context.Context, logID int64) ([]Change, error) {
	if _, err := getLog(ctx, e.store.DB(), logID); err != nil {
		return nil, err
	}
	return getChanges(ctx, e.store.DB(), logID)
}

// ExportRevision returns the active export-header revision, derived from
// the audit log: corrected while any un-reverted fix_export_typos
// application exists.
func (e *Engine) ExportRevision(ctx context.Context) (int, error) {
	var active bool
	err := e.store.DB().QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM harmonization_logs
			WHERE step_id = 'fix_export_typos' AND reverted = 0
		)
	`).Scan(&active)
	if err != nil {
		return 0, fmt.Errorf("export revision: %w", err)
	}
	if active {
		return ExportRevisionCorrected, nil
	}
	return ExportRevisionImported, nil
}

func sample(changes []Change) []Change {
	if len(changes) <= sampleSize {
		out := make([]Change, len(changes))
		copy(out, changes)
		return out
	}
	out := make([]Change, sampleSize)
	copy(out, changes[:sampleSize])
	return out
}

func distinctRecords(changes []Change) map[int64]bool {
	m := map[int64]bool{}
	for _, c := range changes {
		m[c.RecordID] = true
	}
	return m
}

func distinctFields(changes []Change) []string {
	seen := map[string]bool{}
	var fields []string
	for _, c := range changes {
		if !seen[c.Field] {
			seen[c.Field] = true
			fields = append(fields, c.Field)
		}
	}
	if fields == nil {
		fields = []string{}
	}
	return fields
}

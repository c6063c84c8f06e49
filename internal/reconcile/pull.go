package reconcile

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harmon-data/harmon/internal/remote"
	"github.com/harmon-data/harmon/internal/store"
)

// compareFields is the fixed set a pull diffs, in diff order.
var compareFields = []string{"name", "price", "stock", "sku", "status"}

// AdapterFactory builds the adapter for a store connection. Tests swap in
// fakes here.
type AdapterFactory func(cfg remote.Config, opts remote.Options) (remote.Adapter, error)

// Engine runs pulls and writes their sync log trail.
type Engine struct {
	store    *store.Store
	stores   *Stores
	adapters AdapterFactory
	opts     remote.Options
	logger   *slog.Logger
	now      func() time.Time
	newToken func() string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithAdapterFactory overrides how adapters are built.
func WithAdapterFactory(f AdapterFactory) EngineOption {
	return func(e *Engine) {
		e.adapters = f
	}
}

// WithNow overrides the engine's clock.
func WithNow(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a reconciliation engine.
func NewEngine(st *store.Store, stores *Stores, opts remote.Options, logger *slog.Logger, engineOpts ...EngineOption) *Engine {
	if opts.Logger == nil {
		opts.Logger = logger
	}
	e := &Engine{
		store:    st,
		stores:   stores,
		adapters: remote.New,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		newToken: func() string { return uuid.NewString() },
	}
	for _, opt := range engineOpts {
		opt(e)
	}
	return e
}

// PullResult summarizes one pull run.
type PullResult struct {
	StoreID     int64  `json:"store_id"`
	RunToken    string `json:"run_token"`
	Page        int    `json:"page"`
	Fetched     int    `json:"fetched"`
	Skipped     int    `json:"skipped"`
	NewMappings int    `json:"new_mappings"`
	Enqueued    int    `json:"enqueued"`
	Deduped     int    `json:"deduped"`
	Updated     int    `json:"snapshots_updated"`
}

// Pull fetches one page from a store and reconciles it.
//
// A fetch failure writes an error-status sync log entry and returns the
// error; nothing else is touched. Each fetched product reconciles in its
// own transaction: mapping creation or snapshot refresh and the queue
// insert commit together.
func (e *Engine) Pull(ctx context.Context, storeID int64, page, perPage int) (*PullResult, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}

	conn, err := e.stores.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}
	adapter, err := e.adapters(conn.RemoteConfig(), e.opts)
	if err != nil {
		return nil, fmt.Errorf("build %s adapter: %w", conn.Platform, err)
	}

	result := &PullResult{
		StoreID:  storeID,
		RunToken: e.newToken(),
		Page:     page,
	}

	products, err := adapter.FetchProducts(ctx, page, perPage)
	if err != nil {
		if logErr := e.writeLog(ctx, storeID, result.RunToken, "error", 0, err.Error(), false); logErr != nil {
			e.logger.Error("record pull failure", "store", storeID, "error", logErr)
		}
		return nil, fmt.Errorf("pull store %d page %d: %w", storeID, page, err)
	}
	result.Fetched = len(products)

	for i := range products {
		p := &products[i]
		if p.CanonicalURL == "" {
			result.Skipped++
			continue
		}
		if err := e.reconcileProduct(ctx, storeID, p, result); err != nil {
			return nil, fmt.Errorf("reconcile %q: %w", p.CanonicalURL, err)
		}
	}

	details, _ := json.Marshal(result)
	if err := e.writeLog(ctx, storeID, result.RunToken, "success", result.Fetched, string(details), true); err != nil {
		return nil, err
	}

	e.logger.Info("pull completed",
		"store", storeID,
		"run", result.RunToken,
		"fetched", result.Fetched,
		"skipped", result.Skipped,
		"new_mappings", result.NewMappings,
		"enqueued", result.Enqueued,
		"deduped", result.Deduped,
	)
	return result, nil
}

// reconcileProduct handles one remote product in one transaction.
func (e *Engine) reconcileProduct(ctx context.Context, storeID int64, p *remote.Product, result *PullResult) error {
	nowStr := e.now().UTC().Format(time.RFC3339)

	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT "+mappingColumns+" FROM sync_mappings WHERE store_id = ? AND canonical_url = ?",
			storeID, p.CanonicalURL)
		mapping, err := scanMapping(row)
		if err == sql.ErrNoRows {
			return e.createMapping(ctx, tx, storeID, p, nowStr, result)
		}
		if err != nil {
			return fmt.Errorf("lookup mapping: %w", err)
		}

		// Diff previous snapshot against non-blank fetched values.
		snapshot := mapping.snapshot()
		fetched := map[string]string{
			"name":   p.Name,
			"price":  p.Price,
			"stock":  p.Stock,
			"sku":    p.SKU,
			"status": p.Status,
		}
		for _, field := range compareFields {
			newValue := fetched[field]
			if newValue == "" || newValue == snapshot[field] {
				continue
			}
			inserted, err := insertPending(ctx, tx, &QueueItem{
				StoreID:      storeID,
				MappingID:    mapping.ID,
				Direction:    "pull",
				ProductName:  p.Name,
				CanonicalURL: p.CanonicalURL,
				Field:        field,
				LocalValue:   snapshot[field],
				RemoteValue:  newValue,
			}, nowStr)
			if err != nil {
				return err
			}
			if inserted {
				result.Enqueued++
			} else {
				result.Deduped++
			}
		}

		return e.refreshSnapshot(ctx, tx, mapping.ID, p, fetched, nowStr, result)
	})
}

// createMapping inserts a pending mapping plus its new_product queue item.
func (e *Engine) createMapping(ctx context.Context, tx *sql.Tx, storeID int64, p *remote.Product, nowStr string, result *PullResult) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sync_mappings
			(store_id, remote_product_id, canonical_url, remote_sku,
			 remote_name, remote_price, remote_stock, remote_status,
			 remote_data, sync_status, last_synced_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)
	`, storeID, p.RemoteID, p.CanonicalURL, p.SKU, p.Name, p.Price, p.Stock,
		p.Status, string(p.Raw), nowStr, nowStr)
	if err != nil {
		return fmt.Errorf("create mapping: %w", err)
	}
	mappingID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	inserted, err := insertPending(ctx, tx, &QueueItem{
		StoreID:      storeID,
		MappingID:    mappingID,
		Direction:    "pull",
		ProductName:  p.Name,
		CanonicalURL: p.CanonicalURL,
		Field:        FieldNewProduct,
		RemoteValue:  p.Name,
	}, nowStr)
	if err != nil {
		return err
	}
	if inserted {
		result.Enqueued++
	}
	result.NewMappings++
	return nil
}

// refreshSnapshot writes every non-blank fetched value onto the mapping.
// This runs even when nothing was enqueued, so the next diff compares
// against the latest truth.
func (e *Engine) refreshSnapshot(ctx context.Context, tx *sql.Tx, mappingID int64, p *remote.Product, fetched map[string]string, nowStr string, result *PullResult) error {
	set := map[string]string{
		"remote_name":   fetched["name"],
		"remote_price":  fetched["price"],
		"remote_stock":  fetched["stock"],
		"remote_sku":    fetched["sku"],
		"remote_status": fetched["status"],
	}
	query := "UPDATE sync_mappings SET last_synced_at = ?"
	args := []any{nowStr}
	// The identifier and raw payload get the same non-blank guard as the
	// compared fields: a transiently empty fetch must not erase them.
	if p.RemoteID != "" {
		query += ", remote_product_id = ?"
		args = append(args, p.RemoteID)
	}
	if len(p.Raw) > 0 {
		query += ", remote_data = ?"
		args = append(args, string(p.Raw))
	}
	for _, col := range []string{"remote_name", "remote_price", "remote_stock", "remote_sku", "remote_status"} {
		if set[col] == "" {
			continue
		}
		query += ", " + col + " = ?"
		args = append(args, set[col])
	}
	query += " WHERE id = ?"
	args = append(args, mappingID)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("refresh snapshot: %w", err)
	}
	result.Updated++
	return nil
}

// insertPending creates a pending queue item unless one already exists
// for the same (mapping, field). The WHERE NOT EXISTS guard runs inside
// the caller's transaction, so repeated pulls of an unchanged remote set
// against an unresolved queue add nothing.
func insertPending(ctx context.Context, tx *sql.Tx, item *QueueItem, nowStr string) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sync_queue
			(store_id, mapping_id, direction, product_name, canonical_url,
			 field, local_value, remote_value, status, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?
		WHERE NOT EXISTS (
			SELECT 1 FROM sync_queue
			WHERE mapping_id = ? AND field = ? AND status = 'pending'
		)
	`, item.StoreID, item.MappingID, item.Direction, item.ProductName,
		item.CanonicalURL, item.Field, item.LocalValue, item.RemoteValue,
		nowStr, item.MappingID, item.Field)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", item.Field, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// writeLog records one sync log entry, optionally advancing the store's
// last_sync_at in the same transaction.
func (e *Engine) writeLog(ctx context.Context, storeID int64, token, status string, affected int, details string, touchStore bool) error {
	nowStr := e.now().UTC().Format(time.RFC3339)
	return e.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_logs
				(store_id, run_token, action, status, records_affected, details, executed_at)
			VALUES (?, ?, 'pull', ?, ?, ?, ?)
		`, storeID, token, status, affected, details, nowStr)
		if err != nil {
			return fmt.Errorf("write sync log: %w", err)
		}
		if touchStore {
			if _, err := tx.ExecContext(ctx,
				"UPDATE store_connections SET last_sync_at = ? WHERE id = ?",
				nowStr, storeID); err != nil {
				return fmt.Errorf("update last_sync_at: %w", err)
			}
		}
		return nil
	})
}

// SyncLogEntry is one recorded sync operation.
type SyncLogEntry struct {
	ID              int64     `json:"id"`
	StoreID         int64     `json:"store_id"`
	RunToken        string    `json:"run_token"`
	Action          string    `json:"action"`
	Status          string    `json:"status"`
	RecordsAffected int       `json:"records_affected"`
	Details         string    `json:"details"`
	ExecutedAt      time.Time `json:"executed_at"`
}

// Logs returns a store's sync log entries, newest first.
func (e *Engine) Logs(ctx context.Context, storeID int64, limit int) ([]SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := e.store.DB().QueryContext(ctx, `
		SELECT id, store_id, run_token, action, status, records_affected, details, executed_at
		FROM sync_logs
		WHERE store_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, storeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync logs: %w", err)
	}
	defer rows.Close()

	var entries []SyncLogEntry
	for rows.Next() {
		var (
			entry    SyncLogEntry
			executed string
		)
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.RunToken,
			&entry.Action, &entry.Status, &entry.RecordsAffected,
			&entry.Details, &executed); err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}
		t, err := time.Parse(time.RFC3339, executed)
		if err != nil {
			return nil, fmt.Errorf("parse executed_at: %w", err)
		}
		entry.ExecutedAt = t
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync logs: %w", err)
	}
	if entries == nil {
		entries = []SyncLogEntry{}
	}
	return entries, nil
}

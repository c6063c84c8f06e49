package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Queue item statuses. Approved and rejected are terminal.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// FieldNewProduct marks the queue item created alongside a new mapping.
const FieldNewProduct = "new_product"

// QueueItem is one proposed change awaiting operator review.
type QueueItem struct {
	ID           int64     `json:"id"`
	StoreID      int64     `json:"store_id"`
	MappingID    int64     `json:"mapping_id,omitempty"`
	Direction    string    `json:"direction"`
	ProductName  string    `json:"product_name"`
	CanonicalURL string    `json:"canonical_url"`
	Field        string    `json:"field"`
	LocalValue   string    `json:"local_value"`
	RemoteValue  string    `json:"remote_value"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	ResolvedAt   time.Time `json:"resolved_at,omitzero"`
}

// Queue persists and resolves sync queue items.
type Queue struct {
	db  *sql.DB
	now func() time.Time
}

// NewQueue creates the queue repository.
func NewQueue(db *sql.DB) *Queue {
	return &Queue{db: db, now: time.Now}
}

const queueColumns = `id, store_id, COALESCE(mapping_id, 0), direction,
	product_name, canonical_url, field, local_value, remote_value, status,
	created_at, resolved_at`

func scanQueueItem(row rowScanner) (*QueueItem, error) {
	var (
		item     QueueItem
		created  string
		resolved sql.NullString
	)
	err := row.Scan(&item.ID, &item.StoreID, &item.MappingID, &item.Direction,
		&item.ProductName, &item.CanonicalURL, &item.Field, &item.LocalValue,
		&item.RemoteValue, &item.Status, &created, &resolved)
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	item.CreatedAt = t
	if resolved.Valid && resolved.String != "" {
		t, err := time.Parse(time.RFC3339, resolved.String)
		if err != nil {
			return nil, fmt.Errorf("parse resolved_at: %w", err)
		}
		item.ResolvedAt = t
	}
	return &item, nil
}

// Get returns one queue item.
func (q *Queue) Get(ctx context.Context, id int64) (*QueueItem, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+queueColumns+" FROM sync_queue WHERE id = ?", id)
	item, err := scanQueueItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("queue item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item %d: %w", id, err)
	}
	return item, nil
}

// List returns a store's queue items, newest first. An empty status
// returns every item.
func (q *Queue) List(ctx context.Context, storeID int64, status string) ([]QueueItem, error) {
	query := "SELECT " + queueColumns + " FROM sync_queue WHERE store_id = ?"
	args := []any{storeID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id DESC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	if items == nil {
		items = []QueueItem{}
	}
	return items, nil
}

// Approve moves a pending item to approved. Approval authorizes the
// remote value; nothing is written back to the catalog here.
func (q *Queue) Approve(ctx context.Context, id int64) error {
	return q.resolve(ctx, id, StatusApproved)
}

// Reject moves a pending item to rejected.
func (q *Queue) Reject(ctx context.Context, id int64) error {
	return q.resolve(ctx, id, StatusRejected)
}

// resolve performs the pending -> terminal transition. The status guard
// in the UPDATE makes the transition single-shot: a second resolution
// attempt affects zero rows and is reported as a conflict.
func (q *Queue) resolve(ctx context.Context, id int64, status string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET status = ?, resolved_at = ?
		WHERE id = ? AND status = ?
	`, status, q.now().UTC().Format(time.RFC3339), id, StatusPending)
	if err != nil {
		return fmt.Errorf("resolve queue item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	item, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	return &ConflictError{
		Code:    CodeAlreadyResolved,
		Message: fmt.Sprintf("queue item is %s, not pending", item.Status),
		ItemID:  id,
	}
}

// BulkResolve moves every pending item of a store to the given terminal
// status and returns how many items it touched.
func (q *Queue) BulkResolve(ctx context.Context, storeID int64, status string) (int64, error) {
	if status != StatusApproved && status != StatusRejected {
		return 0, fmt.Errorf("invalid resolution status %q", status)
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET status = ?, resolved_at = ?
		WHERE store_id = ? AND status = ?
	`, status, q.now().UTC().Format(time.RFC3339), storeID, StatusPending)
	if err != nil {
		return 0, fmt.Errorf("bulk resolve store %d: %w", storeID, err)
	}
	return res.RowsAffected()
}

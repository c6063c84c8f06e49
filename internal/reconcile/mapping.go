package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Mapping ties a remote product (by canonical URL) to the local catalog
// and carries the last-seen snapshot of its compared fields.
type Mapping struct {
	ID              int64     `json:"id"`
	StoreID         int64     `json:"store_id"`
	LocalProductID  int64     `json:"local_product_id,omitempty"`
	RemoteProductID string    `json:"remote_product_id"`
	CanonicalURL    string    `json:"canonical_url"`
	RemoteSKU       string    `json:"remote_sku"`
	RemoteName      string    `json:"remote_name"`
	RemotePrice     string    `json:"remote_price"`
	RemoteStock     string    `json:"remote_stock"`
	RemoteStatus    string    `json:"remote_status"`
	SyncStatus      string    `json:"sync_status"`
	LastSyncedAt    time.Time `json:"last_synced_at,omitzero"`
	CreatedAt       time.Time `json:"created_at"`
}

// snapshot exposes the compared fields by their queue field names.
func (m *Mapping) snapshot() map[string]string {
	return map[string]string{
		"name":   m.RemoteName,
		"price":  m.RemotePrice,
		"stock":  m.RemoteStock,
		"sku":    m.RemoteSKU,
		"status": m.RemoteStatus,
	}
}

const mappingColumns = `id, store_id, COALESCE(local_product_id, 0),
	remote_product_id, canonical_url, remote_sku, remote_name, remote_price,
	remote_stock, remote_status, sync_status, last_synced_at, created_at`

func scanMapping(row rowScanner) (*Mapping, error) {
	var (
		m       Mapping
		synced  sql.NullString
		created string
	)
	err := row.Scan(&m.ID, &m.StoreID, &m.LocalProductID, &m.RemoteProductID,
		&m.CanonicalURL, &m.RemoteSKU, &m.RemoteName, &m.RemotePrice,
		&m.RemoteStock, &m.RemoteStatus, &m.SyncStatus, &synced, &created)
	if err != nil {
		return nil, err
	}
	if synced.Valid && synced.String != "" {
		t, err := time.Parse(time.RFC3339, synced.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_synced_at: %w", err)
		}
		m.LastSyncedAt = t
	}
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	m.CreatedAt = t
	return &m, nil
}

// Mappings reads sync mappings. Writes happen inside the pull engine's
// transactions.
type Mappings struct {
	db *sql.DB
}

// NewMappings creates the mapping repository.
func NewMappings(db *sql.DB) *Mappings {
	return &Mappings{db: db}
}

// ByStore returns a store's mappings in creation order.
func (r *Mappings) ByStore(ctx context.Context, storeID int64) ([]Mapping, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+mappingColumns+" FROM sync_mappings WHERE store_id = ? ORDER BY id ASC",
		storeID)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		mappings = append(mappings, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mappings: %w", err)
	}
	if mappings == nil {
		mappings = []Mapping{}
	}
	return mappings, nil
}

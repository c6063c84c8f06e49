package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harmon-data/harmon/internal/remote"
)

// StoreConnection is one configured remote store.
type StoreConnection struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Platform      string    `json:"platform"`
	BaseURL       string    `json:"base_url"`
	APIKey        string    `json:"-"`
	APISecret     string    `json:"-"`
	AccessToken   string    `json:"-"`
	AdapterConfig string    `json:"adapter_config,omitempty"`
	IsActive      bool      `json:"is_active"`
	SyncDirection string    `json:"sync_direction"`
	LastSyncAt    time.Time `json:"last_sync_at,omitzero"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RemoteConfig translates the connection into adapter credentials.
func (c *StoreConnection) RemoteConfig() remote.Config {
	return remote.Config{
		Platform:      c.Platform,
		BaseURL:       c.BaseURL,
		APIKey:        c.APIKey,
		APISecret:     c.APISecret,
		AccessToken:   c.AccessToken,
		CustomHeaders: c.AdapterConfig,
	}
}

// Stores persists store connections.
type Stores struct {
	db *sql.DB
}

// NewStores creates the store connection repository.
func NewStores(db *sql.DB) *Stores {
	return &Stores{db: db}
}

const storeColumns = `id, name, platform, base_url, api_key, api_secret,
	access_token, adapter_config, is_active, sync_direction, last_sync_at,
	notes, created_at`

// Create validates the platform and persists a new connection.
func (s *Stores) Create(ctx context.Context, conn *StoreConnection) (int64, error) {
	supported := false
	for _, p := range remote.Platforms {
		if conn.Platform == p {
			supported = true
			break
		}
	}
	if !supported {
		return 0, fmt.Errorf("unsupported platform %q", conn.Platform)
	}
	if conn.SyncDirection == "" {
		conn.SyncDirection = "bidirectional"
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO store_connections
			(name, platform, base_url, api_key, api_secret, access_token,
			 adapter_config, is_active, sync_direction, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
	`, conn.Name, conn.Platform, conn.BaseURL, conn.APIKey, conn.APISecret,
		conn.AccessToken, conn.AdapterConfig, conn.SyncDirection, conn.Notes,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("create store connection: %w", err)
	}
	return res.LastInsertId()
}

// Get returns one connection by ID.
func (s *Stores) Get(ctx context.Context, id int64) (*StoreConnection, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+storeColumns+" FROM store_connections WHERE id = ?", id)
	conn, err := scanStore(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store connection %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get store connection %d: %w", id, err)
	}
	return conn, nil
}

// List returns all connections, oldest first.
func (s *Stores) List(ctx context.Context) ([]StoreConnection, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+storeColumns+" FROM store_connections ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("list store connections: %w", err)
	}
	defer rows.Close()

	var conns []StoreConnection
	for rows.Next() {
		conn, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan store connection: %w", err)
		}
		conns = append(conns, *conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate store connections: %w", err)
	}
	if conns == nil {
		conns = []StoreConnection{}
	}
	return conns, nil
}

// Delete removes a connection. Mappings, queue items, and sync logs for
// the store go with it through the schema's cascades.
func (s *Stores) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM store_connections WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete store connection %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("store connection %d: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStore(row rowScanner) (*StoreConnection, error) {
	var (
		conn     StoreConnection
		active   int
		lastSync sql.NullString
		created  string
	)
	err := row.Scan(&conn.ID, &conn.Name, &conn.Platform, &conn.BaseURL,
		&conn.APIKey, &conn.APISecret, &conn.AccessToken, &conn.AdapterConfig,
		&active, &conn.SyncDirection, &lastSync, &conn.Notes, &created)
	if err != nil {
		return nil, err
	}
	conn.IsActive = active != 0
	if lastSync.Valid && lastSync.String != "" {
		t, err := time.Parse(time.RFC3339, lastSync.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_sync_at: %w", err)
		}
		conn.LastSyncAt = t
	}
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	conn.CreatedAt = t
	return &conn, nil
}

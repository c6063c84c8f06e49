package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{
		"products", "normalization_rules",
		"harmonization_logs", "harmonization_changes",
		"store_connections", "sync_mappings", "sync_queue", "sync_logs",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestOpen_ForeignKeysEnabled(t *testing.T) {
	s := createTestStore(t)

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("read foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Error("foreign_keys pragma is not enabled")
	}
}

func TestWithTx_Commits(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO products (product_name) VALUES (?)", "widget")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() failed: %v", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO products (product_name) VALUES (?)", "widget"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want %v", err, boom)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 after rollback", count)
	}
}

func TestCascade_StoreDeletion(t *testing.T) {
	s := createTestStore(t)

	mustExec := func(q string, args ...any) {
		t.Helper()
		if _, err := s.db.Exec(q, args...); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}

	mustExec(`INSERT INTO store_connections (id, name, platform, base_url, created_at)
		VALUES (1, 'shop', 'woocommerce', 'https://example.com', '2026-01-01T00:00:00Z')`)
	mustExec(`INSERT INTO sync_mappings (id, store_id, canonical_url, created_at)
		VALUES (10, 1, 'https://example.com/p/1', '2026-01-01T00:00:00Z')`)
	mustExec(`INSERT INTO sync_queue (store_id, mapping_id, field, created_at)
		VALUES (1, 10, 'price', '2026-01-01T00:00:00Z')`)
	mustExec(`INSERT INTO sync_logs (store_id, action, status, executed_at)
		VALUES (1, 'pull', 'success', '2026-01-01T00:00:00Z')`)

	mustExec("DELETE FROM store_connections WHERE id = 1")

	for _, table := range []string{"sync_mappings", "sync_queue", "sync_logs"} {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 0 {
			t.Errorf("%s has %d rows after store deletion, want 0", table, count)
		}
	}
}

func TestQueuePendingIndex_BlocksDuplicates(t *testing.T) {
	s := createTestStore(t)

	mustExec := func(q string, args ...any) {
		t.Helper()
		if _, err := s.db.Exec(q, args...); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}

	mustExec(`INSERT INTO store_connections (id, name, platform, base_url, created_at)
		VALUES (1, 'shop', 'woocommerce', 'https://example.com', '2026-01-01T00:00:00Z')`)
	mustExec(`INSERT INTO sync_mappings (id, store_id, canonical_url, created_at)
		VALUES (10, 1, 'https://example.com/p/1', '2026-01-01T00:00:00Z')`)
	mustExec(`INSERT INTO sync_queue (store_id, mapping_id, field, status, created_at)
		VALUES (1, 10, 'price', 'pending', '2026-01-01T00:00:00Z')`)

	_, err := s.db.Exec(`INSERT INTO sync_queue (store_id, mapping_id, field, status, created_at)
		VALUES (1, 10, 'price', 'pending', '2026-01-01T00:00:00Z')`)
	if err == nil {
		t.Fatal("second pending insert for same (mapping, field) succeeded, want unique violation")
	}

	// A resolved item does not block a new pending one.
	mustExec(`UPDATE sync_queue SET status = 'approved' WHERE mapping_id = 10`)
	mustExec(`INSERT INTO sync_queue (store_id, mapping_id, field, status, created_at)
		VALUES (1, 10, 'price', 'pending', '2026-01-01T00:00:00Z')`)
}

package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/notesync/internal/config"
	"github.com/xxxsen/notesync/internal/db"
)

// OpenTestDB connects to the postgres instance named by TEST_DB_HOST and
// wipes any previous fixture data. Tests are skipped when the env is unset.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "notesync",
		Password: "notesync_pass",
		DBName:   "notesync_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if _, err := conn.Exec("DELETE FROM users"); err != nil {
		t.Fatalf("wipe fixtures: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

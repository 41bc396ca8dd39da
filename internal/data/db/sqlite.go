package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteDSN builds a file DSN with foreign keys on, WAL journaling and
// BEGIN IMMEDIATE, so concurrent writers queue on the busy timeout instead of
// failing mid-transaction.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
}

func sqliteDialector(cfg Config) (gorm.Dialector, error) {
	path := strings.TrimSpace(cfg.SQLitePath)
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty SQLITE_PATH")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create db dir: %w", err)
	}
	return sqlite.Open(SQLiteDSN(path)), nil
}

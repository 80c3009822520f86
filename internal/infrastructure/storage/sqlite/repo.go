package sqlite

import (
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"quantstore/internal/infrastructure/storage/sqldoc"
)

// New opens (or creates) the database file and returns a document store on it.
func New(path string) (*sqldoc.Store, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// 单连接, sqlite 写锁按库粒度
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqldoc.New(db, sqldoc.SQLite), nil
}

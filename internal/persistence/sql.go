package persistence

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"danmakuproxy/pkg/logger"
)

// sqlStore is the preferred persistence tier (spec/4.3 tier 1): a single
// env_configs table for the Config Registry overlay, and one cache_data
// table keyed by name for catalog state. Schema/open style is grounded in
// the teacher's pkg/database/database.go; the teacher's own code disagreed
// with its go.mod (it imported modernc.org/sqlite while go.mod declared
// mattn/go-sqlite3) — this resolves that in go.mod's favor, see DESIGN.md.
type sqlStore struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS env_configs (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS cache_data (
	name TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// openSQLStore opens (and migrates) the sqlite-backed tier. dsn is a local
// file path; an empty dsn disables this tier entirely (the caller falls
// through to the KV tier).
func openSQLStore(dsn string) (*sqlStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("no database path configured")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, err
	}
	logger.Infof("persistence: sqlite store opened at %s", dsn)
	return &sqlStore{db: db}, nil
}

func (s *sqlStore) getCache(name string) ([]byte, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM cache_data WHERE name = ?`, name).Scan(&value)
	if err != nil {
		return nil, false
	}
	return []byte(value), true
}

func (s *sqlStore) setCache(name string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO cache_data (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, name, string(value))
	return err
}

func (s *sqlStore) getAllConfig() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM env_configs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *sqlStore) setConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO env_configs (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (s *sqlStore) close() error {
	return s.db.Close()
}

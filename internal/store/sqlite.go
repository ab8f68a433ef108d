package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/gwlsn/webpq/internal/model"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS results (
	input_path TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	class TEXT NOT NULL,
	score REAL NOT NULL,
	end_q INTEGER NOT NULL,
	passed INTEGER NOT NULL,
	output_path TEXT NOT NULL,
	bytes_in INTEGER NOT NULL DEFAULT 0,
	bytes_out INTEGER NOT NULL DEFAULT 0,
	completed_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL,
	applied_at TEXT DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteCache implements Cache using a SQLite database confined to the
// batch's output directory.
type SQLiteCache struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// NewSQLiteCache opens (or creates) the cache database at dbPath,
// creating parent directories as needed.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			db.Close()
			return nil, fmt.Errorf("insert schema version: %w", err)
		}
	} else if err != nil {
		db.Close()
		return nil, fmt.Errorf("check schema version: %w", err)
	}

	return &SQLiteCache{db: db, path: dbPath}, nil
}

// Lookup returns the cached record for inputPath, if its stored
// content hash matches contentHash.
func (c *SQLiteCache) Lookup(inputPath, contentHash string) (Record, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		rec    Record
		class  string
		passed int
	)
	row := c.db.QueryRow(`
		SELECT input_path, content_hash, class, score, end_q, passed, output_path, bytes_in, bytes_out
		FROM results WHERE input_path = ?
	`, inputPath)

	err := row.Scan(&rec.InputPath, &rec.ContentHash, &class, &rec.Meta.Score, &rec.Meta.EndQ, &passed, &rec.Meta.OutputPath, &rec.Meta.BytesIn, &rec.Meta.BytesOut)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("lookup %s: %w", inputPath, err)
	}
	if rec.ContentHash != contentHash {
		return Record{}, false, nil
	}

	rec.Meta.Class = model.Class(class)
	rec.Meta.Passed = passed != 0
	rec.Meta.InputPath = inputPath
	return rec, true, nil
}

// Put persists or replaces the record for its InputPath.
func (c *SQLiteCache) Put(record Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO results
			(input_path, content_hash, class, score, end_q, passed, output_path, bytes_in, bytes_out)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.InputPath, record.ContentHash, string(record.Meta.Class),
		record.Meta.Score, record.Meta.EndQ, boolToInt(record.Meta.Passed), record.Meta.OutputPath,
		record.Meta.BytesIn, record.Meta.BytesOut,
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", record.InputPath, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *SQLiteCache) Path() string {
	return c.path
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Package storage provides SQLite-based persistence for remote command
// history and session transitions.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Store manages the SQLite database connection.
type Store struct {
	db *sql.DB
}

// RemoteCommandRecord is one command received from a peer.
type RemoteCommandRecord struct {
	ID        int64
	ConnID    string
	Peer      string
	Command   string
	CreatedAt time.Time
}

// SessionEvent records a remote command server role change.
type SessionEvent struct {
	ID        int64
	FromRole  string
	ToRole    string
	Address   string
	CreatedAt time.Time
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}

	// Jobs write from several workers; one connection serializes them.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}

	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS remote_commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conn_id TEXT NOT NULL,
			peer TEXT NOT NULL,
			command TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_remote_commands_peer ON remote_commands(peer);

		CREATE TABLE IF NOT EXISTS session_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			from_role TEXT NOT NULL,
			to_role TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRemoteCommand records a command received from a peer.
// Returns the ID of the inserted record.
func (s *Store) SaveRemoteCommand(rec RemoteCommandRecord) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO remote_commands (conn_id, peer, command) VALUES (?, ?, ?)",
		rec.ConnID, rec.Peer, rec.Command,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: cannot save remote command: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: cannot get inserted ID: %w", err)
	}

	return id, nil
}

// RecentRemoteCommands returns the newest commands first.
func (s *Store) RecentRemoteCommands(limit int) ([]RemoteCommandRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, conn_id, peer, command, created_at
		 FROM remote_commands
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query remote commands: %w", err)
	}
	defer rows.Close()

	return scanRemoteCommands(rows)
}

// RemoteCommandsByPeer returns the newest commands from one peer address.
func (s *Store) RemoteCommandsByPeer(peer string, limit int) ([]RemoteCommandRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, conn_id, peer, command, created_at
		 FROM remote_commands
		 WHERE peer = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		peer, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query remote commands: %w", err)
	}
	defer rows.Close()

	return scanRemoteCommands(rows)
}

func scanRemoteCommands(rows *sql.Rows) ([]RemoteCommandRecord, error) {
	var records []RemoteCommandRecord
	for rows.Next() {
		var r RemoteCommandRecord
		var createdAt any
		if err := rows.Scan(&r.ID, &r.ConnID, &r.Peer, &r.Command, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return records, nil
}

// CountRemoteCommands returns the number of recorded commands.
func (s *Store) CountRemoteCommands() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM remote_commands").Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: cannot count remote commands: %w", err)
	}
	return n, nil
}

// ClearRemoteCommands deletes the whole command history.
func (s *Store) ClearRemoteCommands() error {
	_, err := s.db.Exec("DELETE FROM remote_commands")
	if err != nil {
		return fmt.Errorf("storage: cannot clear remote commands: %w", err)
	}
	return nil
}

// SaveSessionEvent records a role change.
// Returns the ID of the inserted record.
func (s *Store) SaveSessionEvent(e SessionEvent) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO session_events (from_role, to_role, address) VALUES (?, ?, ?)",
		e.FromRole, e.ToRole, e.Address,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: cannot save session event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: cannot get inserted ID: %w", err)
	}

	return id, nil
}

// RecentSessionEvents returns the newest role changes first.
func (s *Store) RecentSessionEvents(limit int) ([]SessionEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, from_role, to_role, address, created_at
		 FROM session_events
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query session events: %w", err)
	}
	defer rows.Close()

	var events []SessionEvent
	for rows.Next() {
		var e SessionEvent
		var createdAt any
		if err := rows.Scan(&e.ID, &e.FromRole, &e.ToRole, &e.Address, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan row: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}

	return events, nil
}

// parseTime handles both time.Time and string datetimes from the driver.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

package store

import (
	"context"
	"database/sql"

	"github.com/swisscast/kaltura-migration/internal/store/migrations"
)

// Store provides access to all storage repositories. Engine-owned tables
// (findings, logs, settings) and host content tables may live in the
// same database or in two different ones; the engine only assumes the
// host side is reachable through HostDB.
type Store struct {
	db       *sql.DB
	findings *FindingStore
	logs     *LogStore
	settings *SettingsStore
	host     *HostDB
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		findings: NewFindingStore(db),
		logs:     NewLogStore(db),
		settings: NewSettingsStore(db),
		host:     NewHostDB(db),
	}
}

// Migrate creates the engine-owned tables.
func (s *Store) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, s.db)
}

func (s *Store) Findings() *FindingStore {
	return s.findings
}

func (s *Store) Logs() *LogStore {
	return s.logs
}

func (s *Store) Settings() *SettingsStore {
	return s.settings
}

func (s *Store) Host() *HostDB {
	return s.host
}

func (s *Store) Close() error {
	return s.db.Close()
}

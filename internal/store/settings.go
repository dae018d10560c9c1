package store

import (
	"context"
	"database/sql"
	"errors"
)

// Setting keys used by the background task runner.
const (
	SettingTaskName     = "task_name"
	SettingTaskStatus   = "task_status"
	SettingTaskProgress = "task_progress"
)

const (
	queryGetSetting = `SELECT value FROM migration_settings WHERE name = ?`

	queryUpsertSetting = `
		INSERT INTO migration_settings (name, value)
		VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`
)

// SettingsStore is a small key-value store used to persist task status
// and progress between polls.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the stored value, or "" when the key was never set.
func (s *SettingsStore) Get(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, queryGetSetting, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *SettingsStore) Set(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx, queryUpsertSetting, name, value)
	return err
}

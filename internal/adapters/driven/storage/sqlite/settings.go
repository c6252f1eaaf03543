package sqlite

import (
	"context"
	"fmt"
	"strconv"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
)

// ==================== Settings Store ====================

// settingsStore implements driven.SettingsStore over the app_settings table.
type settingsStore struct {
	store *Store
}

var _ driven.SettingsStore = (*settingsStore)(nil)

// ProcessingSettings reads processing settings, falling back to defaults
// for missing or malformed values.
func (s *settingsStore) ProcessingSettings(ctx context.Context) (domain.ProcessingSettings, error) {
	settings := domain.DefaultProcessingSettings()

	all, err := s.AllSettings(ctx)
	if err != nil {
		return settings, err
	}

	if v, ok := all[domain.SettingMaxWorkers]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			settings.MaxWorkers = n
		}
	}
	if v, ok := all[domain.SettingUseGPU]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.UseGPU = b
		}
	}
	if v, ok := all[domain.SettingHTMLParsingMode]; ok {
		if mode := domain.HTMLParsingMode(v); mode.IsValid() {
			settings.HTMLParsingMode = mode
		}
	}

	return settings, nil
}

// SetSetting stores a raw setting value.
func (s *settingsStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO app_settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("saving setting %s: %w", key, err)
	}
	return nil
}

// AllSettings returns every stored key/value pair.
func (s *settingsStore) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT key, value FROM app_settings")
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		out[k] = v
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings: %w", err)
	}

	return out, nil
}

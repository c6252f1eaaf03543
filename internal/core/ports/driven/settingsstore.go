package driven

import (
	"context"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// SettingsStore persists runtime processing settings as key/value pairs.
type SettingsStore interface {
	// ProcessingSettings reads the current settings. Missing or malformed
	// values fall back to domain.DefaultProcessingSettings.
	ProcessingSettings(ctx context.Context) (domain.ProcessingSettings, error)

	// SetSetting stores a raw setting value.
	SetSetting(ctx context.Context, key, value string) error

	// AllSettings returns every stored key/value pair.
	AllSettings(ctx context.Context) (map[string]string, error)
}

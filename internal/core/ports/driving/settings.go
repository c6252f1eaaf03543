package driving

import (
	"context"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

// SettingsService manages runtime processing settings.
type SettingsService interface {
	// Get returns the current settings.
	Get(ctx context.Context) (domain.ProcessingSettings, error)

	// Update validates and stores settings, then requests a pool restart.
	Update(ctx context.Context, settings domain.ProcessingSettings) error

	// Set parses and stores a single setting by key.
	Set(ctx context.Context, key, value string) error
}

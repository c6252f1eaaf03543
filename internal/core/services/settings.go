package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Restarter recreates the worker pool once it is safe to do so.
type Restarter interface {
	RequestRestart()
}

// SettingsService manages runtime processing settings. Every change
// requests a deferred worker pool restart so it takes effect.
type SettingsService struct {
	store     driven.SettingsStore
	restarter Restarter
}

// NewSettingsService creates a new settings service. restarter may be nil
// when no coordinator is running.
func NewSettingsService(store driven.SettingsStore, restarter Restarter) *SettingsService {
	return &SettingsService{store: store, restarter: restarter}
}

// Get returns the current settings.
func (s *SettingsService) Get(ctx context.Context) (domain.ProcessingSettings, error) {
	return s.store.ProcessingSettings(ctx)
}

// Update validates and stores all settings.
func (s *SettingsService) Update(ctx context.Context, settings domain.ProcessingSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	values := map[string]string{
		domain.SettingMaxWorkers:      strconv.Itoa(settings.MaxWorkers),
		domain.SettingUseGPU:          strconv.FormatBool(settings.UseGPU),
		domain.SettingHTMLParsingMode: string(settings.HTMLParsingMode),
	}
	for _, key := range []string{domain.SettingMaxWorkers, domain.SettingUseGPU, domain.SettingHTMLParsingMode} {
		if err := s.store.SetSetting(ctx, key, values[key]); err != nil {
			return err
		}
	}

	s.requestRestart()
	return nil
}

// Set parses and stores one setting.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	normalised, err := parseSetting(key, value)
	if err != nil {
		return err
	}
	if err := s.store.SetSetting(ctx, key, normalised); err != nil {
		return err
	}

	s.requestRestart()
	return nil
}

func (s *SettingsService) requestRestart() {
	if s.restarter != nil {
		s.restarter.RequestRestart()
	}
}

// parseSetting validates a raw value and returns its stored form.
func parseSetting(key, value string) (string, error) {
	value = strings.TrimSpace(value)

	switch key {
	case domain.SettingMaxWorkers:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return "", fmt.Errorf("%s must be a positive integer, got %q: %w", key, value, domain.ErrInvalidInput)
		}
		return strconv.Itoa(n), nil

	case domain.SettingUseGPU:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("%s must be true or false, got %q: %w", key, value, domain.ErrInvalidInput)
		}
		return strconv.FormatBool(b), nil

	case domain.SettingHTMLParsingMode:
		mode := domain.HTMLParsingMode(strings.ToLower(value))
		if !mode.IsValid() {
			return "", fmt.Errorf("%s must be %s or %s, got %q: %w",
				key, domain.HTMLModeGeneric, domain.HTMLModePipermail, value, domain.ErrInvalidInput)
		}
		return string(mode), nil

	default:
		return "", fmt.Errorf("unknown setting %q: %w", key, domain.ErrInvalidInput)
	}
}

package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// Processing setting keys, as persisted in the app_settings table.
const (
	SettingMaxWorkers      = "max_workers"
	SettingUseGPU          = "use_gpu"
	SettingHTMLParsingMode = "html_parsing_mode"
)

// ProcessingSettings are the runtime settings read at worker pool (re)creation.
// A change triggers a deferred restart of the pool.
type ProcessingSettings struct {
	// MaxWorkers bounds concurrent process tasks. Always >= 1.
	MaxWorkers int

	// UseGPU asks worker initialisation to acquire GPU access.
	// Failure to do so is a warning, not an error.
	UseGPU bool

	// HTMLParsingMode selects the markup extraction strategy.
	HTMLParsingMode HTMLParsingMode
}

// DefaultProcessingSettings returns the seeded defaults.
func DefaultProcessingSettings() ProcessingSettings {
	return ProcessingSettings{
		MaxWorkers:      2,
		UseGPU:          false,
		HTMLParsingMode: HTMLModeGeneric,
	}
}

// Validate checks the settings are usable.
func (s ProcessingSettings) Validate() error {
	if s.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1: %w", ErrInvalidInput)
	}
	if !s.HTMLParsingMode.IsValid() {
		return fmt.Errorf("unknown html_parsing_mode %q: %w", s.HTMLParsingMode, ErrInvalidInput)
	}
	return nil
}

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderNone disables embeddings.
	AIProviderNone AIProvider = ""

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderNone:
		return "Disabled"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// RequestsPerSecond limits calls to the provider. Zero means unlimited.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// BatchSettings holds defaults for the batch pipeline.
type BatchSettings struct {
	// Workers is the parallelism of every phase.
	Workers int

	// EmbedBatchSize is the number of chunks per embedding request batch.
	EmbedBatchSize int
}

// AppConfig is the static application configuration loaded at startup.
type AppConfig struct {
	// DataDir holds the production database and the staging area.
	DataDir string

	// DocumentsDir is the root scanned by discovery.
	DocumentsDir string

	// TickInterval is the coordinator loop period.
	TickInterval time.Duration

	// PoolCooldown is the wait before recreating a broken worker pool.
	PoolCooldown time.Duration

	// ProseModelDir optionally points at a prose model on disk.
	ProseModelDir string

	// LogFile, when set, receives rotated log output in addition to stderr.
	LogFile string

	// Embedding configures the embedding capability.
	Embedding EmbeddingSettings

	// Batch configures the batch pipeline.
	Batch BatchSettings

	// Scheduler configures periodic triggers.
	Scheduler SchedulerConfig
}

// DefaultAppConfig returns configuration defaults. Directories are left
// empty and resolved by the config loader.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		TickInterval: 500 * time.Millisecond,
		PoolCooldown: 5 * time.Second,
		Batch: BatchSettings{
			Workers:        2,
			EmbedBatchSize: 16,
		},
		Scheduler: DefaultSchedulerConfig(),
	}
}

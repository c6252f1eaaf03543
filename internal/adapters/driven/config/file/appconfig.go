package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
)

// Configuration keys as flattened from config.toml.
const (
	KeyDataDir           = "data_dir"
	KeyDocumentsDir      = "documents_dir"
	KeyLogFile           = "log_file"
	KeyProseModelDir     = "prose_model_dir"
	KeyTickInterval      = "coordinator.tick_interval"
	KeyPoolCooldown      = "coordinator.pool_cooldown"
	KeyEmbeddingProvider = "embedding.provider"
	KeyEmbeddingModel    = "embedding.model"
	KeyEmbeddingBaseURL  = "embedding.base_url"
	KeyEmbeddingAPIKey   = "embedding.api_key"
	KeyEmbeddingRate     = "embedding.requests_per_second"
	KeyBatchWorkers      = "batch.workers"
	KeyBatchEmbedSize    = "batch.embed_batch_size"
	KeySchedulerEnabled  = "scheduler.enabled"
	KeyDiscoveryInterval = "scheduler.discovery_interval"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REDLEAF_"

// envKeys maps environment variables (without prefix) to config keys.
var envKeys = map[string]string{
	"DATA_DIR":           KeyDataDir,
	"DOCUMENTS_DIR":      KeyDocumentsDir,
	"LOG_FILE":           KeyLogFile,
	"PROSE_MODEL_DIR":    KeyProseModelDir,
	"TICK_INTERVAL":      KeyTickInterval,
	"POOL_COOLDOWN":      KeyPoolCooldown,
	"EMBEDDING_PROVIDER": KeyEmbeddingProvider,
	"EMBEDDING_MODEL":    KeyEmbeddingModel,
	"EMBEDDING_BASE_URL": KeyEmbeddingBaseURL,
	"EMBEDDING_API_KEY":  KeyEmbeddingAPIKey,
	"EMBEDDING_RPS":      KeyEmbeddingRate,
	"BATCH_WORKERS":      KeyBatchWorkers,
	"BATCH_EMBED_SIZE":   KeyBatchEmbedSize,
	"SCHEDULER_ENABLED":  KeySchedulerEnabled,
	"DISCOVERY_INTERVAL": KeyDiscoveryInterval,
}

// KnownKeys returns every key LoadAppConfig reads, sorted.
func KnownKeys() []string {
	keys := make([]string, 0, len(envKeys))
	for _, key := range envKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// LoadAppConfig builds the application configuration: defaults, then the
// values in store, then environment overrides. envFile, when it exists, is
// loaded into the environment first without replacing variables already set.
// Data and documents directories default to siblings of the config file.
func LoadAppConfig(store driven.ConfigStore, envFile string) (domain.AppConfig, error) {
	cfg := domain.DefaultAppConfig()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	values := make(map[string]any)
	for _, key := range envKeys {
		if v, ok := store.Get(key); ok {
			values[key] = v
		}
	}
	for name, key := range envKeys {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			values[key] = v
		}
	}
	if _, ok := values[KeyEmbeddingAPIKey]; !ok {
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			values[KeyEmbeddingAPIKey] = v
		}
	}

	if err := apply(&cfg, values); err != nil {
		return cfg, err
	}

	root := filepath.Dir(store.Path())
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(root, "data")
	}
	if cfg.DocumentsDir == "" {
		cfg.DocumentsDir = filepath.Join(root, "documents")
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.DocumentsDir = expandHome(cfg.DocumentsDir)
	cfg.LogFile = expandHome(cfg.LogFile)
	cfg.ProseModelDir = expandHome(cfg.ProseModelDir)

	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = domain.DefaultEmbeddingModels()[cfg.Embedding.Provider]
	}
	return cfg, nil
}

func apply(cfg *domain.AppConfig, values map[string]any) error {
	var err error
	for key, raw := range values {
		switch key {
		case KeyDataDir:
			cfg.DataDir, err = stringValue(key, raw)
		case KeyDocumentsDir:
			cfg.DocumentsDir, err = stringValue(key, raw)
		case KeyLogFile:
			cfg.LogFile, err = stringValue(key, raw)
		case KeyProseModelDir:
			cfg.ProseModelDir, err = stringValue(key, raw)
		case KeyTickInterval:
			cfg.TickInterval, err = durationValue(key, raw)
		case KeyPoolCooldown:
			cfg.PoolCooldown, err = durationValue(key, raw)
		case KeyEmbeddingProvider:
			var s string
			if s, err = stringValue(key, raw); err == nil {
				cfg.Embedding.Provider = domain.AIProvider(strings.ToLower(s))
				if cfg.Embedding.Provider != domain.AIProviderNone && !cfg.Embedding.Provider.IsValid() {
					err = fmt.Errorf("%s: unknown provider %q: %w", key, s, domain.ErrInvalidInput)
				}
			}
		case KeyEmbeddingModel:
			cfg.Embedding.Model, err = stringValue(key, raw)
		case KeyEmbeddingBaseURL:
			cfg.Embedding.BaseURL, err = stringValue(key, raw)
		case KeyEmbeddingAPIKey:
			cfg.Embedding.APIKey, err = stringValue(key, raw)
		case KeyEmbeddingRate:
			cfg.Embedding.RequestsPerSecond, err = floatValue(key, raw)
		case KeyBatchWorkers:
			cfg.Batch.Workers, err = positiveInt(key, raw)
		case KeyBatchEmbedSize:
			cfg.Batch.EmbedBatchSize, err = positiveInt(key, raw)
		case KeySchedulerEnabled:
			cfg.Scheduler.Enabled, err = boolValue(key, raw)
		case KeyDiscoveryInterval:
			var d time.Duration
			if d, err = durationValue(key, raw); err == nil {
				task := cfg.Scheduler.GetTaskConfig(domain.TaskIDPeriodicDiscovery)
				task.Interval = d
				task.Enabled = d > 0
				cfg.Scheduler.TaskConfigs[domain.TaskIDPeriodicDiscovery] = task
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func invalid(key string, raw any) error {
	return fmt.Errorf("config %s: invalid value %v: %w", key, raw, domain.ErrInvalidInput)
}

func stringValue(key string, raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", invalid(key, raw)
	}
	return strings.TrimSpace(s), nil
}

// durationValue accepts Go duration strings ("500ms", "1h") or whole seconds.
func durationValue(key string, raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case string:
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d >= 0 {
			return d, nil
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			return time.Duration(n) * time.Second, nil
		}
	case int64:
		if v >= 0 {
			return time.Duration(v) * time.Second, nil
		}
	case int:
		if v >= 0 {
			return time.Duration(v) * time.Second, nil
		}
	}
	return 0, invalid(key, raw)
}

func positiveInt(key string, raw any) (int, error) {
	var n int
	switch v := raw.(type) {
	case int64:
		n = int(v)
	case int:
		n = v
	case string:
		var err error
		if n, err = strconv.Atoi(strings.TrimSpace(v)); err != nil {
			return 0, invalid(key, raw)
		}
	default:
		return 0, invalid(key, raw)
	}
	if n < 1 {
		return 0, invalid(key, raw)
	}
	return n, nil
}

func floatValue(key string, raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, nil
		}
	}
	return 0, invalid(key, raw)
}

func boolValue(key string, raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b, nil
		}
	}
	return false, invalid(key, raw)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

package driven

// ConfigStore holds user configuration as flat dot-separated keys
// ("embedding.provider"). Values keep the type they were decoded or set with.
type ConfigStore interface {
	// Get returns the value for key and whether it is set.
	Get(key string) (any, bool)

	// Set stores a value and persists the file.
	Set(key string, value any) error

	// Delete removes key and persists the file. Missing keys are ignored.
	Delete(key string) error

	// Keys returns the set keys, sorted.
	Keys() []string

	// Path returns the backing file path.
	Path() string
}

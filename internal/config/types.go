package config

// Config is the full tenderwatchd configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging    LoggingConfig    `json:"logging"`
	Storage    StorageConfig    `json:"storage"`
	Sources    SourcesConfig    `json:"sources"`
	Aggregator AggregatorConfig `json:"aggregator"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./tenderwatch.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// SourcesConfig controls the source adapter set.
//
// Enabled lists adapter names to register; omitted or empty means all known
// adapters. BaseURLs overrides an adapter's endpoint (mainly for staging).
type SourcesConfig struct {
	Enabled    []string          `json:"enabled,omitempty"`
	BaseURLs   map[string]string `json:"base_urls,omitempty"`
	RatePerSec float64           `json:"rate_per_sec,omitempty"`
}

// AggregatorConfig controls the fan-out search.
//
// Defaults (when fields are omitted/zero):
//   - adapter_timeout: "10s"
//   - max_results: 50 (interactive cap ceiling)
type AggregatorConfig struct {
	AdapterTimeout string `json:"adapter_timeout,omitempty"`
	MaxResults     int    `json:"max_results,omitempty"`
}

// SchedulerConfig controls the recurring search scheduler.
//
// Defaults (when fields are omitted/zero):
//   - tick: "1m"
//   - default_max_results: 20
type SchedulerConfig struct {
	Tick              string `json:"tick,omitempty"`
	DefaultMaxResults int    `json:"default_max_results,omitempty"`
}

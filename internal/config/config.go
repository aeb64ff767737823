// Package config provides configuration structures and loading for Menger:
// a small runtime Config (store URI, logging, profile-cache tuning) plus a
// declarative schema file describing the spaces/dimensions/measures a store
// serves — the Go-native replacement for the original's metaclass-based
// "schema-as-class" definitions.
package config

// Config represents the complete runtime configuration: everything needed
// to open a session against a store, independent of which spaces it holds.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Profile ProfileConfig `yaml:"profile" mapstructure:"profile"`
}

// StoreConfig describes how to reach the backend (§6 URI form).
type StoreConfig struct {
	URI      string `yaml:"uri" mapstructure:"uri"`
	ReadOnly bool   `yaml:"readonly" mapstructure:"readonly"`
}

// ProfileConfig tunes the materialized-view cache (§4.4).
type ProfileConfig struct {
	// CacheRatio is the fraction of a space's fact-row count the profile
	// cache may spend on materialized snapshots; default 0.10 (10%).
	CacheRatio float64 `yaml:"cache_ratio" mapstructure:"cache_ratio"`
	// SyncIntervalSeconds is validated (it must not be negative) but not
	// read elsewhere: profile hit counters are written to the backend on
	// every query, without buffering.
	SyncIntervalSeconds int `yaml:"sync_interval_seconds" mapstructure:"sync_interval_seconds"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			URI:      "sqlite://menger.db",
			ReadOnly: false,
		},
		Profile: ProfileConfig{
			CacheRatio:          0.10,
			SyncIntervalSeconds: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// ApplyOverrides applies CLI flag overrides to the configuration. Only
// non-zero/non-empty values are applied, mirroring the CLI's persistent
// flags (§6: store URI, readonly, log level).
func (c *Config) ApplyOverrides(storeURI, logLevel string, readOnly bool, cacheRatio float64) {
	if storeURI != "" {
		c.Store.URI = storeURI
	}
	if readOnly {
		c.Store.ReadOnly = true
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if cacheRatio > 0 {
		c.Profile.CacheRatio = cacheRatio
	}
}

package config

import "time"

// Config holds runtime settings for the walletsync client.
type Config struct {
	// ServerEndpointAddr is the base URL of the sync server.
	ServerEndpointAddr string
	// DatabasePath is the local SQLite database file.
	DatabasePath string
	// SyncWorkers bounds how many collections sync concurrently.
	SyncWorkers int
	// OnlineCheckInterval is how often the client probes server reachability.
	OnlineCheckInterval time.Duration
	// TombstoneRetention is how long deleted entities stay restorable.
	TombstoneRetention time.Duration
	// CategoryTombstoneRetention overrides TombstoneRetention for categories,
	// which are referenced by other entities and kept longer.
	CategoryTombstoneRetention time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DatabasePath = "walletsync.db"
	c.SyncWorkers = 3
	c.OnlineCheckInterval = 3 * time.Second
	c.TombstoneRetention = 30 * 24 * time.Hour
	c.CategoryTombstoneRetention = 90 * 24 * time.Hour
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

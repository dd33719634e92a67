package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/flagx"
	"github.com/dmitrijs2005/walletsync/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// Duration fields accept either strings like "3s" or integer nanoseconds.
// Absent fields keep their current values.
type JsonConfig struct {
	ServerEndpointAddr         *string         `json:"server_endpoint_addr"`
	DatabasePath               *string         `json:"database_path"`
	SyncWorkers                *int            `json:"sync_workers"`
	OnlineCheckInterval        *timex.Duration `json:"online_check_interval"`
	TombstoneRetention         *timex.Duration `json:"tombstone_retention"`
	CategoryTombstoneRetention *timex.Duration `json:"category_tombstone_retention"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flag, when one is given. A file that cannot be read or
// parsed panics: a half-applied config is worse than a crash at startup.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	jc := &JsonConfig{}
	if err := json.Unmarshal(data, jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != nil {
		cfg.ServerEndpointAddr = *jc.ServerEndpointAddr
	}
	if jc.DatabasePath != nil {
		cfg.DatabasePath = *jc.DatabasePath
	}
	if jc.SyncWorkers != nil {
		cfg.SyncWorkers = *jc.SyncWorkers
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = time.Duration(*jc.OnlineCheckInterval)
	}
	if jc.TombstoneRetention != nil {
		cfg.TombstoneRetention = time.Duration(*jc.TombstoneRetention)
	}
	if jc.CategoryTombstoneRetention != nil {
		cfg.CategoryTombstoneRetention = time.Duration(*jc.CategoryTombstoneRetention)
	}
}

package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerEndpointAddr)
	assert.Equal(t, "walletsync.db", cfg.DatabasePath)
	assert.Equal(t, 3, cfg.SyncWorkers)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.TombstoneRetention)
	assert.Equal(t, 90*24*time.Hour, cfg.CategoryTombstoneRetention)
}

func TestJsonConfig_Overlay(t *testing.T) {
	data := []byte(`{
		"server_endpoint_addr": "https://sync.example.com",
		"sync_workers": 5,
		"tombstone_retention": "48h"
	}`)

	jc := &JsonConfig{}
	require.NoError(t, json.Unmarshal(data, jc))

	cfg := &Config{}
	cfg.LoadDefaults()

	if jc.ServerEndpointAddr != nil {
		cfg.ServerEndpointAddr = *jc.ServerEndpointAddr
	}
	if jc.SyncWorkers != nil {
		cfg.SyncWorkers = *jc.SyncWorkers
	}
	if jc.TombstoneRetention != nil {
		cfg.TombstoneRetention = time.Duration(*jc.TombstoneRetention)
	}

	// Overridden fields take the JSON values, absent fields keep defaults.
	assert.Equal(t, "https://sync.example.com", cfg.ServerEndpointAddr)
	assert.Equal(t, 5, cfg.SyncWorkers)
	assert.Equal(t, 48*time.Hour, cfg.TombstoneRetention)
	assert.Equal(t, "walletsync.db", cfg.DatabasePath)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}

func TestJsonConfig_DurationAsNanos(t *testing.T) {
	data := []byte(`{"online_check_interval": 5000000000}`)

	jc := &JsonConfig{}
	require.NoError(t, json.Unmarshal(data, jc))
	require.NotNil(t, jc.OnlineCheckInterval)
	assert.Equal(t, 5*time.Second, time.Duration(*jc.OnlineCheckInterval))
}

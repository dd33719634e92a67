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

	assert.Equal(t, ":8080", cfg.EndpointAddr)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
	assert.NotZero(t, cfg.RateLimitRPS)
	assert.NotEmpty(t, cfg.S3Bucket)
}

func TestJsonConfigOverlay(t *testing.T) {
	raw := []byte(`{
		"endpoint_addr": ":9090",
		"access_token_validity_duration": "30m",
		"rate_limit_rps": 5
	}`)

	c := &JsonConfig{}
	require.NoError(t, json.Unmarshal(raw, c))

	cfg := &Config{}
	cfg.LoadDefaults()
	if c.EndpointAddr != nil {
		cfg.EndpointAddr = *c.EndpointAddr
	}
	if c.AccessTokenValidityDuration != nil {
		cfg.AccessTokenValidityDuration = time.Duration(*c.AccessTokenValidityDuration)
	}
	if c.RateLimitRPS != nil {
		cfg.RateLimitRPS = *c.RateLimitRPS
	}

	assert.Equal(t, ":9090", cfg.EndpointAddr)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	// untouched fields keep their defaults
	assert.Equal(t, "secretKey", cfg.SecretKey)
}

func TestJsonConfigDurationAsNanos(t *testing.T) {
	raw := []byte(`{"refresh_token_validity_duration": 3600000000000}`)

	c := &JsonConfig{}
	require.NoError(t, json.Unmarshal(raw, c))
	require.NotNil(t, c.RefreshTokenValidityDuration)
	assert.Equal(t, time.Hour, time.Duration(*c.RefreshTokenValidityDuration))
}

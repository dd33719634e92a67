// Package config loads runtime configuration for the walletsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the sync server
//	-f string   path to the local database file
//	-w int      number of concurrent sync workers
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "http://127.0.0.1:8080",
//	  "database_path": "walletsync.db",
//	  "sync_workers": 3,
//	  "online_check_interval": "3s",
//	  "tombstone_retention": "720h",
//	  "category_tombstone_retention": "2160h"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config

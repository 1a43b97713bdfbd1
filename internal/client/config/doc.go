// Package config loads runtime configuration for the CallShield CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c/-config or CALLSHIELD_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the community server
//	-d string   path to the local SQLite database
//	-i int      online status check interval (seconds)
//	-s int      background sync sweep interval (seconds)
//	-r string   device area code
//	-k string   phone hash key
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds. Missing keys keep their defaults:
//
//	{
//	  "database_path": "callshield.db",
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "sync_interval": "5m",
//	  "retry_delay": "30s",
//	  "device_area_code": "555",
//	  "community_relevant_ttl": "6h"
//	}
package config

// Package config handles configuration loading for chat-gateway.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from CHAT_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/chat-gateway/gateway.yaml
//  3. ~/.config/chat-gateway/gateway.yaml
//
// Files ending in .toml are decoded as TOML; anything else is YAML.
//
// # Environment Variable Expansion
//
// Values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${CHAT_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Overrides
//
// A handful of settings can be overridden without touching the file:
//
//	CHAT_HTTP_ADDR   server.http_addr
//	CHAT_DB_PATH     database.path
//	CHAT_DB_DRIVER   database.driver
//	CHAT_JWT_SECRET  auth.jwt_secret
//	CHAT_LOG_LEVEL   logging.level
//
// # Durations
//
// Duration fields are strings in time.ParseDuration syntax ("30s", "10m").
// Each is kept in a Raw field and parsed into its time.Duration twin.
//
// # Example
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  allowed_origins: ["https://chat.example.com"]
//	database:
//	  driver: "sqlite"
//	  path: "~/.local/share/chat-gateway/chat.db"
//	auth:
//	  jwt_secret: "${CHAT_JWT_SECRET}"
//	  token_ttl: "1h"
//	realtime:
//	  subscriber_backlog: 100
//	  channel_idle_ttl: "10m"
//	  ping_interval: "30s"
//	  read_timeout: "60s"
//	logging:
//	  level: "info"
//	  format: "text"
package config

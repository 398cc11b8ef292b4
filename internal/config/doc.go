// Package config handles configuration loading for mcp-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${MCP_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  signed_token_ttl: "24h"
//	session:
//	  idle_timeout: "30m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  name: "mcp-gateway"
//	  version: "1.0.0"
//
// Database:
//
//	database:
//	  path: "/var/lib/mcp-gateway/gateway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${MCP_JWT_SECRET}"  # empty disables signed tokens
//	  signed_token_ttl: "24h"
//
// Credential vault:
//
//	vault:
//	  key: "${MCP_VAULT_KEY}"  # base64 32-byte key; empty generates a
//	                           # throwaway key at startup
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Metrics:
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Usage
//
//	cfg, err := config.Load("/etc/mcp-gateway/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

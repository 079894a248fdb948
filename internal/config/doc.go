// Package config handles configuration loading for repgate.
//
// Configuration is loaded from YAML files with environment variable
// expansion. Values can reference environment variables with ${VAR_NAME}
// syntax:
//
//	auth:
//	  jwt_secret: "${REPGATE_JWT_SECRET}"
//
// Duration values use Go's time.ParseDuration syntax:
//
//	tools:
//	  timeout: "30s"
//
// A complete configuration:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
//	database:
//	  path: "/var/lib/repgate/repgate.db"
//
//	auth:
//	  jwt_secret: "${REPGATE_JWT_SECRET}"  # min 32 characters
//
//	audit:
//	  log_auth_failures: false  # record rejected tool calls as unattributed entries
//
//	tools:
//	  timeout: "30s"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config

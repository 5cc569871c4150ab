// Package config loads the Catena server configuration from a YAML file.
// Command-line flags override file values in cmd/catena.
package config

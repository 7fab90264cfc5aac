// Package config loads service configuration from an optional YAML file
// and BACKOFFICE_* environment variables; environment values win.
//
//	cfg, err := config.LoadConfig(os.Getenv("BACKOFFICE_CONFIG"))
//
// See Config for the available sections and their defaults.
package config

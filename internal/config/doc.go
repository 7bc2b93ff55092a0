// Package config provides configuration loading, merging, and validation
// for a miniservice host.
//
// Configuration is assembled from multiple sources in the following priority
// order (later sources override earlier non-zero fields):
//  1. Built-in defaults
//  2. JSON or YAML config file (-c / CONFIG)
//  3. .env file (--dotenv / DOTENV_FILE, default ".env")
//  4. Environment variables
//  5. Command-line flags
//
// The main entry point is [GetStructuredConfig].
package config

// Package config provides configuration loading and validation for the
// voice capture service. It reads YAML into typed sections, applies
// environment overrides for credentials and endpoints, and validates every
// value before the rest of the process starts.
package config

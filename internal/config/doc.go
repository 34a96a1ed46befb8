// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Every pipeline entry point receives its settings from a loaded Config; there are
// no package-level defaults that change at runtime.
package config

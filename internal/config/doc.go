// Package config provides configuration structures and utilities for
// linkarmor. It defines the options for site identity, scan pacing,
// rewrite behavior, and report generation, plus the YAML configuration
// file with per-site overrides.
package config

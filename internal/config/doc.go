// Package config loads shopcart settings.
//
// Values are layered, later layers winning: Default, an optional YAML file,
// SHOPCART_* environment variables, then whatever the caller (usually the
// CLI) applies from flags. Validate checks the result against the embedded
// CUE schema in schema.cue.
package config

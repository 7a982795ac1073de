// Package config loads zkslice settings from a YAML file, ZKSLICE_*
// environment variables and command-line flags, in increasing precedence.
//
// The decoded configuration is checked against an embedded CUE schema
// before use.
package config

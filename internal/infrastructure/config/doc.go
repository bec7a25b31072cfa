// Package config loads and validates Matrix Gate configuration.
//
// Configuration comes from a YAML file with environment variable
// overrides (MATRIXGATE_* pattern). The loaded Config is treated as an
// immutable snapshot for the process lifetime: the account table, the
// IP allow-list, and the matrix link parameters never change at runtime.
package config

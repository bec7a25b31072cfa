// Package logging provides structured logging for Matrix Gate.
//
// It wraps log/slog with configuration-driven level, format, and output
// selection, plus default service/version fields on every record.
package logging

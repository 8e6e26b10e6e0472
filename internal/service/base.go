// Package service runs exchange operations for the HTTP handlers and reads
// pairs from chain.
package service

import "log/slog"

// BaseService provides common dependencies for service types.
type BaseService struct {
	logger *slog.Logger
}

// newBaseService falls back to the process-wide logger when none is given.
func newBaseService(logger *slog.Logger) BaseService {
	if logger == nil {
		logger = slog.Default()
	}
	return BaseService{logger: logger}
}

package caching

import (
	"fmt"

	"go.uber.org/zap"
)

// Guarded runs a fallible cache operation and never lets it fail the caller.
// On success it returns the value and a nil error record. On an error or a
// panic it logs at warn level with the operation name and context and
// returns the zero value plus a CacheError. It wraps every backend and
// statistics call the coordinator makes; the origin invocation is never
// guarded, because origin failures must reach the caller.
func Guarded[T any](logger *zap.Logger, operation string, opCtx map[string]any, fn func() (T, error)) (result T, cerr *CacheError) {
	if logger == nil {
		logger = zap.NewNop()
	}

	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			cerr = newCacheError(logger, operation, opCtx, fmt.Errorf("panic: %v", r))
		}
	}()

	value, err := fn()
	if err != nil {
		var zero T
		return zero, newCacheError(logger, operation, opCtx, err)
	}
	return value, nil
}

// GuardedDo is Guarded for operations without a result value.
func GuardedDo(logger *zap.Logger, operation string, opCtx map[string]any, fn func() error) *CacheError {
	_, cerr := Guarded(logger, operation, opCtx, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return cerr
}

func newCacheError(logger *zap.Logger, operation string, opCtx map[string]any, err error) *CacheError {
	logger.Warn("cache operation failed",
		zap.String("operation", operation),
		zap.Any("context", opCtx),
		zap.Error(err),
	)
	return &CacheError{
		Message:   err.Error(),
		Operation: operation,
		Context:   opCtx,
	}
}

package observability

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// AggregateErrors joins multiple errors, emits a structured log entry, and returns an aggregated error.
func AggregateErrors(log *zap.Logger, operation string, errs []error, fields ...zap.Field) error {
	filtered := make([]error, 0, len(errs))
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			continue
		}
		filtered = append(filtered, err)
		messages = append(messages, err.Error())
	}
	if len(filtered) == 0 {
		return nil
	}
	if log == nil {
		log = Log()
	}
	logFields := slices.Concat(fields, []zap.Field{
		zap.String("operation", operation),
		zap.Int("error_count", len(filtered)),
		zap.Strings("errors", messages),
	})
	log.Error("operation errors", logFields...)
	joined := errors.Join(filtered...)
	return fmt.Errorf("%s failed: %w", operation, joined)
}

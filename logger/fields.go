package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across atomdb.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldRequestID = "request_id"
	FieldQueryID   = "query_id"

	// Components
	FieldComponent = "component"
	FieldBackend   = "backend"

	// Operations
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldQuery     = "query"
	FieldStatus    = "status"
	FieldAttempt   = "attempt"

	// Atoms
	FieldHandle   = "handle"
	FieldType     = "type"
	FieldName     = "name"
	FieldTargets  = "targets"
	FieldTemplate = "template"
	FieldIndexID  = "index_id"

	// Pagination
	FieldCursor    = "cursor"
	FieldChunkSize = "chunk_size"
	FieldPage      = "page"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount     = "count"
	FieldNodeCount = "node_count"
	FieldLinkCount = "link_count"

	// Network
	FieldAddress = "address"
	FieldURL     = "url"
)

type contextKey string

const (
	requestIDKey contextKey = "logger_request_id"
	queryIDKey   contextKey = "logger_query_id"
)

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID stored by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithQueryID adds a query ID to the context for logging
func WithQueryID(ctx context.Context, queryID string) context.Context {
	return context.WithValue(ctx, queryIDKey, queryID)
}

// QueryIDFromContext returns the query ID stored by WithQueryID, or "".
func QueryIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(queryIDKey).(string)
	return id
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields = append(fields, FieldRequestID, requestID)
	}
	if queryID, ok := ctx.Value(queryIDKey).(string); ok && queryID != "" {
		fields = append(fields, FieldQueryID, queryID)
	}

	return fields
}

// FromContext returns base (or the global Logger when base is nil) with
// the fields extracted from ctx.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	store := memory.New(memory.WithLogger(logger.ComponentLogger("storage.memory")))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

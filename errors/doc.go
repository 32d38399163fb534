// Package errors provides the structured error type used across queuekit.
//
// AppError carries a machine-readable code, an HTTP status for the server
// surface, a retryable flag, and optional details. Pipeline failures that are
// reported as values (a generator step that failed) use the same type so they
// log and serialize consistently.
package errors

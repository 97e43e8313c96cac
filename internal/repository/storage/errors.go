package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Error codes surfaced by the storage layer. Raw driver errors never cross
// the package boundary; every failure is mapped onto one of these.
const (
	CodeUniqueViolation     = "UNIQUE_VIOLATION"
	CodeForeignKeyViolation = "FOREIGN_KEY_VIOLATION"
	CodeNotNullViolation    = "NOT_NULL_VIOLATION"
	CodeCheckViolation      = "CHECK_VIOLATION"
	CodeStringTruncation    = "STRING_DATA_RIGHT_TRUNCATION"
	CodeInvalidText         = "INVALID_TEXT_REPRESENTATION"
	CodeConnectionError     = "CONNECTION_ERROR"
	CodeDatabaseError       = "DATABASE_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeInsertFailed        = "INSERT_FAILED"
	CodeProcessingError     = "PROCESSING_ERROR"
)

// Error is the typed result every storage failure is returned as.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string { return e.Message }

// NewError builds an Error with the HTTP status implied by code.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: statusForCode(code)}
}

func statusForCode(code string) int {
	switch code {
	case CodeUniqueViolation:
		return 409
	case CodeForeignKeyViolation, CodeNotNullViolation, CodeCheckViolation,
		CodeStringTruncation, CodeInvalidText:
		return 400
	case CodeConnectionError:
		return 503
	case CodeNotFound:
		return 404
	default:
		return 500
	}
}

// SQLSTATE classes that are safe to blindly retry: connection loss, server
// shutdown, serialization conflict, deadlock.
var transientCodes = map[string]struct{}{
	"08000": {}, // connection_exception
	"08003": {}, // connection_does_not_exist
	"08006": {}, // connection_failure
	"57P01": {}, // admin_shutdown
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
}

var constraintCodes = map[string]string{
	"23505": CodeUniqueViolation,
	"23503": CodeForeignKeyViolation,
	"23502": CodeNotNullViolation,
	"23514": CodeCheckViolation,
	"22001": CodeStringTruncation,
	"22P02": CodeInvalidText,
}

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, ok := transientCodes[pgErr.Code]
		return ok
	}
	return false
}

// classifyError maps a low-level database error onto the stable taxonomy and
// logs it with the supplied context label. Already-classified errors pass
// through unchanged.
func classifyError(err error, context string) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	code := CodeDatabaseError
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if mapped, ok := constraintCodes[pgErr.Code]; ok {
			code = mapped
		} else if _, ok := transientCodes[pgErr.Code]; ok {
			// transient code still present here means retries were exhausted
			code = CodeConnectionError
		}
	}

	log.Error().
		Str("context", context).
		Str("code", code).
		Err(err).
		Msg("storage error")

	return NewError(code, err.Error())
}

// Package repository implements data access for the code pool over
// database/sql.  This file defines sentinel error values shared across
// repositories so that services and handlers can dispatch on failure
// kind with errors.Is instead of string matching or panics.
package repository

import "errors"

// ErrNoCodesAvailable is returned when neither the requested tier nor
// the COMMON fallback tier holds an unclaimed code.  Handlers should
// translate this into an HTTP 409 response; the condition is retryable
// later but never retried internally.
var ErrNoCodesAvailable = errors.New("no codes available")

// ErrCodeNotFound is returned when a release or moderation target does
// not exist or is not in the state the operation requires (e.g. the
// code was already released).  Handlers should translate this into a
// 404 response.
var ErrCodeNotFound = errors.New("code not found or not reserved")

// ErrInvariantViolation signals a detected mismatch between a code's
// status and its ownership fields.  It should never surface in normal
// operation; when it does, the transaction is aborted rather than the
// row silently repaired.
var ErrInvariantViolation = errors.New("code status/ownership invariant violated")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, such as releasing another user's code
// while the owner-only release policy is enabled.  Handlers should
// translate this into a 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrEmailExists is returned when creating a user with an email that
// is already registered.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when a user lookup by id matches no row.
var ErrUserNotFound = errors.New("user not found")

// ErrUserHasReservedCodes blocks user deletion while the user still
// holds reserved codes.
var ErrUserHasReservedCodes = errors.New("user has reserved codes")

// ErrNoValidCodes is returned by bulk ingestion when every supplied
// code fails validation before touching the database.
var ErrNoValidCodes = errors.New("no valid codes to insert")

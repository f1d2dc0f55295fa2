/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match on sentinels with errors.Is() or extract detail with
  errors.As().

ERROR CATEGORIES:
  1. Validation errors - malformed input, rejected before any store call
  2. Not-found errors  - referenced account/category/transaction absent
  3. Constraint errors - unique/foreign-key violations, category-type mismatch
  4. Store errors      - persistence store unreachable; the only retryable kind

SEE ALSO:
  - repository.go: Produces these errors
  - retry.go: Retries only store-unavailable failures
  - api/handlers.go: Maps these to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all malformed-input failures. Never retried;
	// the store is never touched.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is the root of all missing-reference failures.
	ErrNotFound = errors.New("not found")

	// ErrConstraint is the root of all constraint violations: unique keys,
	// foreign keys, category-type mismatches. The caller must correct input.
	ErrConstraint = errors.New("constraint violated")

	// ErrStoreUnavailable indicates the persistence store is unreachable or
	// timed out. This is the ONLY retryable error kind.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a single malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError identifies which referenced object was absent.
type NotFoundError struct {
	Kind string // "account", "category", "transaction", "identity"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConstraintError describes a violated invariant the caller can correct.
type ConstraintError struct {
	Constraint string // e.g. "category_type", "unique_identity"
	Detail     string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint %s: %s", e.Constraint, e.Detail)
}

func (e *ConstraintError) Unwrap() error { return ErrConstraint }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation might succeed on retry.
// Only store-level unavailability qualifies; every other failure is
// deterministic and retrying would just repeat it.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConstraint) ||
		errors.Is(err, ErrNotFound)
}

// IsNotFound returns true if the error indicates a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

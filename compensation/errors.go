/*
errors.go - Centralized error types for the compensation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch on the category with errors.Is / errors.As.

ERROR CATEGORIES:
  1. NotFound - provider or active contract missing (fatal, not retried)
  2. Validation - malformed input or term configuration (client error)
  3. ExternalData - data source unreachable or malformed

PROPAGATION:
  Failures in mandatory report sections (provider identity, compensation)
  abort the whole report. Failures in optional sections (market comparison)
  degrade that section to an explicit "unavailable" marker. Nothing is
  swallowed silently.

USAGE:
  report, err := assembler.Generate(ctx, providerID, period, nil)
  if compensation.IsNotFound(err) {
      // 404
  }
  var verr *compensation.ValidationError
  if errors.As(err, &verr) {
      // 400 with verr.Field
  }
*/
package compensation

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is the category of every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrValidation is the category of every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrExternalData is the category of every ExternalDataError.
	ErrExternalData = errors.New("external data unavailable")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrNoMarketData is returned when a benchmark curve is empty.
	// A percentile is undefined in that case; it is never 0 or 100.
	ErrNoMarketData = errors.New("no market data")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError reports a missing provider or active contract.
type NotFoundError struct {
	Entity string // "Provider", "Active contract"
	ID     string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError reports malformed input, e.g. a wRVU term without a rate.
type ValidationError struct {
	Field  string
	Reason string
	Err    error // optional, more specific sentinel
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

// ExternalDataError reports a data source that failed or returned garbage.
type ExternalDataError struct {
	Source string // "provider", "contract", "productivity", "benchmarks"
	Err    error
}

func (e *ExternalDataError) Error() string {
	return fmt.Sprintf("external data (%s): %v", e.Source, e.Err)
}

func (e *ExternalDataError) Unwrap() []error {
	return []error{ErrExternalData, e.Err}
}

func externalErr(source string, err error) error {
	if err == nil {
		return nil
	}
	// Already categorized (e.g. a stored term that fails validation).
	if errors.Is(err, ErrExternalData) || errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &ExternalDataError{Source: source, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing provider or contract.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidPeriod)
}

// IsExternal returns true if a data source failed.
func IsExternal(err error) bool {
	return errors.Is(err, ErrExternalData)
}

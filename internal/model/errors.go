package model

import "errors"

var (
	// ErrInvalidInput is returned for caller errors: empty text, non-scalar metadata, negative k.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable is returned when the ledger cannot be opened, read, or written.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned by point lookups for ids that were never assigned.
	ErrNotFound = errors.New("memory not found")

	// ErrMaintenanceCycleFailed wraps any failure inside a maintenance cycle.
	ErrMaintenanceCycleFailed = errors.New("maintenance cycle failed")

	// ErrCycleInProgress is returned when a maintenance cycle is requested while one is running.
	ErrCycleInProgress = errors.New("maintenance cycle already in progress")
)

// Kind names the error class of err for user-facing output.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, ErrStoreUnavailable):
		return "StoreUnavailable"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrCycleInProgress):
		return "CycleInProgress"
	case errors.Is(err, ErrMaintenanceCycleFailed):
		return "MaintenanceCycleFailed"
	default:
		return "Internal"
	}
}

package storage

import (
	"errors"
	"fmt"

	"github.com/wpl-go/weather-provider-storage/internal/meteo"
)

var (
	// ErrPartitionNotFound is returned when a partition key is not present
	// in the file index.
	ErrPartitionNotFound = errors.New("partition not found in index")

	// ErrUnsatisfiedRequest is returned by strict-mode reads when one or
	// more requested sub-ranges could not be satisfied.
	ErrUnsatisfiedRequest = errors.New("request could not be fully satisfied")
)

// FetchError reports that a live fetch from the upstream provider failed or
// timed out after the configured retries. It is scoped to one sub-range and
// never aborts sub-ranges that already succeeded.
type FetchError struct {
	ModelCode string
	Period    meteo.Period
	Attempts  int
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("live fetch for model %s over %s failed after %d attempt(s): %v",
		e.ModelCode, e.Period, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CorruptionError reports that the index references data that is absent or
// unreadable in durable storage. It signals an integrity violation and is
// never retried.
type CorruptionError struct {
	Key    string
	Path   string
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("storage corruption for partition %s (%s): %s", e.Key, e.Path, e.Reason)
}

// IOError reports a durable-storage access failure. Transient conditions are
// retried a bounded number of times before one of these is surfaced.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("storage %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

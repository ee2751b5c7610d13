package resume

import "fmt"

// PersistenceError means the ledger could not be read or written, the run
// cannot continue safely after one.
type PersistenceError struct {
	Op          string
	BenchmarkID string
	Err         error
}

func (e *PersistenceError) Error() string {
	if e.BenchmarkID != "" {
		return fmt.Sprintf("persistence: %s (%s): %s", e.Op, e.BenchmarkID, e.Err)
	}
	return fmt.Sprintf("persistence: %s: %s", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceErr(op, benchmarkId string, err error) error {
	return &PersistenceError{Op: op, BenchmarkID: benchmarkId, Err: err}
}

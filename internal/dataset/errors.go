package dataset

// MismatchError reports a schema disagreement between datasets: differing
// dimension lengths, variable sets or units. It is fatal for the operation
// that produced it but never touches previously valid data.
type MismatchError struct {
	Reason string
}

func (e *MismatchError) Error() string {
	return "dataset schema mismatch: " + e.Reason
}

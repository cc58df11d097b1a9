package eligibility

import (
	"errors"
	"fmt"
)

// LookupError is a transient failure while obtaining a verdict: the registry
// was unreachable, timed out or answered with a server error. It is never a
// business verdict and is never cached as one.
type LookupError struct {
	TransactionType string
	UnitID          string
	Err             error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("eligibility: lookup for unit %s (%s) failed: %v", e.UnitID, e.TransactionType, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// IsLookupError reports whether err is or wraps a *LookupError.
func IsLookupError(err error) bool {
	var le *LookupError
	return errors.As(err, &le)
}

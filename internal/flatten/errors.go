package flatten

import (
	"fmt"

	"github.com/tinytelemetry/evtxcsv/internal/model"
)

// SkipError explains why a record could not be flattened.
type SkipError struct {
	Reason model.SkipReason
	Err    error
}

func (e *SkipError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("flatten: %s record: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("flatten: %s record", e.Reason)
}

func (e *SkipError) Unwrap() error {
	return e.Err
}

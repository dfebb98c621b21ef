package matfile

import (
	"errors"
	"fmt"
)

// ErrUnsupportedVersion is returned for MAT-files this package cannot read:
// Level 4 files and HDF5-based v7.3 files.
var ErrUnsupportedVersion = errors.New("unsupported MAT-file version")

// DecodeError reports bytes that could not be interpreted as MAT data.
type DecodeError struct {
	Offset int64
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("matfile: offset %d: %s", e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

package errors

import (
	"errors"
	"fmt"
)

// ErrLockUnavailable signals that the requested resource is currently locked.
var ErrLockUnavailable = errors.New("resource is locked")

// ErrMount signals a partition could not be mounted.
type ErrMount struct {
	Label string
	Sub   error
}

func (err ErrMount) Error() string {
	return fmt.Sprintf("mounting %s: %s", err.Label, err.Sub)
}

func (err ErrMount) Unwrap() error {
	return err.Sub
}

package errors

import "fmt"

// ErrFilesystem wraps a failed filesystem operation with the name of the
// operation and the path it was performed on.
type ErrFilesystem struct {
	Op   string
	Path string
	Err  error
}

func (e ErrFilesystem) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: filesystem error", e.Op, e.Path)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e ErrFilesystem) Unwrap() error {
	return e.Err
}

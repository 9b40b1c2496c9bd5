package errors

import "errors"

// ErrNotDirectory signals a directory operation was attempted on a file.
var ErrNotDirectory = errors.New("not a directory")

// ErrIsDirectory signals a file operation was attempted on a directory.
var ErrIsDirectory = errors.New("is a directory")

// ErrTooManyOpenFiles signals the mount reached its maximum of simultaneously
// open files.
var ErrTooManyOpenFiles = errors.New("too many open files")

// ErrUnmounted signals an operation on a mount that has been released.
var ErrUnmounted = errors.New("partition is not mounted")

package hashing

import (
	"errors"
	"fmt"
)

var (
	ErrFileAccess           = errors.New("file access error")
	ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")
	ErrMismatch             = errors.New("digest mismatch")
)

// FileAccessError reports a failure to open, stat or read the file being hashed.
type FileAccessError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

func (e *FileAccessError) Is(target error) bool { return target == ErrFileAccess }

// UnsupportedAlgorithmError reports an algorithm that has no digest provider.
type UnsupportedAlgorithmError struct {
	Name string
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported hash algorithm %q", e.Name)
}

func (e *UnsupportedAlgorithmError) Is(target error) bool { return target == ErrUnsupportedAlgorithm }

// MismatchError is returned by Verify when the computed digest differs from the expected one.
type MismatchError struct {
	Path      string
	Algorithm Algorithm
	Expected  string
	Actual    string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s digest mismatch for %s: expected %s, got %s", e.Algorithm, e.Path, e.Expected, e.Actual)
}

func (e *MismatchError) Is(target error) bool { return target == ErrMismatch }

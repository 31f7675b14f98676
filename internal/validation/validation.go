package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrInvalidPath   = errors.New("invalid file path")
	ErrPathNotExists = errors.New("path does not exist")
	ErrNotRegular    = errors.New("not a regular file")
	ErrEmptyString   = errors.New("value must not be empty")
	ErrOutOfRange    = errors.New("value out of range")
)

// ValidateFilePath checks p is non-empty and, when mustExist is set, that it
// names an existing file that is not a directory.
func ValidateFilePath(p string, mustExist bool) error {
	if p == "" {
		return ErrInvalidPath
	}
	p = filepath.Clean(p)
	if mustExist {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPathNotExists, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrNotRegular, p)
		}
	}
	return nil
}

func ValidateStringNonEmpty(s string) error {
	if s == "" {
		return ErrEmptyString
	}
	return nil
}

func ValidateRangeInt(v, min, max int) error {
	if v < min || v > max {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrOutOfRange, v, min, max)
	}
	return nil
}

func ValidateRangeInt64(v, min, max int64) error {
	if v < min || v > max {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrOutOfRange, v, min, max)
	}
	return nil
}

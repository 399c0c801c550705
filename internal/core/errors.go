package core

import (
	"errors"
	"fmt"
)

// IndexErrorKind classifies card index failures.
type IndexErrorKind string

const (
	IndexUnavailable IndexErrorKind = "unavailable"
	IndexQuery       IndexErrorKind = "query"
	IndexRateLimited IndexErrorKind = "rate_limited"
	IndexDecode      IndexErrorKind = "decode"
)

// IndexError is returned by CardIndex implementations when a search fails.
type IndexError struct {
	Kind IndexErrorKind
	Op   string
	Name string
	Err  error
}

func (e *IndexError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("card index %s", e.Kind)
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.Name != "" {
		msg += fmt.Sprintf(" for %q", e.Name)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IndexError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewIndexError wraps err with a classification.
func NewIndexError(kind IndexErrorKind, op, name string, err error) *IndexError {
	return &IndexError{Kind: kind, Op: op, Name: name, Err: err}
}

// IndexErrorKindOf returns the classification of err, or IndexQuery when err is
// not an IndexError.
func IndexErrorKindOf(err error) IndexErrorKind {
	var ie *IndexError
	if errors.As(err, &ie) && ie.Kind != "" {
		return ie.Kind
	}
	return IndexQuery
}

// ErrImageNotFound is returned by image locators when no file matches.
var ErrImageNotFound = errors.New("image not found")

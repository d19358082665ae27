package binder

import (
	"errors"
	"fmt"
)

var (
	ErrMissingInputDirectory = errors.New("input directory does not exist")
	ErrNoInputFiles          = errors.New("no PDF files found in input directory")
)

// Kind separates "nothing to do" from "something broke".
type Kind int

const (
	// KindConfiguration covers a missing input directory or an empty file set.
	// Nothing has been loaded and no output is written.
	KindConfiguration Kind = iota + 1
	// KindLibraryOperation covers any failed load, transform, merge or write.
	KindLibraryOperation
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration error"
	case KindLibraryOperation:
		return "library operation error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by Run for every failed run.
type Error struct {
	Kind  Kind
	Op    string
	State State // state the run was in when it failed
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a run error, or false when err did not come from Run.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

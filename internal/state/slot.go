package state

import (
	"errors"
	"fmt"
)

// Field discipline errors. Every State accessor wraps one of these.
var (
	ErrNotSet          = errors.New("not set")
	ErrAlreadySet      = errors.New("already set")
	ErrAlreadyModified = errors.New("already modified")
	ErrModelMismatch   = errors.New("model is not the stratum's effective model")

	// ErrNotRecorded is returned for a stage that has no result yet. It
	// matches ErrNotSet.
	ErrNotRecorded = fmt.Errorf("stage result %w", ErrNotSet)
)

type phase uint8

const (
	unset phase = iota
	isSet
	modified
)

// slot is a write-once field that may be modified at most once after it
// is first set.
type slot[T any] struct {
	phase phase
	value T
}

func (s *slot[T]) set(v T) error {
	if s.phase != unset {
		return ErrAlreadySet
	}
	s.value, s.phase = v, isSet
	return nil
}

func (s *slot[T]) modify(v T) error {
	switch s.phase {
	case unset:
		return ErrNotSet
	case modified:
		return ErrAlreadyModified
	}
	s.value, s.phase = v, modified
	return nil
}

func (s *slot[T]) get() (T, error) {
	if s.phase == unset {
		var zero T
		return zero, ErrNotSet
	}
	return s.value, nil
}

func (s *slot[T]) ok() bool { return s.phase != unset }

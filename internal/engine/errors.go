package engine

import "errors"

var (
	// ErrInvalidLevel is returned when an aggressiveness level falls outside 1..10.
	ErrInvalidLevel = errors.New("invalid aggressiveness level")
	// ErrInvalidSignal is returned when a raw signal snapshot is structurally incomplete.
	ErrInvalidSignal = errors.New("invalid member signals")
)

package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when a task status update is not
	// allowed by the transition table. The task is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
)

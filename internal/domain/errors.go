package domain

import "errors"

var (
	// ErrInvalidInput marks a malformed submission or an out-of-range value.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEvaluation marks a failed call to the external tagging or scoring judge.
	ErrEvaluation = errors.New("external evaluation failed")

	// ErrDuplicateVote is returned when a voter repeats a vote on the same blow.
	ErrDuplicateVote = errors.New("duplicate vote")
)

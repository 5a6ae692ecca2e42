package homography

import (
	"errors"
	"fmt"
)

// ErrDegenerateInput matches every error caused by correspondences that
// cannot determine a homography, including too few of them.
var ErrDegenerateInput = errors.New("degenerate correspondences")

// InsufficientCorrespondencesError is returned when fewer than
// MinCorrespondences point pairs are supplied.
type InsufficientCorrespondencesError struct {
	Got  int
	Need int
}

func (e *InsufficientCorrespondencesError) Error() string {
	return fmt.Sprintf("insufficient correspondences: got %d, need at least %d", e.Got, e.Need)
}

// Is lets errors.Is(err, ErrDegenerateInput) match.
func (e *InsufficientCorrespondencesError) Is(target error) bool {
	return target == ErrDegenerateInput
}

// DegenerateInputError is returned when the correspondences make the linear
// system singular or rank deficient (collinear points, repeated points).
type DegenerateInputError struct {
	Reason string
	Rank   int // rank of the coefficient matrix, 0 when not computed
	Err    error
}

func (e *DegenerateInputError) Error() string {
	msg := "degenerate input: " + e.Reason
	if e.Rank > 0 {
		msg += fmt.Sprintf(" (rank %d of %d)", e.Rank, unknowns)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DegenerateInputError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDegenerateInput) match.
func (e *DegenerateInputError) Is(target error) bool {
	return target == ErrDegenerateInput
}

// Package zkerr holds the error taxonomy shared by the executor, the
// arithmetizer and the proving and verifying engines.
package zkerr

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch reports a disagreement between declared and actual
	// tensor dimensions.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrRangeViolation reports a value outside its declared bit-width.
	ErrRangeViolation = errors.New("range violation")
	// ErrProtocolViolation reports a message or a state transition that the
	// protocol does not allow.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrCommitmentFailure reports that the commitment scheme could not
	// commit or open.
	ErrCommitmentFailure = errors.New("commitment failure")
)

// RoundError ties an error to a round of a sumcheck instance. Rounds are
// counted from the start of the instance; the final evaluation check is
// reported as the round after the last one.
type RoundError struct {
	Round int
	Err   error
}

func (e *RoundError) Error() string {
	return fmt.Sprintf("round %d: %v", e.Round, e.Err)
}

func (e *RoundError) Unwrap() error {
	return e.Err
}

// LayerError ties an error to a layer index and a running round index
// inside that layer.
type LayerError struct {
	Layer int
	Round int
	Err   error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("layer %d round %d: %v", e.Layer, e.Round, e.Err)
}

func (e *LayerError) Unwrap() error {
	return e.Err
}

// Round wraps err with round information.
func Round(round int, err error) error {
	return &RoundError{Round: round, Err: err}
}

// Shape builds an ErrShapeMismatch with a formatted detail.
func Shape(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShapeMismatch, fmt.Sprintf(format, args...))
}

// Range builds an ErrRangeViolation with a formatted detail.
func Range(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRangeViolation, fmt.Sprintf(format, args...))
}

// Protocol builds an ErrProtocolViolation with a formatted detail.
func Protocol(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}

// Commitment wraps a scheme error as an ErrCommitmentFailure, keeping the
// original error in the chain.
func Commitment(err error) error {
	if err == nil || errors.Is(err, ErrCommitmentFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCommitmentFailure, err)
}

// ShiftRound adds offset to the round of a *RoundError in err. Other errors
// are returned as they are.
func ShiftRound(err error, offset int) error {
	var re *RoundError
	if offset == 0 || !errors.As(err, &re) {
		return err
	}
	return &RoundError{Round: re.Round + offset, Err: re.Err}
}

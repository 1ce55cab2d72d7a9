package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Structured errors below unwrap to one of these so callers
// can branch with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrDistribution       = errors.New("unable to distribute cost across family members")
	ErrPersistence        = errors.New("persistence failure")
	ErrCompensation       = errors.New("compensation failed")
	ErrNotFound           = errors.New("not found")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Shortfall describes one member who cannot cover an individual redemption.
type Shortfall struct {
	MemberID  int64 `json:"member_id"`
	Available int   `json:"available"`
	Required  int   `json:"required"`
}

// InsufficientPointsError is returned before any write when a redemption is
// not affordable. Family redemptions fill Available/Required with pool totals;
// individual redemptions list the members who are short.
type InsufficientPointsError struct {
	Available int
	Required  int
	Short     []Shortfall
}

func (e *InsufficientPointsError) Error() string {
	if len(e.Short) == 0 {
		return fmt.Sprintf("not enough family points: %d available, %d required", e.Available, e.Required)
	}
	parts := make([]string, 0, len(e.Short))
	for _, s := range e.Short {
		parts = append(parts, fmt.Sprintf("member %d has %d of %d", s.MemberID, s.Available, s.Required))
	}
	return "not enough points: " + strings.Join(parts, ", ")
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// DistributionError means the family cascade could not allocate the full cost
// even though the pooled total looked sufficient.
type DistributionError struct {
	Cost      int
	Remaining int
}

func (e *DistributionError) Error() string {
	return fmt.Sprintf("unable to distribute cost across family members: %d of %d unallocated", e.Remaining, e.Cost)
}

func (e *DistributionError) Unwrap() error { return ErrDistribution }

// PersistenceError wraps a failed store call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// CompensationError means a partially applied redemption could not be fully
// reversed. Unreversed lists the deductions still present in the ledger and
// needs manual reconciliation.
type CompensationError struct {
	OperationID string
	Unreversed  []Deduction
	Cause       error
	Err         error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("redemption %s left %d unreversed deductions after %v: %v",
		e.OperationID, len(e.Unreversed), e.Cause, e.Err)
}

func (e *CompensationError) Unwrap() []error { return []error{ErrCompensation, e.Err} }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// IsClientError reports whether err is caused by the request rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrNotFound)
}

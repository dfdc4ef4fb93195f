/*
errors.go - Error kinds of the reconciliation engine

ERROR CATEGORIES:
  1. MalformedInput - a scan without subject or timestamp, bad dates
  2. PolicyViolation - an update the pairing rules refuse
  3. StoreFailure - the key-value collaborator failed a read or write

Every per-key error carries the (subject, date) key so a failure can be traced
to exactly one record.
*/
package attendance

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is returned for scans or parameters that cannot be used.
	ErrMalformedInput = errors.New("malformed input")

	// ErrPolicyViolation is returned when an incremental update is refused.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrStoreFailure is returned when the store collaborator fails.
	ErrStoreFailure = errors.New("store failure")

	// ErrNotFound is returned when a requested record or account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyApplied is returned when a scan id has already been archived.
	ErrAlreadyApplied = errors.New("scan already applied")
)

// KeyError is a store failure attributed to one record key.
type KeyError struct {
	Key RecordKey
	Op  string
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *KeyError) Unwrap() []error { return []error{ErrStoreFailure, e.Err} }

// PolicyViolationError explains why an incremental update was refused.
type PolicyViolationError struct {
	Key    RecordKey
	Reason string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy violation for %s: %s", e.Key, e.Reason)
}

func (e *PolicyViolationError) Unwrap() error { return ErrPolicyViolation }

func storeErr(op string, err error) error {
	if errors.Is(err, ErrStoreFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreFailure, op, err)
}

func IsPolicyViolation(err error) bool { return errors.Is(err, ErrPolicyViolation) }
func IsMalformed(err error) bool       { return errors.Is(err, ErrMalformedInput) }
func IsStoreFailure(err error) bool    { return errors.Is(err, ErrStoreFailure) }
func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
func IsAlreadyApplied(err error) bool  { return errors.Is(err, ErrAlreadyApplied) }

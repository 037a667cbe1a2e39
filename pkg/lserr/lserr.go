// Package lserr defines the engine's error-kind taxonomy (spec §7),
// collapsed from the original source's wider exception hierarchy
// (original_source/lstore/transaction_exceptions.py) down to the five
// kinds spec.md actually distinguishes. All are sentinel errors usable
// with errors.Is, and Wrap/Kind let callers attach context without losing
// the sentinel.
package lserr

import "errors"

var (
	// ErrInvalidArgument covers column count mismatches, out-of-range
	// integers, and unknown column references.
	ErrInvalidArgument = errors.New("lstore: invalid argument")
	// ErrNotFound covers a missing record, index entry, or page.
	ErrNotFound = errors.New("lstore: not found")
	// ErrLockConflict is raised by the lock manager's no-wait policy.
	ErrLockConflict = errors.New("lstore: lock conflict")
	// ErrTxnAborted is returned once a transaction has aborted, whether
	// due to a lock conflict or a failed query.
	ErrTxnAborted = errors.New("lstore: transaction aborted")
	// ErrIO covers a persistent I/O failure that a load-time fallback
	// could not absorb.
	ErrIO = errors.New("lstore: io failure")
)

// Wrap attaches msg to kind while preserving errors.Is(result, kind).
func Wrap(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg + ": " + e.kind.Error() }
func (e *kindError) Unwrap() error { return e.kind }

// Kind returns the sentinel error kind err wraps, or nil if err does not
// wrap one of this package's kinds.
func Kind(err error) error {
	for _, k := range []error{ErrInvalidArgument, ErrNotFound, ErrLockConflict, ErrTxnAborted, ErrIO} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

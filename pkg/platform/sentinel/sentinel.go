// Package sentinel names the storage facts that stores report and services
// translate into domain errors. Input validation belongs in domain-errors.
package sentinel

import "errors"

var (
	// ErrNotFound: no row for the key.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed: a unique key, such as (asset, claimant), is taken.
	ErrAlreadyUsed = errors.New("already used")
	// ErrStaleWrite: a compare-and-set saw a version other than the one read.
	ErrStaleWrite = errors.New("stale write")
	// ErrUnavailable: the backing store could not be reached.
	ErrUnavailable = errors.New("unavailable")
)

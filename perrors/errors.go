// Package perrors defines the sentinel errors surfaced across the
// library's package boundaries. Every exported error is wrapped with
// enough context via fmt.Errorf's %w verb to remain matchable with
// errors.Is/errors.As while still carrying a useful message.
package perrors

import "errors"

// ErrInvalidInstanceNumber is returned by MultiPaxos.SetProposal when
// the caller's instance_num does not match the currently active
// instance.
var ErrInvalidInstanceNumber = errors.New("paxos: instance number does not match the active instance")

// ErrDurabilityFailure wraps an underlying I/O error encountered while
// committing a DurableStore record. Save does not retry; the record is
// not committed.
var ErrDurabilityFailure = errors.New("paxos: durable store commit failed")

// ErrUnrecoverableFailure is returned by a DurableStore's Open/recover
// path when neither backing file is readable and at least one is
// non-empty, i.e. both appear corrupted rather than simply new.
var ErrUnrecoverableFailure = errors.New("paxos: durable store is unrecoverable, both records are corrupt")

// ErrFileCorrupted classifies a single DurableStore record as failing
// its MD5 check. Open only logs it and falls back to the other file; a
// record shorter than the fixed 32-byte header is logged as truncated.
var ErrFileCorrupted = errors.New("paxos: durable store record failed integrity check")

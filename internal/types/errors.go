package types

import "errors"

// Error taxonomy for the save pipeline. None of these are fatal to the
// process: the monitor survives any single bad clipboard entry or transient
// I/O failure and keeps observing subsequent changes. A busy clipboard is
// not an error: the reader reports it as a KindBusy descriptor and the next
// notification retries.
var (
	// ErrDecode: clipboard bytes could not be decoded into an image. The
	// item is skipped and monitoring continues.
	ErrDecode = errors.New("image decode failed")

	// ErrConfiguration: the save destination is missing or unwritable.
	// Surfaced to the user rather than retried.
	ErrConfiguration = errors.New("save destination not usable")

	// ErrNameExhausted: no collision-free filename could be derived from
	// the configured pattern.
	ErrNameExhausted = errors.New("filename collision suffixes exhausted")
)

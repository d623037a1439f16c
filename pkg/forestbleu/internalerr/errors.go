package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// Reference loading and lookup
	ErrLoad            = errors.New("reference load failed")
	ErrUnknownSentence = errors.New("sentence not in reference set")

	// Vocabulary lifecycle
	ErrVocabFrozen = errors.New("vocabulary is frozen")

	// Hypergraph search preconditions
	ErrNotTopological = errors.New("graph is not topologically sorted")
	ErrNoDerivation   = errors.New("no derivation reaches the root")
	ErrStateWritten   = errors.New("vertex state already written")
	ErrBadStats       = errors.New("sufficient statistics have the wrong size")

	ErrUnknownMetric = errors.New("unknown metric")
)

package errors

import "errors"

var (
	// ErrNotFound marks missing resources. Callers that have a defined
	// empty state (no memory yet, no conversation head) absorb it locally.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSessionBusy means a turn or stream is already active on the
	// conversation; the caller retries later.
	ErrSessionBusy = errors.New("session busy")
	// ErrDimensionMismatch means a stored or query embedding disagrees with
	// the configured vector size. Data-integrity bug; never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrUnsupportedArtifactKind marks a single engine output that cannot be
	// normalized. The artifact is skipped; the turn continues.
	ErrUnsupportedArtifactKind = errors.New("unsupported artifact kind")
	// ErrGenerationFailed means the design engine call failed; the turn is
	// aborted with no lineage or artifact mutation.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrCommitFailed means the turn transaction was rolled back; nothing
	// from the turn is visible and the caller may retry.
	ErrCommitFailed = errors.New("commit failed")
)

package safe

import "errors"

var (
	ErrNotAnOwner       = errors.New("signer is not an owner of the safe")
	ErrAlreadyExecuted  = errors.New("proposal already executed")
	ErrThresholdNotMet  = errors.New("approval threshold not met")
	ErrUnknownSafe      = errors.New("unknown safe")
	ErrUnknownProposal  = errors.New("unknown proposal")
	ErrInvalidThreshold = errors.New("threshold must be between 1 and the owner count")
	ErrDuplicateOwner   = errors.New("duplicate owner")
	ErrStaleSnapshot    = errors.New("stale snapshot: approval state changed since it was read")
)

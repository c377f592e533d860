package streaming

import "errors"

var (
	ErrAlreadyPaused         = errors.New("stream is already paused")
	ErrNotPaused             = errors.New("stream is not paused")
	ErrAlreadyCancelled      = errors.New("stream is already cancelled")
	ErrStreamClosed          = errors.New("stream is closed")
	ErrInsufficientAccrued   = errors.New("requested amount exceeds withdrawable balance")
	ErrWithdrawLimitExceeded = errors.New("requested amount exceeds withdraw limit")
	ErrInvalidTimeframe      = errors.New("stream end must be after start")
)

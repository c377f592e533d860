package escrow

import "errors"

var (
	ErrInsufficientVaultBalance = errors.New("insufficient vault balance")
	ErrOverRelease              = errors.New("release exceeds committed balance")
)

package coordinator

import (
	"github.com/gagliardetto/solana-go"

	"streamvault-go/internal/streaming"
)

// Guarded operation descriptors. One type per kind, closed set: the
// commit switch rejects anything else. All parameters are immutable once
// proposed.

// InitOp opens a new stream funded from the safe's vault.
type InitOp struct {
	Safe          solana.PublicKey
	Receiver      solana.PublicKey
	Token         streaming.TokenKind
	Start         int64
	End           int64
	Amount        uint64
	WithdrawLimit uint64
}

func (op InitOp) OperationKind() string { return "init_stream" }

func (op InitOp) AccountAccess() []solana.PublicKey {
	return []solana.PublicKey{op.Safe, op.Receiver, op.Token.Mint}
}

// PauseOp freezes accrual on a running stream.
type PauseOp struct {
	Safe   solana.PublicKey
	Stream solana.PublicKey
}

func (op PauseOp) OperationKind() string { return "pause_stream" }

func (op PauseOp) AccountAccess() []solana.PublicKey {
	return []solana.PublicKey{op.Safe, op.Stream}
}

// ResumeOp restarts accrual on a paused stream.
type ResumeOp struct {
	Safe   solana.PublicKey
	Stream solana.PublicKey
}

func (op ResumeOp) OperationKind() string { return "resume_stream" }

func (op ResumeOp) AccountAccess() []solana.PublicKey {
	return []solana.PublicKey{op.Safe, op.Stream}
}

// CancelOp settles a stream: pays out the accrued remainder to the
// receiver (minus fee) and refunds the rest to the safe's vault.
type CancelOp struct {
	Safe   solana.PublicKey
	Stream solana.PublicKey
}

func (op CancelOp) OperationKind() string { return "cancel_stream" }

func (op CancelOp) AccountAccess() []solana.PublicKey {
	return []solana.PublicKey{op.Safe, op.Stream}
}

// InstantTransferOp moves uncommitted vault balance to a receiver
// immediately, a zero-duration stream settlement.
type InstantTransferOp struct {
	Safe     solana.PublicKey
	Receiver solana.PublicKey
	Token    streaming.TokenKind
	Amount   uint64
}

func (op InstantTransferOp) OperationKind() string { return "instant_transfer" }

func (op InstantTransferOp) AccountAccess() []solana.PublicKey {
	return []solana.PublicKey{op.Safe, op.Receiver, op.Token.Mint}
}

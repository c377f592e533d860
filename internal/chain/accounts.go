package chain

import (
	"fmt"

	ag_binary "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"streamvault-go/internal/safe"
	"streamvault-go/internal/streaming"
)

// On-chain account mirrors, borsh-encoded after an 8-byte discriminator.

type SafeAccount struct {
	CreateKey     solana.PublicKey
	Threshold     uint16
	Owners        []solana.PublicKey
	ProposalIndex uint64
}

type ProposalAccount struct {
	Safe      solana.PublicKey
	Index     uint64
	OpKind    uint8
	Approvals []bool
	Executed  bool
}

type StreamAccount struct {
	Sender         solana.PublicKey
	Receiver       solana.PublicKey
	Mint           solana.PublicKey
	Decimals       uint8
	Start          int64
	End            int64
	Total          uint64
	Withdrawn      uint64
	Paused         bool
	PausedAt       int64
	PausedSeconds  int64
	Cancelled      bool
	SettledAccrued uint64
	WithdrawLimit  uint64
	Escrow         solana.PublicKey
}

type VaultAccount struct {
	Owner     solana.PublicKey
	Mint      solana.PublicKey
	Deposited uint64
	Committed uint64
}

// decodeAccount strips the discriminator and borsh-decodes the rest.
func decodeAccount(data []byte, out interface{}) error {
	if len(data) <= 8 {
		return fmt.Errorf("account data too short: %d bytes", len(data))
	}
	decoder := ag_binary.NewBorshDecoder(data[8:])
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("failed to decode account: %w", err)
	}
	return nil
}

// Safe converts the on-chain record into the engine type.
func (a *SafeAccount) Safe(address solana.PublicKey) safe.Safe {
	return safe.Safe{
		ID:        address,
		Owners:    append([]solana.PublicKey(nil), a.Owners...),
		Threshold: a.Threshold,
	}
}

func (a *StreamAccount) tokenKind() streaming.TokenKind {
	if a.Mint.IsZero() {
		return streaming.Native()
	}
	return streaming.Fungible(a.Mint, a.Decimals)
}

// Stream converts the on-chain record into the model type.
func (a *StreamAccount) Stream() streaming.Stream {
	return streaming.Stream{
		Sender:         a.Sender,
		Receiver:       a.Receiver,
		Token:          a.tokenKind(),
		Escrow:         a.Escrow,
		Start:          a.Start,
		End:            a.End,
		Total:          a.Total,
		Withdrawn:      a.Withdrawn,
		Paused:         a.Paused,
		PausedAt:       a.PausedAt,
		PausedSeconds:  a.PausedSeconds,
		Cancelled:      a.Cancelled,
		SettledAccrued: a.SettledAccrued,
		WithdrawLimit:  a.WithdrawLimit,
	}
}

package streaming

import (
	"math"
	"math/bits"

	"github.com/gagliardetto/solana-go"
)

// WithdrawAll is the sentinel amount for "withdraw everything accrued".
const WithdrawAll = math.MaxUint64

// Stream is a single payment channel from Sender to Receiver with linear
// accrual between Start and End. The struct is a value: every Apply*
// operation returns a modified copy and leaves the receiver untouched, so
// a failed operation can never leave a stream half-mutated.
type Stream struct {
	Sender   solana.PublicKey
	Receiver solana.PublicKey
	Token    TokenKind
	Escrow   solana.PublicKey

	Start int64 // unix seconds
	End   int64 // unix seconds, always > Start

	Total     uint64
	Withdrawn uint64

	Paused        bool
	PausedAt      int64
	PausedSeconds int64 // completed pause intervals, excluded from accrual

	Cancelled      bool
	SettledAccrued uint64 // accrued amount frozen at cancellation

	// WithdrawLimit caps the amount of a single withdrawal. Zero means no
	// limit. Only meaningful for token streams.
	WithdrawLimit uint64
}

// NewStream validates the timeframe and returns a fresh stream.
func NewStream(sender, receiver solana.PublicKey, token TokenKind, start, end int64, total uint64) (Stream, error) {
	if end <= start {
		return Stream{}, ErrInvalidTimeframe
	}
	return Stream{
		Sender:   sender,
		Receiver: receiver,
		Token:    token,
		Start:    start,
		End:      end,
		Total:    total,
	}, nil
}

// Closed reports whether the stream can accept no further operations:
// either cancelled and fully settled, or fully withdrawn.
func (s Stream) Closed() bool {
	if s.Cancelled {
		return s.Withdrawn >= s.SettledAccrued
	}
	return s.Withdrawn >= s.Total
}

func (s Stream) pausedSeconds(now int64) int64 {
	total := s.PausedSeconds
	if s.Paused && now > s.PausedAt {
		total += now - s.PausedAt
	}
	return total
}

// Accrued returns the amount vested at the given instant. Accrual is
// linear over the stream duration, freezes while paused, and is fixed at
// SettledAccrued once cancelled. Monotonic non-decreasing in now for a
// fixed pause history.
func (s Stream) Accrued(now int64) uint64 {
	if s.Cancelled {
		return s.SettledAccrued
	}
	if now <= s.Start {
		return 0
	}
	elapsed := now - s.Start - s.pausedSeconds(now)
	if elapsed <= 0 {
		return 0
	}
	duration := s.End - s.Start
	if elapsed >= duration {
		return s.Total
	}
	return mulDiv(s.Total, uint64(elapsed), uint64(duration))
}

// Withdrawable returns accrued minus already-withdrawn, clamped to zero.
func (s Stream) Withdrawable(now int64) uint64 {
	accrued := s.Accrued(now)
	if accrued <= s.Withdrawn {
		return 0
	}
	return accrued - s.Withdrawn
}

// ApplyWithdraw increments the withdrawn total by amount, or by the whole
// withdrawable balance when amount is WithdrawAll. The returned paid value
// is the gross amount before any fee skim.
func (s Stream) ApplyWithdraw(now int64, amount uint64) (Stream, uint64, error) {
	if s.Closed() {
		return s, 0, ErrStreamClosed
	}
	available := s.Withdrawable(now)
	if amount == WithdrawAll {
		amount = available
		if s.WithdrawLimit > 0 && amount > s.WithdrawLimit {
			amount = s.WithdrawLimit
		}
	}
	if s.WithdrawLimit > 0 && amount > s.WithdrawLimit {
		return s, 0, ErrWithdrawLimitExceeded
	}
	if amount > available {
		return s, 0, ErrInsufficientAccrued
	}
	s.Withdrawn += amount
	return s, amount, nil
}

// ApplyPause freezes accrual at the current instant.
func (s Stream) ApplyPause(now int64) (Stream, error) {
	if s.Cancelled {
		return s, ErrAlreadyCancelled
	}
	if s.Paused {
		return s, ErrAlreadyPaused
	}
	s.Paused = true
	s.PausedAt = now
	return s, nil
}

// ApplyResume accumulates the elapsed pause interval and resumes accrual
// from the same elapsed-fraction basis.
func (s Stream) ApplyResume(now int64) (Stream, error) {
	if s.Cancelled {
		return s, ErrAlreadyCancelled
	}
	if !s.Paused {
		return s, ErrNotPaused
	}
	if now > s.PausedAt {
		s.PausedSeconds += now - s.PausedAt
	}
	s.Paused = false
	s.PausedAt = 0
	return s, nil
}

// Settlement is the result of cancelling a stream: the portion already
// accrued (owed to the receiver, minus what was withdrawn) and the
// remainder refunded to the sender.
type Settlement struct {
	Accrued        uint64 // total vested at cancellation
	ReceiverPayout uint64 // accrued minus previously withdrawn, gross of fee
	SenderRefund   uint64 // total committed minus accrued
}

// ApplyCancel freezes accrual permanently and computes the final split
// between receiver payout and sender refund.
func (s Stream) ApplyCancel(now int64) (Stream, Settlement, error) {
	if s.Cancelled {
		return s, Settlement{}, ErrAlreadyCancelled
	}
	accrued := s.Accrued(now)
	s.Cancelled = true
	s.SettledAccrued = accrued
	s.Paused = false
	s.PausedAt = 0
	settlement := Settlement{
		Accrued:        accrued,
		ReceiverPayout: accrued - s.Withdrawn,
		SenderRefund:   s.Total - accrued,
	}
	s.Withdrawn = accrued
	return s, settlement, nil
}

// mulDiv computes a*b/d without overflowing the intermediate product.
// Requires b <= d and d > 0, which holds for every call site (elapsed is
// strictly below duration, fee bps never exceed 10000).
func mulDiv(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, d)
	return q
}

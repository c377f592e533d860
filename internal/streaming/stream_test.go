package streaming

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStream(t *testing.T, total uint64, start, end int64) Stream {
	t.Helper()
	s, err := NewStream(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), Native(), start, end, total)
	require.NoError(t, err)
	return s
}

func TestNewStreamRejectsInvalidTimeframe(t *testing.T) {
	_, err := NewStream(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), Native(), 100, 100, 1000)
	require.ErrorIs(t, err, ErrInvalidTimeframe)

	_, err = NewStream(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), Native(), 100, 50, 1000)
	require.ErrorIs(t, err, ErrInvalidTimeframe)
}

func TestAccruedLinear(t *testing.T) {
	s := testStream(t, 1000, 0, 100)

	assert.EqualValues(t, 0, s.Accrued(-10))
	assert.EqualValues(t, 0, s.Accrued(0))
	assert.EqualValues(t, 250, s.Accrued(25))
	assert.EqualValues(t, 500, s.Accrued(50))
	assert.EqualValues(t, 1000, s.Accrued(100))
	assert.EqualValues(t, 1000, s.Accrued(5000))
}

func TestWithdrawThenInsufficient(t *testing.T) {
	s := testStream(t, 1000, 0, 100)

	s, paid, err := s.ApplyWithdraw(50, 500)
	require.NoError(t, err)
	assert.EqualValues(t, 500, paid)
	assert.EqualValues(t, 500, s.Withdrawn)

	_, _, err = s.ApplyWithdraw(50, 1)
	require.ErrorIs(t, err, ErrInsufficientAccrued)
}

func TestPauseFreezesAccrual(t *testing.T) {
	s := testStream(t, 1000, 0, 100)

	s, err := s.ApplyPause(20)
	require.NoError(t, err)
	assert.EqualValues(t, 200, s.Accrued(20))
	assert.EqualValues(t, 200, s.Accrued(35), "accrual frozen while paused")

	s, err = s.ApplyResume(40)
	require.NoError(t, err)
	assert.EqualValues(t, 600, s.Accrued(80), "20 paused seconds excluded from elapsed")
	assert.EqualValues(t, 1000, s.Accrued(120), "effective end shifted by pause duration")
	assert.EqualValues(t, 900, s.Accrued(110))
}

func TestPauseResumeStateErrors(t *testing.T) {
	s := testStream(t, 1000, 0, 100)

	_, err := s.ApplyResume(10)
	require.ErrorIs(t, err, ErrNotPaused)

	s, err = s.ApplyPause(10)
	require.NoError(t, err)
	_, err = s.ApplyPause(20)
	require.ErrorIs(t, err, ErrAlreadyPaused)
}

func TestAccruedMonotonic(t *testing.T) {
	s := testStream(t, 997, 10, 173)
	s, err := s.ApplyPause(30)
	require.NoError(t, err)
	s, err = s.ApplyResume(55)
	require.NoError(t, err)

	prev := uint64(0)
	for now := int64(0); now <= 300; now++ {
		accrued := s.Accrued(now)
		require.GreaterOrEqual(t, accrued, prev, "accrued must never decrease (now=%d)", now)
		prev = accrued
	}
	assert.EqualValues(t, 997, prev)
}

func TestCancelSettlement(t *testing.T) {
	s := testStream(t, 1000, 0, 100)

	s, settlement, err := s.ApplyCancel(50)
	require.NoError(t, err)
	assert.EqualValues(t, 500, settlement.Accrued)
	assert.EqualValues(t, 500, settlement.ReceiverPayout)
	assert.EqualValues(t, 500, settlement.SenderRefund)
	assert.EqualValues(t, settlement.ReceiverPayout+settlement.SenderRefund, s.Total)
	assert.True(t, s.Cancelled)
	assert.EqualValues(t, 500, s.Accrued(90), "accrual frozen at cancellation")

	_, _, err = s.ApplyCancel(60)
	require.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestCancelAfterPartialWithdraw(t *testing.T) {
	s := testStream(t, 1000, 0, 100)
	s, _, err := s.ApplyWithdraw(50, 300)
	require.NoError(t, err)

	s, settlement, err := s.ApplyCancel(50)
	require.NoError(t, err)
	assert.EqualValues(t, 200, settlement.ReceiverPayout, "payout excludes already-withdrawn funds")
	assert.EqualValues(t, 500, settlement.SenderRefund)
	assert.True(t, s.Closed())
}

func TestWithdrawAllSentinel(t *testing.T) {
	s := testStream(t, 1000, 0, 100)
	s, paid, err := s.ApplyWithdraw(75, WithdrawAll)
	require.NoError(t, err)
	assert.EqualValues(t, 750, paid)
	assert.EqualValues(t, 750, s.Withdrawn)
}

func TestWithdrawLimit(t *testing.T) {
	s := testStream(t, 1000, 0, 100)
	s.WithdrawLimit = 100

	_, _, err := s.ApplyWithdraw(50, 200)
	require.ErrorIs(t, err, ErrWithdrawLimitExceeded)

	s, paid, err := s.ApplyWithdraw(50, WithdrawAll)
	require.NoError(t, err)
	assert.EqualValues(t, 100, paid, "withdraw-all clamps to the limit")
}

func TestClosedStreamRejectsWithdraw(t *testing.T) {
	s := testStream(t, 1000, 0, 100)
	s, _, err := s.ApplyWithdraw(100, 1000)
	require.NoError(t, err)
	require.True(t, s.Closed())

	_, _, err = s.ApplyWithdraw(110, 1)
	require.ErrorIs(t, err, ErrStreamClosed)
}

func TestWithdrawnNeverExceedsAccrued(t *testing.T) {
	s := testStream(t, 12345, 0, 1000)
	for now := int64(100); now <= 1000; now += 100 {
		var err error
		s, _, err = s.ApplyWithdraw(now, s.Withdrawable(now))
		require.NoError(t, err)
		require.LessOrEqual(t, s.Withdrawn, s.Accrued(now))
	}
	assert.EqualValues(t, 12345, s.Withdrawn)
}

package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamvault-go/internal/chain"
	"streamvault-go/internal/escrow"
	"streamvault-go/internal/safe"
	"streamvault-go/internal/streaming"
)

type fixture struct {
	coordinator *Coordinator
	engine      *safe.Engine
	ledger      *escrow.Ledger
	safeID      solana.PublicKey
	owners      []solana.PublicKey
	now         *int64
}

func newFixture(t *testing.T, ownerCount int, threshold uint16, feeBps uint16) *fixture {
	t.Helper()
	now := new(int64)
	engine := safe.NewEngine(nil)
	ledger := escrow.NewLedger(escrow.NewFeeVault(solana.NewWallet().PublicKey(), feeBps))
	builder := chain.NewInstructionBuilder(solana.PublicKey{})
	coord := New(engine, ledger, builder, nil, WithClock(func() time.Time {
		return time.Unix(*now, 0)
	}))

	owners := make([]solana.PublicKey, ownerCount)
	for i := range owners {
		owners[i] = solana.NewWallet().PublicKey()
	}
	resp := coord.CreateSafe(context.Background(), owners[0], solana.NewWallet().PublicKey(), owners, threshold)
	require.Equal(t, StatusSuccess, resp.Status, resp.Message)
	safeID := solana.MustPublicKeyFromBase58(resp.Data.(SafeData).Address)

	return &fixture{coordinator: coord, engine: engine, ledger: ledger, safeID: safeID, owners: owners, now: now}
}

func (f *fixture) proposeInit(t *testing.T, amount uint64, start, end int64) ProposalData {
	t.Helper()
	resp := f.coordinator.ProposeStreamOp(context.Background(), InitOp{
		Safe:     f.safeID,
		Receiver: solana.NewWallet().PublicKey(),
		Token:    streaming.Native(),
		Start:    start,
		End:      end,
		Amount:   amount,
	}, f.owners[0])
	require.Equal(t, StatusSuccess, resp.Status, resp.Message)
	return resp.Data.(ProposalData)
}

func (f *fixture) approve(t *testing.T, index uint64, owner solana.PublicKey) Response {
	t.Helper()
	return f.coordinator.ApproveAndMaybeCommit(context.Background(), index, owner, safe.ExpectAny)
}

func TestProposeApproveExecuteCreatesStream(t *testing.T) {
	f := newFixture(t, 3, 2, 0)
	ctx := context.Background()

	resp := f.coordinator.Deposit(ctx, f.safeID, streaming.Native(), 1500)
	require.Equal(t, StatusSuccess, resp.Status)

	proposal := f.proposeInit(t, 1000, 0, 100)
	assert.Equal(t, 1, proposal.Approvals)
	assert.False(t, proposal.Executed)

	// First approver is the proposer: still below threshold.
	resp = f.approve(t, proposal.Index, f.owners[0])
	require.Equal(t, StatusSuccess, resp.Status, resp.Message)
	data := resp.Data.(ProposalData)
	assert.False(t, data.Executed)
	assert.Equal(t, 1, data.Approvals)

	// Second distinct owner clears the threshold and commits.
	resp = f.approve(t, proposal.Index, f.owners[1])
	require.Equal(t, StatusSuccess, resp.Status, resp.Message)
	data = resp.Data.(ProposalData)
	assert.True(t, data.Executed)
	assert.Equal(t, 2, data.Approvals)

	streamAddr := f.coordinator.StreamAddress(f.safeID, proposal.Index)
	stream, err := f.coordinator.Stream(streamAddr)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, stream.Total)
	assert.Equal(t, f.safeID, stream.Sender)

	balance := f.ledger.Balance(f.safeID, streaming.Native())
	assert.EqualValues(t, 1000, balance.Committed)
	assert.EqualValues(t, 1500, balance.Deposited)
}

func TestUnderfundedInitRecoversAfterDeposit(t *testing.T) {
	f := newFixture(t, 2, 2, 0)
	ctx := context.Background()

	proposal := f.proposeInit(t, 1000, 0, 100)

	resp := f.approve(t, proposal.Index, f.owners[1])
	require.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Message, "insufficient vault balance")

	// The commit failed, so the proposal must still be pending.
	current, err := f.engine.Proposal(proposal.Index)
	require.NoError(t, err)
	assert.False(t, current.Executed)

	f.coordinator.Deposit(ctx, f.safeID, streaming.Native(), 1000)
	resp = f.approve(t, proposal.Index, f.owners[1])
	require.Equal(t, StatusSuccess, resp.Status, resp.Message)
	assert.True(t, resp.Data.(ProposalData).Executed)
}

func TestPauseResumeGuardedFlow(t *testing.T) {
	f := newFixture(t, 2, 1, 0)
	ctx := context.Background()
	f.coordinator.Deposit(ctx, f.safeID, streaming.Native(), 1000)

	proposal := f.proposeInit(t, 1000, 0, 100)
	resp := f.approve(t, proposal.Index, f.owners[0])
	require.Equal(t, StatusSuccess, resp.Status)
	streamAddr := f.coordinator.StreamAddress(f.safeID, proposal.Index)

	*f.now = 20
	resp = f.coordinator.ProposeStreamOp(ctx, PauseOp{Safe: f.safeID, Stream: streamAddr}, f.owners[1])
	require.Equal(t, StatusSuccess, resp.Status)
	resp = f.approve(t, resp.Data.(ProposalData).Index, f.owners[1])
	require.Equal(t, StatusSuccess, resp.Status, resp.Message)

	*f.now = 40
	resp = f.coordinator.ProposeStreamOp(ctx, ResumeOp{Safe: f.safeID, Stream: streamAddr}, f.owners[0])
	require.Equal(t, StatusSuccess, resp.Status)
	resp = f.approve(t, resp.Data.(ProposalData).Index, f.owners[0])
	require.Equal(t, StatusSuccess, resp.Status, resp.Message)

	*f.now = 80
	resp = f.coordinator.FetchAccruedAmount(streamAddr)
	require.Equal(t, StatusSuccess, resp.Status)
	assert.EqualValues(t, 600, resp.Data.(StreamData).Accrued, "20 paused seconds excluded")
}

func TestCancelConservation(t *testing.T) {
	f := newFixture(t, 2, 1, 250)
	ctx := context.Background()
	f.coordinator.Deposit(ctx, f.safeID, streaming.Native(), 1000)

	proposal := f.proposeInit(t, 1000, 0, 100)
	resp := f.approve(t, proposal.Index, f.owners[0])
	require.Equal(t, StatusSuccess, resp.Status)
	streamAddr := f.coordinator.StreamAddress(f.safeID, proposal.Index)

	*f.now = 50
	resp = f.coordinator.ProposeStreamOp(ctx, CancelOp{Safe: f.safeID, Stream: streamAddr}, f.owners[0])
	require.Equal(t, StatusSuccess, resp.Status)
	resp = f.approve(t, resp.Data.(ProposalData).Index, f.owners[0])
	require.Equal(t, StatusSuccess, resp.Status, resp.Message)

	stream, err := f.coordinator.Stream(streamAddr)
	require.NoError(t, err)
	assert.True(t, stream.Cancelled)

	// Payout 500 left the vault (12 of it as fee), refund 500 stays
	// uncommitted: 500 + 488 + 12 == 1000.
	balance := f.ledger.Balance(f.safeID, streaming.Native())
	assert.EqualValues(t, 500, balance.Deposited)
	assert.EqualValues(t, 0, balance.Committed)
	assert.EqualValues(t, 12, f.ledger.CollectedFees(streaming.Native()))

	resp = f.approve(t, proposal.Index, f.owners[1])
	require.Equal(t, StatusError, resp.Status, "cancel proposal already executed")
}

func TestInstantTransfer(t *testing.T) {
	f := newFixture(t, 2, 2, 250)
	ctx := context.Background()
	f.coordinator.Deposit(ctx, f.safeID, streaming.Native(), 1000)

	resp := f.coordinator.ProposeStreamOp(ctx, InstantTransferOp{
		Safe:     f.safeID,
		Receiver: solana.NewWallet().PublicKey(),
		Token:    streaming.Native(),
		Amount:   200,
	}, f.owners[0])
	require.Equal(t, StatusSuccess, resp.Status)

	resp = f.approve(t, resp.Data.(ProposalData).Index, f.owners[1])
	require.Equal(t, StatusSuccess, resp.Status, resp.Message)
	assert.True(t, resp.Data.(ProposalData).Executed)

	balance := f.ledger.Balance(f.safeID, streaming.Native())
	assert.EqualValues(t, 800, balance.Deposited)
	assert.EqualValues(t, 5, f.ledger.CollectedFees(streaming.Native()))
}

func TestWithdrawFromStream(t *testing.T) {
	f := newFixture(t, 2, 1, 250)
	ctx := context.Background()
	f.coordinator.Deposit(ctx, f.safeID, streaming.Native(), 1000)

	proposal := f.proposeInit(t, 1000, 0, 100)
	resp := f.approve(t, proposal.Index, f.owners[0])
	require.Equal(t, StatusSuccess, resp.Status)
	streamAddr := f.coordinator.StreamAddress(f.safeID, proposal.Index)

	*f.now = 50
	resp = f.coordinator.WithdrawFromStream(ctx, streamAddr, 500)
	require.Equal(t, StatusSuccess, resp.Status, resp.Message)
	transfer := resp.Data.(TransferData)
	assert.EqualValues(t, 500, transfer.Amount)
	assert.EqualValues(t, 12, transfer.Fee)
	assert.EqualValues(t, 488, transfer.Net)

	resp = f.coordinator.WithdrawFromStream(ctx, streamAddr, 1)
	require.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Message, "withdrawable")

	balance := f.ledger.Balance(f.safeID, streaming.Native())
	assert.EqualValues(t, 500, balance.Deposited)
	assert.EqualValues(t, 500, balance.Committed)
}

func TestStaleSnapshotRejected(t *testing.T) {
	f := newFixture(t, 2, 2, 0)
	ctx := context.Background()
	f.coordinator.Deposit(ctx, f.safeID, streaming.Native(), 1000)

	proposal := f.proposeInit(t, 1000, 0, 100)

	// A second owner read a stale snapshot and decided approve-only, but
	// their approval would reach the threshold.
	resp := f.coordinator.ApproveAndMaybeCommit(ctx, proposal.Index, f.owners[1], safe.ExpectApproveOnly)
	require.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Message, "stale snapshot")

	current, err := f.engine.Proposal(proposal.Index)
	require.NoError(t, err)
	assert.Equal(t, 1, current.ApprovedCount())
	assert.False(t, current.Executed)
}

func TestVaultWithdrawCommand(t *testing.T) {
	f := newFixture(t, 2, 2, 0)
	ctx := context.Background()
	f.coordinator.Deposit(ctx, f.safeID, streaming.Native(), 1000)

	resp := f.coordinator.Withdraw(ctx, f.safeID, solana.NewWallet().PublicKey(), streaming.Native(), 400)
	require.Equal(t, StatusSuccess, resp.Status, resp.Message)
	assert.EqualValues(t, 600, resp.Data.(VaultData).Deposited)

	resp = f.coordinator.Withdraw(ctx, f.safeID, solana.NewWallet().PublicKey(), streaming.Native(), 700)
	require.Equal(t, StatusError, resp.Status)
}

func TestUnknownStreamCommands(t *testing.T) {
	f := newFixture(t, 2, 1, 0)
	unknown := solana.NewWallet().PublicKey()

	resp := f.coordinator.FetchAccruedAmount(unknown)
	require.Equal(t, StatusError, resp.Status)

	resp = f.coordinator.WithdrawFromStream(context.Background(), unknown, 10)
	require.Equal(t, StatusError, resp.Status)
}

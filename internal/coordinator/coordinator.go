package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"streamvault-go/internal/chain"
	"streamvault-go/internal/escrow"
	"streamvault-go/internal/safe"
	"streamvault-go/internal/streaming"
)

var (
	ErrUnknownStream    = errors.New("unknown stream")
	ErrUnknownOperation = errors.New("unknown operation kind")
	ErrSubmissionFailed = errors.New("transaction submission failed")
	ErrZeroAmount       = errors.New("amount must be positive")
	ErrMissingReceiver  = errors.New("receiver must be set")
)

// Submitter hands a committed operation's instructions to the ledger.
// The RPC implementation retries per its own policy; a nil submitter
// keeps the coordinator fully local.
type Submitter interface {
	Submit(ctx context.Context, instructions []solana.Instruction, payer solana.PublicKey) (solana.Signature, error)
}

// OperationRecord is a row in the local operation history.
type OperationRecord struct {
	Safe      string
	Proposal  uint64
	Kind      string
	Amount    uint64
	Signature string
	Status    string
}

// History stores committed operations locally. A nil History disables
// recording.
type History interface {
	RecordOperation(rec OperationRecord) error
}

// Coordinator orchestrates guarded stream operations: it routes proposals
// through the approval engine and, once the threshold clears, commits the
// financial effect against the escrow ledger and stream model inside the
// same lock scope that flips the executed flag. A proposal is therefore
// never observably executed without its funds movement applied, and never
// applied twice.
type Coordinator struct {
	engine    *safe.Engine
	ledger    *escrow.Ledger
	builder   *chain.InstructionBuilder
	submitter Submitter
	history   History
	clock     func() time.Time
	log       *zap.Logger

	mu      sync.Mutex
	streams map[solana.PublicKey]*streaming.Stream
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithSubmitter(s Submitter) Option {
	return func(c *Coordinator) { c.submitter = s }
}

func WithHistory(h History) Option {
	return func(c *Coordinator) { c.history = h }
}

func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func New(engine *safe.Engine, ledger *escrow.Ledger, builder *chain.InstructionBuilder, log *zap.Logger, opts ...Option) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if builder == nil {
		builder = chain.NewInstructionBuilder(solana.PublicKey{})
	}
	c := &Coordinator{
		engine:  engine,
		ledger:  ledger,
		builder: builder,
		clock:   time.Now,
		log:     log,
		streams: make(map[solana.PublicKey]*streaming.Stream),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) now() int64 {
	return c.clock().Unix()
}

// CreateSafe registers a new M-of-N safe and submits its creation
// instruction.
func (c *Coordinator) CreateSafe(ctx context.Context, creator, createKey solana.PublicKey, owners []solana.PublicKey, threshold uint16) Response {
	address := c.builder.Resolver().SafeAddress(createKey)
	s, err := c.engine.CreateSafe(address, owners, threshold)
	if err != nil {
		return failure(err)
	}
	sig, err := c.submitInstructions(ctx, creator, func() (solana.Instruction, error) {
		return c.builder.CreateSafe(creator, createKey, owners, threshold)
	})
	if err != nil {
		return failure(err)
	}
	return success("safe created", SafeData{
		Address:   s.ID.String(),
		Owners:    keyStrings(s.Owners),
		Threshold: s.Threshold,
		Signature: sig,
	})
}

// ProposeStreamOp registers a guarded operation with the proposer's
// approval pre-set and submits the proposal instruction.
func (c *Coordinator) ProposeStreamOp(ctx context.Context, op safe.Operation, proposer solana.PublicKey) Response {
	safeID, opTag, err := describeOp(op)
	if err != nil {
		return failure(err)
	}
	proposal, err := c.engine.Propose(safeID, op, proposer)
	if err != nil {
		return failure(err)
	}
	s, err := c.engine.Safe(safeID)
	if err != nil {
		return failure(err)
	}
	sig, err := c.submitInstructions(ctx, proposer, func() (solana.Instruction, error) {
		return c.builder.Propose(safeID, proposer, proposal.Index, opTag, nil)
	})
	if err != nil {
		return failure(err)
	}
	c.record(OperationRecord{
		Safe:      safeID.String(),
		Proposal:  proposal.Index,
		Kind:      op.OperationKind(),
		Signature: sig,
		Status:    "proposed",
	})
	return success("proposal created", ProposalData{
		Index:     proposal.Index,
		Safe:      safeID.String(),
		Kind:      op.OperationKind(),
		Approvals: proposal.ApprovedCount(),
		Threshold: s.Threshold,
		Executed:  false,
		Signature: sig,
	})
}

// ApproveAndMaybeCommit approves a proposal as the given owner and, when
// the projected approval count clears the threshold, executes it: the
// operation is validated and applied to the ledger and stream state in
// the same step that marks the proposal executed. The caller may pass an
// expectation pre-computed from a fetched snapshot; if the authoritative
// state no longer matches, the call fails with a stale-snapshot error and
// nothing is mutated.
func (c *Coordinator) ApproveAndMaybeCommit(ctx context.Context, proposalIndex uint64, owner solana.PublicKey, expect safe.Expectation) Response {
	var committed *commitResult
	decision, err := c.engine.ApproveThenMaybeExecute(proposalIndex, owner, expect, func(op safe.Operation) error {
		result, err := c.commitOperation(proposalIndex, op)
		if err != nil {
			return err
		}
		committed = result
		return nil
	})
	if err != nil {
		return failure(err)
	}

	s, err := c.engine.Safe(decision.Proposal.Safe)
	if err != nil {
		return failure(err)
	}

	sig, err := c.submitDecision(ctx, owner, s.ID, decision)
	if err != nil {
		// Local state is committed; the submission failure is surfaced,
		// not rolled back.
		return failure(err)
	}

	status := "approved"
	if decision.Executed {
		status = "executed"
	}
	rec := OperationRecord{
		Safe:      s.ID.String(),
		Proposal:  decision.Proposal.Index,
		Kind:      decision.Proposal.Operation.OperationKind(),
		Signature: sig,
		Status:    status,
	}
	if committed != nil {
		rec.Amount = committed.amount
	}
	c.record(rec)

	return success(fmt.Sprintf("proposal %s", status), ProposalData{
		Index:     decision.Proposal.Index,
		Safe:      s.ID.String(),
		Kind:      decision.Proposal.Operation.OperationKind(),
		Approvals: decision.Proposal.ApprovedCount(),
		Threshold: s.Threshold,
		Executed:  decision.Executed,
		Signature: sig,
	})
}

type commitResult struct {
	amount uint64
	stream solana.PublicKey
}

// commitOperation validates and applies a guarded operation. It runs
// under the proposal lock; validation happens before any state is
// touched, so a failure leaves both the ledger and the stream map
// unchanged and the proposal unexecuted.
func (c *Coordinator) commitOperation(proposalIndex uint64, op safe.Operation) (*commitResult, error) {
	now := c.now()
	switch op := op.(type) {
	case InitOp:
		if op.Amount == 0 {
			return nil, ErrZeroAmount
		}
		if op.Receiver.IsZero() {
			return nil, ErrMissingReceiver
		}
		stream, err := streaming.NewStream(op.Safe, op.Receiver, op.Token, op.Start, op.End, op.Amount)
		if err != nil {
			return nil, err
		}
		stream.WithdrawLimit = op.WithdrawLimit
		stream.Escrow = c.builder.Resolver().EscrowAddress(op.Safe, op.Token.Mint)
		if err := c.ledger.ReserveForStream(op.Safe, op.Token, op.Amount); err != nil {
			return nil, err
		}
		address := c.builder.Resolver().StreamAddress(op.Safe, proposalIndex)
		c.mu.Lock()
		c.streams[address] = &stream
		c.mu.Unlock()
		c.log.Info("stream created",
			zap.String("stream", address.String()),
			zap.Uint64("total", op.Amount))
		return &commitResult{amount: op.Amount, stream: address}, nil

	case PauseOp:
		return c.mutateStream(op.Stream, func(s streaming.Stream) (streaming.Stream, uint64, error) {
			updated, err := s.ApplyPause(now)
			return updated, 0, err
		})

	case ResumeOp:
		return c.mutateStream(op.Stream, func(s streaming.Stream) (streaming.Stream, uint64, error) {
			updated, err := s.ApplyResume(now)
			return updated, 0, err
		})

	case CancelOp:
		return c.cancelStream(op.Safe, op.Stream, now)

	case InstantTransferOp:
		if op.Amount == 0 {
			return nil, ErrZeroAmount
		}
		if op.Receiver.IsZero() {
			return nil, ErrMissingReceiver
		}
		fee, net, err := c.ledger.TransferOut(op.Safe, op.Token, op.Amount)
		if err != nil {
			return nil, err
		}
		c.log.Info("instant transfer",
			zap.String("receiver", op.Receiver.String()),
			zap.Uint64("net", net),
			zap.Uint64("fee", fee))
		return &commitResult{amount: op.Amount}, nil

	default:
		return nil, ErrUnknownOperation
	}
}

func (c *Coordinator) mutateStream(address solana.PublicKey, mutate func(streaming.Stream) (streaming.Stream, uint64, error)) (*commitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams[address]
	if !ok {
		return nil, ErrUnknownStream
	}
	updated, amount, err := mutate(*s)
	if err != nil {
		return nil, err
	}
	*s = updated
	return &commitResult{amount: amount, stream: address}, nil
}

// cancelStream settles the stream. The refund release and the payout both
// come out of the committed balance this stream reserved at init, so once
// the cancellation itself validates, the ledger moves cannot fail.
func (c *Coordinator) cancelStream(safeID, address solana.PublicKey, now int64) (*commitResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams[address]
	if !ok {
		return nil, ErrUnknownStream
	}
	updated, settlement, err := s.ApplyCancel(now)
	if err != nil {
		return nil, err
	}
	if settlement.SenderRefund > 0 {
		if err := c.ledger.ReleaseFromStream(safeID, s.Token, settlement.SenderRefund); err != nil {
			return nil, err
		}
	}
	fee := uint64(0)
	net := uint64(0)
	if settlement.ReceiverPayout > 0 {
		fee, net, err = c.ledger.PayOut(safeID, s.Token, settlement.ReceiverPayout)
		if err != nil {
			return nil, err
		}
	}
	*s = updated
	c.log.Info("stream cancelled",
		zap.String("stream", address.String()),
		zap.Uint64("payout", net),
		zap.Uint64("fee", fee),
		zap.Uint64("refund", settlement.SenderRefund))
	return &commitResult{amount: settlement.ReceiverPayout, stream: address}, nil
}

// Deposit credits the safe's vault and submits the deposit instruction.
func (c *Coordinator) Deposit(ctx context.Context, owner solana.PublicKey, token streaming.TokenKind, amount uint64) Response {
	if amount == 0 {
		return failure(ErrZeroAmount)
	}
	c.ledger.Deposit(owner, token, amount)
	sig, err := c.submitInstructions(ctx, owner, func() (solana.Instruction, error) {
		return c.builder.Deposit(owner, token.Mint, amount)
	})
	if err != nil {
		return failure(err)
	}
	balance := c.ledger.Balance(owner, token)
	c.record(OperationRecord{Safe: owner.String(), Kind: "deposit", Amount: amount, Signature: sig, Status: "committed"})
	return success("deposit applied", VaultData{
		Owner:     owner.String(),
		Deposited: balance.Deposited,
		Committed: balance.Committed,
		Available: balance.Available(),
	})
}

// Withdraw moves uncommitted vault balance out to a recipient.
func (c *Coordinator) Withdraw(ctx context.Context, owner, recipient solana.PublicKey, token streaming.TokenKind, amount uint64) Response {
	if amount == 0 {
		return failure(ErrZeroAmount)
	}
	if err := c.ledger.Withdraw(owner, token, amount); err != nil {
		return failure(err)
	}
	sig, err := c.submitInstructions(ctx, owner, func() (solana.Instruction, error) {
		return c.builder.Withdraw(owner, recipient, token.Mint, amount)
	})
	if err != nil {
		return failure(err)
	}
	balance := c.ledger.Balance(owner, token)
	c.record(OperationRecord{Safe: owner.String(), Kind: "withdraw", Amount: amount, Signature: sig, Status: "committed"})
	return success("withdrawal applied", VaultData{
		Owner:     owner.String(),
		Deposited: balance.Deposited,
		Committed: balance.Committed,
		Available: balance.Available(),
	})
}

// WithdrawFromStream pays out part of the accrued balance to the stream's
// receiver. This is the receiver's own action and is not multisig-gated.
func (c *Coordinator) WithdrawFromStream(ctx context.Context, address solana.PublicKey, amount uint64) Response {
	now := c.now()
	c.mu.Lock()
	s, ok := c.streams[address]
	if !ok {
		c.mu.Unlock()
		return failure(ErrUnknownStream)
	}
	updated, paid, err := s.ApplyWithdraw(now, amount)
	if err != nil {
		c.mu.Unlock()
		return failure(err)
	}
	sender := s.Sender
	token := s.Token
	receiver := s.Receiver
	fee, net, err := c.ledger.PayOut(sender, token, paid)
	if err != nil {
		c.mu.Unlock()
		return failure(err)
	}
	*s = updated
	c.mu.Unlock()

	sig, err := c.submitInstructions(ctx, receiver, func() (solana.Instruction, error) {
		return c.builder.Withdraw(sender, receiver, token.Mint, net)
	})
	if err != nil {
		return failure(err)
	}
	c.record(OperationRecord{Safe: sender.String(), Kind: "stream_withdraw", Amount: paid, Signature: sig, Status: "committed"})
	return success("stream withdrawal applied", TransferData{Amount: paid, Fee: fee, Net: net, Signature: sig})
}

// FetchAccruedAmount reports the stream's accrual state at now.
func (c *Coordinator) FetchAccruedAmount(address solana.PublicKey) Response {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams[address]
	if !ok {
		return failure(ErrUnknownStream)
	}
	return success("accrued amount", StreamData{
		Address:      address.String(),
		Sender:       s.Sender.String(),
		Receiver:     s.Receiver.String(),
		Total:        s.Total,
		Accrued:      s.Accrued(now),
		Withdrawn:    s.Withdrawn,
		Withdrawable: s.Withdrawable(now),
		Paused:       s.Paused,
		Cancelled:    s.Cancelled,
	})
}

// Stream returns a snapshot of a tracked stream.
func (c *Coordinator) Stream(address solana.PublicKey) (streaming.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams[address]
	if !ok {
		return streaming.Stream{}, ErrUnknownStream
	}
	return *s, nil
}

// StreamAddress derives the address a stream created by the given
// proposal lives at.
func (c *Coordinator) StreamAddress(safeID solana.PublicKey, proposalIndex uint64) solana.PublicKey {
	return c.builder.Resolver().StreamAddress(safeID, proposalIndex)
}

func describeOp(op safe.Operation) (solana.PublicKey, uint8, error) {
	switch op := op.(type) {
	case InitOp:
		return op.Safe, chain.OpTagInit, nil
	case PauseOp:
		return op.Safe, chain.OpTagPause, nil
	case ResumeOp:
		return op.Safe, chain.OpTagResume, nil
	case CancelOp:
		return op.Safe, chain.OpTagCancel, nil
	case InstantTransferOp:
		return op.Safe, chain.OpTagInstantTransfer, nil
	default:
		return solana.PublicKey{}, 0, ErrUnknownOperation
	}
}

func (c *Coordinator) submitDecision(ctx context.Context, owner, safeID solana.PublicKey, decision safe.Decision) (string, error) {
	if c.submitter == nil {
		return "", nil
	}
	approveIx, err := c.builder.Approve(safeID, owner, decision.Proposal.Index)
	if err != nil {
		return "", err
	}
	instructions := []solana.Instruction{approveIx}
	if decision.Executed {
		executeIx, err := c.builder.Execute(safeID, owner, decision.Proposal.Index, decision.Proposal.Operation.AccountAccess())
		if err != nil {
			return "", err
		}
		instructions = append(instructions, executeIx)
	}
	sig, err := c.submitter.Submit(ctx, instructions, owner)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	return sig.String(), nil
}

func (c *Coordinator) submitInstructions(ctx context.Context, payer solana.PublicKey, build func() (solana.Instruction, error)) (string, error) {
	if c.submitter == nil {
		return "", nil
	}
	ix, err := build()
	if err != nil {
		return "", err
	}
	sig, err := c.submitter.Submit(ctx, []solana.Instruction{ix}, payer)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	return sig.String(), nil
}

func (c *Coordinator) record(rec OperationRecord) {
	if c.history == nil {
		return
	}
	if err := c.history.RecordOperation(rec); err != nil {
		c.log.Warn("failed to record operation", zap.Error(err))
	}
}

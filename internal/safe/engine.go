package safe

import (
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Operation is the guarded payload of a proposal. The engine treats it as
// opaque: it only needs a kind label for logging and the ordered list of
// accounts the operation touches.
type Operation interface {
	OperationKind() string
	AccountAccess() []solana.PublicKey
}

// Safe is an M-of-N signer group. Owners and threshold are immutable
// after creation.
type Safe struct {
	ID        solana.PublicKey
	Owners    []solana.PublicKey
	Threshold uint16
}

// OwnerIndex returns the position of key in the owner list.
func (s *Safe) OwnerIndex(key solana.PublicKey) (int, bool) {
	for i, owner := range s.Owners {
		if owner.Equals(key) {
			return i, true
		}
	}
	return 0, false
}

// Proposal is a pending or executed guarded operation. The approval
// vector is index-aligned with the safe's owner list. Executed flips
// false to true exactly once and is never unset.
type Proposal struct {
	Index     uint64
	Safe      solana.PublicKey
	Operation Operation
	Approvals []bool
	Executed  bool
}

// ApprovedCount counts distinct owner approvals.
func (p *Proposal) ApprovedCount() int {
	count := 0
	for _, approved := range p.Approvals {
		if approved {
			count++
		}
	}
	return count
}

// Expectation is the decision a caller pre-computed from a fetched
// snapshot. The engine re-validates it against authoritative state inside
// the proposal lock and rejects the call with ErrStaleSnapshot on
// mismatch, closing the fetch-then-act race between concurrent approvers.
type Expectation uint8

const (
	ExpectAny Expectation = iota
	ExpectApproveOnly
	ExpectExecution
)

// Decision reports what an approve call did.
type Decision struct {
	Proposal Proposal
	Executed bool
}

type proposalState struct {
	mu sync.Mutex
	p  Proposal
}

// Engine governs proposal lifecycles for any number of safes. All
// read-modify-write of a proposal's approval vector and executed flag
// happens under that proposal's own lock, so two concurrent approve or
// execute calls against the same proposal are serialized.
type Engine struct {
	mu        sync.Mutex
	safes     map[solana.PublicKey]*Safe
	proposals map[uint64]*proposalState
	nextIndex uint64
	log       *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		safes:     make(map[solana.PublicKey]*Safe),
		proposals: make(map[uint64]*proposalState),
		nextIndex: 1,
		log:       log,
	}
}

// CreateSafe registers a new signer group.
func (e *Engine) CreateSafe(id solana.PublicKey, owners []solana.PublicKey, threshold uint16) (*Safe, error) {
	if threshold < 1 || int(threshold) > len(owners) {
		return nil, ErrInvalidThreshold
	}
	seen := make(map[solana.PublicKey]struct{}, len(owners))
	for _, owner := range owners {
		if _, dup := seen[owner]; dup {
			return nil, ErrDuplicateOwner
		}
		seen[owner] = struct{}{}
	}
	s := &Safe{ID: id, Owners: append([]solana.PublicKey(nil), owners...), Threshold: threshold}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.safes[id] = s
	e.log.Info("safe created",
		zap.String("safe", id.String()),
		zap.Int("owners", len(owners)),
		zap.Uint16("threshold", threshold))
	return s, nil
}

// Safe returns the registered safe for id.
func (e *Engine) Safe(id solana.PublicKey) (*Safe, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.safes[id]
	if !ok {
		return nil, ErrUnknownSafe
	}
	return s, nil
}

// Propose creates a proposal with the proposer's approval pre-set:
// proposing counts as the first approval.
func (e *Engine) Propose(safeID solana.PublicKey, op Operation, proposer solana.PublicKey) (Proposal, error) {
	s, err := e.Safe(safeID)
	if err != nil {
		return Proposal{}, err
	}
	idx, ok := s.OwnerIndex(proposer)
	if !ok {
		return Proposal{}, ErrNotAnOwner
	}

	e.mu.Lock()
	index := e.nextIndex
	e.nextIndex++
	approvals := make([]bool, len(s.Owners))
	approvals[idx] = true
	state := &proposalState{p: Proposal{
		Index:     index,
		Safe:      safeID,
		Operation: op,
		Approvals: approvals,
	}}
	e.proposals[index] = state
	e.mu.Unlock()

	e.log.Info("proposal created",
		zap.Uint64("proposal", index),
		zap.String("safe", safeID.String()),
		zap.String("kind", op.OperationKind()),
		zap.String("proposer", proposer.String()))
	return state.snapshot(), nil
}

func (e *Engine) state(index uint64) (*proposalState, *Safe, error) {
	e.mu.Lock()
	state, ok := e.proposals[index]
	if !ok {
		e.mu.Unlock()
		return nil, nil, ErrUnknownProposal
	}
	s := e.safes[state.p.Safe]
	e.mu.Unlock()
	if s == nil {
		return nil, nil, ErrUnknownSafe
	}
	return state, s, nil
}

func (ps *proposalState) snapshot() Proposal {
	p := ps.p
	p.Approvals = append([]bool(nil), ps.p.Approvals...)
	return p
}

// Proposal returns a snapshot of the proposal at index.
func (e *Engine) Proposal(index uint64) (Proposal, error) {
	state, _, err := e.state(index)
	if err != nil {
		return Proposal{}, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.snapshot(), nil
}

// Approve sets the owner's approval. Re-approval by the same owner is a
// harmless no-op, never an error.
func (e *Engine) Approve(index uint64, owner solana.PublicKey) (Proposal, error) {
	state, s, err := e.state(index)
	if err != nil {
		return Proposal{}, err
	}
	idx, ok := s.OwnerIndex(owner)
	if !ok {
		return Proposal{}, ErrNotAnOwner
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.p.Executed {
		return Proposal{}, ErrAlreadyExecuted
	}
	state.p.Approvals[idx] = true
	return state.snapshot(), nil
}

// ThresholdMet reports whether distinct approvals reach the safe's
// threshold.
func (e *Engine) ThresholdMet(index uint64) (bool, error) {
	state, s, err := e.state(index)
	if err != nil {
		return false, err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.p.ApprovedCount() >= int(s.Threshold), nil
}

// Execute flips the executed flag and runs commit with the operation
// payload while still holding the proposal lock. If commit fails the flag
// is not set, so a proposal is never marked executed without its effect
// having landed. Exactly-once: a second Execute observes the flag and
// fails with ErrAlreadyExecuted.
func (e *Engine) Execute(index uint64, commit func(Operation) error) (Proposal, error) {
	state, s, err := e.state(index)
	if err != nil {
		return Proposal{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.p.Executed {
		return Proposal{}, ErrAlreadyExecuted
	}
	if state.p.ApprovedCount() < int(s.Threshold) {
		return Proposal{}, ErrThresholdNotMet
	}
	if commit != nil {
		if err := commit(state.p.Operation); err != nil {
			return Proposal{}, err
		}
	}
	state.p.Executed = true
	e.log.Info("proposal executed",
		zap.Uint64("proposal", index),
		zap.String("kind", state.p.Operation.OperationKind()))
	return state.snapshot(), nil
}

// ApproveThenMaybeExecute is the combined two-branch flow used by every
// guarded operation: approve, and execute in the same step when the
// projected distinct-approval count reaches the threshold. An owner's
// re-approval projects +0, so one owner approving twice can never satisfy
// the threshold on their own.
func (e *Engine) ApproveThenMaybeExecute(index uint64, owner solana.PublicKey, expect Expectation, commit func(Operation) error) (Decision, error) {
	state, s, err := e.state(index)
	if err != nil {
		return Decision{}, err
	}
	idx, ok := s.OwnerIndex(owner)
	if !ok {
		return Decision{}, ErrNotAnOwner
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.p.Executed {
		return Decision{}, ErrAlreadyExecuted
	}

	projected := state.p.ApprovedCount()
	if !state.p.Approvals[idx] {
		projected++
	}
	willExecute := projected >= int(s.Threshold)

	switch expect {
	case ExpectApproveOnly:
		if willExecute {
			return Decision{}, ErrStaleSnapshot
		}
	case ExpectExecution:
		if !willExecute {
			return Decision{}, ErrStaleSnapshot
		}
	}

	state.p.Approvals[idx] = true
	if !willExecute {
		e.log.Info("proposal approved",
			zap.Uint64("proposal", index),
			zap.String("owner", owner.String()),
			zap.Int("approvals", projected),
			zap.Uint16("threshold", s.Threshold))
		return Decision{Proposal: state.snapshot()}, nil
	}

	if commit != nil {
		if err := commit(state.p.Operation); err != nil {
			return Decision{}, err
		}
	}
	state.p.Executed = true
	e.log.Info("proposal approved and executed",
		zap.Uint64("proposal", index),
		zap.String("owner", owner.String()),
		zap.String("kind", state.p.Operation.OperationKind()))
	return Decision{Proposal: state.snapshot(), Executed: true}, nil
}

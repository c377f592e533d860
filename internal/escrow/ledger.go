package escrow

import (
	"sync"

	"github.com/gagliardetto/solana-go"

	"streamvault-go/internal/streaming"
)

// Vault is a per-owner, per-token holding area backing zero or more
// streams. Committed never exceeds Deposited.
type Vault struct {
	Owner     solana.PublicKey
	Token     streaming.TokenKind
	Deposited uint64
	Committed uint64
}

// Available is the uncommitted, withdrawable portion.
func (v *Vault) Available() uint64 {
	return v.Deposited - v.Committed
}

func (v *Vault) deposit(amount uint64) {
	v.Deposited += amount
}

func (v *Vault) reserve(amount uint64) error {
	if v.Committed+amount > v.Deposited {
		return ErrInsufficientVaultBalance
	}
	v.Committed += amount
	return nil
}

func (v *Vault) release(amount uint64) error {
	if amount > v.Committed {
		return ErrOverRelease
	}
	v.Committed -= amount
	return nil
}

func (v *Vault) withdraw(amount uint64) error {
	if amount > v.Available() {
		return ErrInsufficientVaultBalance
	}
	v.Deposited -= amount
	return nil
}

// FeeVault accumulates skimmed protocol fees per token mint for a single
// fee receiver. Changing the fee percentage is modelled as re-creation.
type FeeVault struct {
	Receiver  solana.PublicKey
	FeeBps    uint16
	collected map[solana.PublicKey]uint64
}

func NewFeeVault(receiver solana.PublicKey, feeBps uint16) *FeeVault {
	return &FeeVault{
		Receiver:  receiver,
		FeeBps:    feeBps,
		collected: make(map[solana.PublicKey]uint64),
	}
}

func (f *FeeVault) credit(token streaming.TokenKind, amount uint64) {
	f.collected[token.Mint] += amount
}

func (f *FeeVault) collectedFor(token streaming.TokenKind) uint64 {
	return f.collected[token.Mint]
}

type vaultKey struct {
	owner solana.PublicKey
	mint  solana.PublicKey
}

// Ledger is the authoritative local balance book: all vault mutation goes
// through it, one operation at a time.
type Ledger struct {
	mu     sync.Mutex
	vaults map[vaultKey]*Vault
	fees   *FeeVault
}

func NewLedger(fees *FeeVault) *Ledger {
	if fees == nil {
		fees = NewFeeVault(solana.PublicKey{}, 0)
	}
	return &Ledger{
		vaults: make(map[vaultKey]*Vault),
		fees:   fees,
	}
}

func (l *Ledger) FeeBps() uint16 {
	return l.fees.FeeBps
}

func (l *Ledger) vault(owner solana.PublicKey, token streaming.TokenKind) *Vault {
	key := vaultKey{owner: owner, mint: token.Mint}
	v, ok := l.vaults[key]
	if !ok {
		v = &Vault{Owner: owner, Token: token}
		l.vaults[key] = v
	}
	return v
}

// Balance returns a snapshot copy of the vault for the given owner and
// token kind.
func (l *Ledger) Balance(owner solana.PublicKey, token streaming.TokenKind) Vault {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.vault(owner, token)
}

// Deposit increments the deposited balance. Deposits are uncapped.
func (l *Ledger) Deposit(owner solana.PublicKey, token streaming.TokenKind, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vault(owner, token).deposit(amount)
}

// ReserveForStream commits part of the deposited balance to a stream.
func (l *Ledger) ReserveForStream(owner solana.PublicKey, token streaming.TokenKind, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.vault(owner, token).reserve(amount)
}

// ReleaseFromStream returns committed balance to the uncommitted pool,
// called when a stream settles or is cancelled.
func (l *Ledger) ReleaseFromStream(owner solana.PublicKey, token streaming.TokenKind, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.vault(owner, token).release(amount)
}

// Withdraw removes uncommitted balance from the vault.
func (l *Ledger) Withdraw(owner solana.PublicKey, token streaming.TokenKind, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.vault(owner, token).withdraw(amount)
}

// PayOut settles a gross stream payout from committed funds: the payout
// leaves the vault entirely, the fee portion is credited to the fee
// vault, and the net portion is what the receiver gets. Returns fee and
// net amounts.
func (l *Ledger) PayOut(owner solana.PublicKey, token streaming.TokenKind, gross uint64) (fee, net uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := l.vault(owner, token)
	if err := v.release(gross); err != nil {
		return 0, 0, err
	}
	if err := v.withdraw(gross); err != nil {
		// release succeeded, so available covers gross; unreachable.
		return 0, 0, err
	}
	fee, net = streaming.SkimFee(gross, l.fees.FeeBps)
	l.fees.credit(token, fee)
	return fee, net, nil
}

// TransferOut settles an instant transfer from the uncommitted balance:
// the gross amount leaves the vault, the fee portion is credited to the
// fee vault and the net portion goes to the receiver.
func (l *Ledger) TransferOut(owner solana.PublicKey, token streaming.TokenKind, gross uint64) (fee, net uint64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.vault(owner, token).withdraw(gross); err != nil {
		return 0, 0, err
	}
	fee, net = streaming.SkimFee(gross, l.fees.FeeBps)
	l.fees.credit(token, fee)
	return fee, net, nil
}

// CollectedFees reports the accumulated fee balance for a token kind.
func (l *Ledger) CollectedFees(token streaming.TokenKind) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fees.collectedFor(token)
}

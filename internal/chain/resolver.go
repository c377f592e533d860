package chain

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID is the devnet deployment of the vault program.
var DefaultProgramID = solana.MustPublicKeyFromBase58("QgV3iN5rSkBU8jaZy8AszQt5eoYwKLmBgXEK5cehAKX")

var (
	seedPrefix   = []byte("streamvault")
	seedSafe     = []byte("safe")
	seedProposal = []byte("proposal")
	seedVault    = []byte("vault")
	seedEscrow   = []byte("escrow")
	seedStream   = []byte("stream")
)

// Resolver derives the program-owned addresses for safes, proposals,
// vaults, escrows and streams. Derivation is a pure function of the
// inputs and the program id.
type Resolver struct {
	programID solana.PublicKey
}

func NewResolver(programID solana.PublicKey) *Resolver {
	if programID.IsZero() {
		programID = DefaultProgramID
	}
	return &Resolver{programID: programID}
}

func (r *Resolver) find(seeds [][]byte, what string) solana.PublicKey {
	pda, _, err := solana.FindProgramAddress(seeds, r.programID)
	if err != nil {
		panic(fmt.Sprintf("failed to find %s PDA: %v", what, err))
	}
	return pda
}

// SafeAddress derives the safe account from its creation key.
func (r *Resolver) SafeAddress(createKey solana.PublicKey) solana.PublicKey {
	return r.find([][]byte{seedPrefix, seedSafe, createKey.Bytes()}, "safe")
}

// ProposalAddress derives the proposal account for a safe and index.
func (r *Resolver) ProposalAddress(safe solana.PublicKey, index uint64) solana.PublicKey {
	return r.find([][]byte{seedPrefix, safe.Bytes(), seedProposal, uint64ToBytes(index)}, "proposal")
}

// VaultAddress derives the treasury vault for an owner and mint. The zero
// mint addresses the native SOL vault.
func (r *Resolver) VaultAddress(owner solana.PublicKey, mint solana.PublicKey) solana.PublicKey {
	return r.find([][]byte{seedPrefix, owner.Bytes(), seedVault, mint.Bytes()}, "vault")
}

// EscrowAddress derives the withdraw escrow backing a stream payout.
func (r *Resolver) EscrowAddress(owner solana.PublicKey, mint solana.PublicKey) solana.PublicKey {
	return r.find([][]byte{seedPrefix, owner.Bytes(), seedEscrow, mint.Bytes()}, "escrow")
}

// StreamAddress derives the stream account for a safe and index.
func (r *Resolver) StreamAddress(safe solana.PublicKey, index uint64) solana.PublicKey {
	return r.find([][]byte{seedPrefix, safe.Bytes(), seedStream, uint64ToBytes(index)}, "stream")
}

func uint64ToBytes(value uint64) []byte {
	bytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(bytes, value)
	return bytes
}

package chain

import (
	"bytes"

	ag_binary "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Instruction discriminators of the vault program.
const (
	instrCreateSafe uint8 = iota
	instrPropose
	instrApprove
	instrExecute
	instrDeposit
	instrWithdraw
)

// Operation kind tags shared with the on-chain program.
const (
	OpTagInit uint8 = iota
	OpTagPause
	OpTagResume
	OpTagCancel
	OpTagInstantTransfer
)

// InstructionBuilder produces the program instructions corresponding to
// locally committed operations.
type InstructionBuilder struct {
	programID solana.PublicKey
	resolver  *Resolver
}

func NewInstructionBuilder(programID solana.PublicKey) *InstructionBuilder {
	if programID.IsZero() {
		programID = DefaultProgramID
	}
	return &InstructionBuilder{
		programID: programID,
		resolver:  NewResolver(programID),
	}
}

func (b *InstructionBuilder) Resolver() *Resolver {
	return b.resolver
}

func encodeData(discriminator uint8, args interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	encoder := ag_binary.NewBorshEncoder(buf)
	if err := encoder.WriteUint8(discriminator); err != nil {
		return nil, err
	}
	if args != nil {
		if err := encoder.Encode(args); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

type createSafeArgs struct {
	Threshold uint16
	Owners    []solana.PublicKey
}

// CreateSafe builds the safe-creation instruction.
func (b *InstructionBuilder) CreateSafe(creator, createKey solana.PublicKey, owners []solana.PublicKey, threshold uint16) (solana.Instruction, error) {
	data, err := encodeData(instrCreateSafe, createSafeArgs{Threshold: threshold, Owners: owners})
	if err != nil {
		return nil, err
	}
	safePDA := b.resolver.SafeAddress(createKey)
	accounts := []*solana.AccountMeta{
		{PublicKey: creator, IsSigner: true, IsWritable: true},
		{PublicKey: createKey, IsSigner: true, IsWritable: false},
		{PublicKey: safePDA, IsSigner: false, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(b.programID, accounts, data), nil
}

type proposeArgs struct {
	OpKind  uint8
	Payload []byte
}

// Propose builds the proposal-creation instruction. The payload is the
// borsh-encoded operation parameters.
func (b *InstructionBuilder) Propose(safe, proposer solana.PublicKey, index uint64, opKind uint8, payload []byte) (solana.Instruction, error) {
	data, err := encodeData(instrPropose, proposeArgs{OpKind: opKind, Payload: payload})
	if err != nil {
		return nil, err
	}
	proposalPDA := b.resolver.ProposalAddress(safe, index)
	accounts := []*solana.AccountMeta{
		{PublicKey: proposer, IsSigner: true, IsWritable: true},
		{PublicKey: safe, IsSigner: false, IsWritable: true},
		{PublicKey: proposalPDA, IsSigner: false, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(b.programID, accounts, data), nil
}

// Approve builds the approval instruction for an owner.
func (b *InstructionBuilder) Approve(safe, owner solana.PublicKey, index uint64) (solana.Instruction, error) {
	data, err := encodeData(instrApprove, nil)
	if err != nil {
		return nil, err
	}
	proposalPDA := b.resolver.ProposalAddress(safe, index)
	accounts := []*solana.AccountMeta{
		{PublicKey: owner, IsSigner: true, IsWritable: false},
		{PublicKey: safe, IsSigner: false, IsWritable: false},
		{PublicKey: proposalPDA, IsSigner: false, IsWritable: true},
	}
	return solana.NewInstruction(b.programID, accounts, data), nil
}

// Execute builds the execution instruction. The operation's account
// access list is appended as remaining accounts, in order, so the program
// can route the guarded funds movement.
func (b *InstructionBuilder) Execute(safe, executor solana.PublicKey, index uint64, opAccounts []solana.PublicKey) (solana.Instruction, error) {
	data, err := encodeData(instrExecute, nil)
	if err != nil {
		return nil, err
	}
	proposalPDA := b.resolver.ProposalAddress(safe, index)
	accounts := []*solana.AccountMeta{
		{PublicKey: executor, IsSigner: true, IsWritable: true},
		{PublicKey: safe, IsSigner: false, IsWritable: true},
		{PublicKey: proposalPDA, IsSigner: false, IsWritable: true},
	}
	for _, acc := range opAccounts {
		accounts = append(accounts, &solana.AccountMeta{PublicKey: acc, IsSigner: false, IsWritable: true})
	}
	accounts = append(accounts, &solana.AccountMeta{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false})
	return solana.NewInstruction(b.programID, accounts, data), nil
}

type amountArgs struct {
	Amount uint64
}

// Deposit builds the vault deposit instruction. For token deposits the
// depositor's associated token account and the token program are wired
// in; native deposits move lamports through the system program only.
func (b *InstructionBuilder) Deposit(owner, mint solana.PublicKey, amount uint64) (solana.Instruction, error) {
	data, err := encodeData(instrDeposit, amountArgs{Amount: amount})
	if err != nil {
		return nil, err
	}
	vaultPDA := b.resolver.VaultAddress(owner, mint)
	accounts := []*solana.AccountMeta{
		{PublicKey: owner, IsSigner: true, IsWritable: true},
		{PublicKey: vaultPDA, IsSigner: false, IsWritable: true},
	}
	if !mint.IsZero() {
		ownerTokenAccount, _, err := solana.FindAssociatedTokenAddress(owner, mint)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts,
			&solana.AccountMeta{PublicKey: mint, IsSigner: false, IsWritable: false},
			&solana.AccountMeta{PublicKey: ownerTokenAccount, IsSigner: false, IsWritable: true},
			&solana.AccountMeta{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
			&solana.AccountMeta{PublicKey: solana.SPLAssociatedTokenAccountProgramID, IsSigner: false, IsWritable: false},
		)
	}
	accounts = append(accounts, &solana.AccountMeta{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false})
	return solana.NewInstruction(b.programID, accounts, data), nil
}

// Withdraw builds the vault withdrawal instruction for the uncommitted
// portion of the owner's balance.
func (b *InstructionBuilder) Withdraw(owner, recipient, mint solana.PublicKey, amount uint64) (solana.Instruction, error) {
	data, err := encodeData(instrWithdraw, amountArgs{Amount: amount})
	if err != nil {
		return nil, err
	}
	vaultPDA := b.resolver.VaultAddress(owner, mint)
	accounts := []*solana.AccountMeta{
		{PublicKey: owner, IsSigner: true, IsWritable: true},
		{PublicKey: vaultPDA, IsSigner: false, IsWritable: true},
		{PublicKey: recipient, IsSigner: false, IsWritable: true},
	}
	if !mint.IsZero() {
		recipientTokenAccount, _, err := solana.FindAssociatedTokenAddress(recipient, mint)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts,
			&solana.AccountMeta{PublicKey: mint, IsSigner: false, IsWritable: false},
			&solana.AccountMeta{PublicKey: recipientTokenAccount, IsSigner: false, IsWritable: true},
			&solana.AccountMeta{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		)
	}
	accounts = append(accounts, &solana.AccountMeta{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false})
	return solana.NewInstruction(b.programID, accounts, data), nil
}

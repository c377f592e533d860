package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Fetcher reads current on-ledger state for safes, proposals, streams and
// vaults. Transient RPC failures are retried with a short delay before
// surfacing.
type Fetcher struct {
	rpc      *rpc.Client
	attempts uint
	delay    time.Duration
}

func NewFetcher(client *rpc.Client) *Fetcher {
	return &Fetcher{rpc: client, attempts: 3, delay: 100 * time.Millisecond}
}

func (f *Fetcher) accountData(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	var data []byte
	err := retry.Do(func() error {
		info, err := f.rpc.GetAccountInfo(ctx, address)
		if err != nil {
			return err
		}
		if info.Value == nil {
			return retry.Unrecoverable(fmt.Errorf("account %s does not exist", address))
		}
		data = info.Value.Data.GetBinary()
		return nil
	}, retry.Attempts(f.attempts), retry.Delay(f.delay))
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *Fetcher) FetchSafe(ctx context.Context, address solana.PublicKey) (*SafeAccount, error) {
	data, err := f.accountData(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch safe: %w", err)
	}
	var account SafeAccount
	if err := decodeAccount(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (f *Fetcher) FetchProposal(ctx context.Context, address solana.PublicKey) (*ProposalAccount, error) {
	data, err := f.accountData(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch proposal: %w", err)
	}
	var account ProposalAccount
	if err := decodeAccount(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (f *Fetcher) FetchStream(ctx context.Context, address solana.PublicKey) (*StreamAccount, error) {
	data, err := f.accountData(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stream: %w", err)
	}
	var account StreamAccount
	if err := decodeAccount(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (f *Fetcher) FetchVault(ctx context.Context, address solana.PublicKey) (*VaultAccount, error) {
	data, err := f.accountData(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vault: %w", err)
	}
	var account VaultAccount
	if err := decodeAccount(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

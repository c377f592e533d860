package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	confirm "github.com/gagliardetto/solana-go/rpc/sendAndConfirmTransaction"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"
)

// Signer signs an assembled transaction. Key custody stays outside the
// SDK.
type Signer interface {
	Sign(tx *solana.Transaction) error
}

// KeypairSigner signs with an in-memory set of private keys.
type KeypairSigner struct {
	keys []solana.PrivateKey
}

func NewKeypairSigner(keys ...solana.PrivateKey) *KeypairSigner {
	return &KeypairSigner{keys: keys}
}

// AddBase58Key registers a base58-encoded private key with the signer.
func (k *KeypairSigner) AddBase58Key(encoded string) error {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return fmt.Errorf("failed to decode private key: %w", err)
	}
	k.keys = append(k.keys, solana.PrivateKey(raw))
	return nil
}

func (k *KeypairSigner) Sign(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range k.keys {
			if k.keys[i].PublicKey().Equals(key) {
				return &k.keys[i]
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// SubmitPolicy bounds the retry behavior of transaction submission.
type SubmitPolicy struct {
	Attempts uint
	Delay    time.Duration
}

func DefaultSubmitPolicy() SubmitPolicy {
	return SubmitPolicy{Attempts: 5, Delay: 500 * time.Millisecond}
}

// Submitter assembles, signs and submits transactions, retrying on
// transient failures (expired blockhash, network errors) within the
// bounds of its policy.
type Submitter struct {
	rpc    *rpc.Client
	ws     *ws.Client
	signer Signer
	policy SubmitPolicy
	log    *zap.Logger
}

func NewSubmitter(rpcClient *rpc.Client, wsClient *ws.Client, signer Signer, policy SubmitPolicy, log *zap.Logger) *Submitter {
	if log == nil {
		log = zap.NewNop()
	}
	if policy.Attempts == 0 {
		policy = DefaultSubmitPolicy()
	}
	return &Submitter{rpc: rpcClient, ws: wsClient, signer: signer, policy: policy, log: log}
}

// Submit sends the instructions as one transaction and waits for
// confirmation. A fresh blockhash is taken on every attempt.
func (s *Submitter) Submit(ctx context.Context, instructions []solana.Instruction, payer solana.PublicKey) (solana.Signature, error) {
	var sig solana.Signature
	err := retry.Do(func() error {
		hash, err := s.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return fmt.Errorf("failed to get latest blockhash: %w", err)
		}
		tx, err := solana.NewTransaction(instructions, hash.Value.Blockhash, solana.TransactionPayer(payer))
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("failed to create transaction: %w", err))
		}
		if err := s.signer.Sign(tx); err != nil {
			return retry.Unrecoverable(err)
		}
		sig, err = confirm.SendAndConfirmTransaction(ctx, s.rpc, s.ws, tx)
		if err != nil {
			s.log.Warn("transaction submission failed, retrying", zap.Error(err))
			return err
		}
		return nil
	}, retry.Attempts(s.policy.Attempts), retry.Delay(s.policy.Delay))
	if err != nil {
		return solana.Signature{}, err
	}
	s.log.Info("transaction confirmed", zap.String("signature", sig.String()))
	return sig, nil
}

package streaming

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const NativeDecimals = 9

// TokenKind identifies what a stream pays out: native SOL or a fungible
// token mint with its decimal scale. Behavior differences between the two
// are carried as data, not as separate stream types.
type TokenKind struct {
	Mint     solana.PublicKey
	Decimals uint8
}

func Native() TokenKind {
	return TokenKind{Decimals: NativeDecimals}
}

func Fungible(mint solana.PublicKey, decimals uint8) TokenKind {
	return TokenKind{Mint: mint, Decimals: decimals}
}

func (t TokenKind) IsNative() bool {
	return t.Mint.IsZero()
}

// UiAmount converts raw base units to a human-readable amount.
func (t TokenKind) UiAmount(raw uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(t.Decimals))
}

// RawAmount converts a human-readable amount to raw base units,
// truncating anything below the token's smallest unit.
func (t TokenKind) RawAmount(ui decimal.Decimal) uint64 {
	raw := ui.Shift(int32(t.Decimals)).Truncate(0)
	if raw.Sign() <= 0 {
		return 0
	}
	return raw.BigInt().Uint64()
}

// FeeBasisPoints converts a percentage with up to two decimal places
// (e.g. "0.25" for 0.25%) into basis points by scaling x100 and
// truncating, so 2.5% becomes 250 bps.
func FeeBasisPoints(percent decimal.Decimal) uint16 {
	bps := percent.Mul(decimal.NewFromInt(100)).Truncate(0).IntPart()
	if bps < 0 {
		return 0
	}
	if bps > 10000 {
		return 10000
	}
	return uint16(bps)
}

// SkimFee splits a payout into the protocol fee and the net amount the
// receiver keeps. Integer division rounds the fee down.
func SkimFee(payout uint64, feeBps uint16) (fee uint64, net uint64) {
	fee = mulDiv(payout, uint64(feeBps), 10000)
	return fee, payout - fee
}

package streaming

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFeeBasisPoints(t *testing.T) {
	assert.EqualValues(t, 250, FeeBasisPoints(decimal.RequireFromString("2.5")))
	assert.EqualValues(t, 25, FeeBasisPoints(decimal.RequireFromString("0.25")))
	assert.EqualValues(t, 25, FeeBasisPoints(decimal.RequireFromString("0.259")), "third decimal place truncated")
	assert.EqualValues(t, 0, FeeBasisPoints(decimal.RequireFromString("-1")))
	assert.EqualValues(t, 10000, FeeBasisPoints(decimal.RequireFromString("250")), "capped at 100%")
}

func TestSkimFee(t *testing.T) {
	fee, net := SkimFee(1000, 250)
	assert.EqualValues(t, 25, fee, "2.5% of 1000")
	assert.EqualValues(t, 975, net)

	fee, net = SkimFee(999, 250)
	assert.EqualValues(t, 24, fee, "rounded down")
	assert.EqualValues(t, 975, net)

	fee, net = SkimFee(1000, 0)
	assert.EqualValues(t, 0, fee)
	assert.EqualValues(t, 1000, net)
}

func TestTokenKind(t *testing.T) {
	native := Native()
	assert.True(t, native.IsNative())
	assert.EqualValues(t, NativeDecimals, native.Decimals)

	mint := solana.NewWallet().PublicKey()
	token := Fungible(mint, 6)
	assert.False(t, token.IsNative())

	assert.Equal(t, "1.5", token.UiAmount(1500000).String())
	assert.EqualValues(t, 1500000, token.RawAmount(decimal.RequireFromString("1.5")))
	assert.EqualValues(t, 0, token.RawAmount(decimal.RequireFromString("-3")))
	assert.EqualValues(t, 1500000, token.RawAmount(token.UiAmount(1500000)))
}

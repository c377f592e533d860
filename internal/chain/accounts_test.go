package chain

import (
	"bytes"
	"testing"

	ag_binary "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeWithDiscriminator(t *testing.T, account interface{}) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	buf.Write(make([]byte, 8))
	require.NoError(t, ag_binary.NewBorshEncoder(buf).Encode(account))
	return buf.Bytes()
}

func TestDecodeAccountSkipsDiscriminator(t *testing.T) {
	original := StreamAccount{
		Sender:    solana.NewWallet().PublicKey(),
		Receiver:  solana.NewWallet().PublicKey(),
		Start:     100,
		End:       200,
		Total:     1_000_000,
		Withdrawn: 250_000,
		Paused:    true,
		PausedAt:  150,
	}

	var decoded StreamAccount
	require.NoError(t, decodeAccount(encodeWithDiscriminator(t, original), &decoded))
	assert.Equal(t, original, decoded)
}

func TestDecodeAccountRejectsShortData(t *testing.T) {
	var out StreamAccount
	assert.Error(t, decodeAccount(nil, &out))
	assert.Error(t, decodeAccount(make([]byte, 8), &out))
}

func TestSafeAccountConversion(t *testing.T) {
	owners := []solana.PublicKey{solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()}
	account := SafeAccount{CreateKey: solana.NewWallet().PublicKey(), Threshold: 2, Owners: owners}
	address := solana.NewWallet().PublicKey()

	s := account.Safe(address)
	assert.Equal(t, address, s.ID)
	assert.Equal(t, owners, s.Owners)
	assert.EqualValues(t, 2, s.Threshold)
}

func TestStreamAccountConversionTokenKind(t *testing.T) {
	native := StreamAccount{Start: 0, End: 10, Total: 100}
	assert.True(t, native.Stream().Token.IsNative())

	mint := solana.NewWallet().PublicKey()
	token := StreamAccount{Start: 0, End: 10, Total: 100, Mint: mint, Decimals: 6}
	stream := token.Stream()
	assert.False(t, stream.Token.IsNative())
	assert.Equal(t, mint, stream.Token.Mint)
	assert.EqualValues(t, 6, stream.Token.Decimals)
}

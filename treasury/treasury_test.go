package treasury

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMintCap struct {
	amount uint64
	err    error
}

func (s *stubMintCap) Mint(amount uint64) (Token, error) {
	if s.err != nil {
		return Token{}, s.err
	}
	s.amount += amount
	return Token{TypeName: "ETH", Amount: amount}, nil
}

type stubBurnCap struct {
	burned uint64
	err    error
}

func (s *stubBurnCap) Burn(token Token) error {
	if s.err != nil {
		return s.err
	}
	s.burned += token.Amount
	return nil
}

func TestRegisterAndAddNewToken(t *testing.T) {
	r := NewRegistry()
	mint, burn := &stubMintCap{}, &stubBurnCap{}

	require.NoError(t, r.RegisterForeignToken("ETH", 18, mint, burn, 0))

	_, err := r.Metadata("ETH")
	assert.ErrorIs(t, err, ErrUnsupportedTokenType)

	meta, err := r.AddNewToken("ETH", 1, 250_00000000)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), meta.ID)
	assert.False(t, meta.NativeToken)
	assert.Equal(t, uint64(1_000_000_000_000_000_000), meta.DecimalMultiplier)

	got, err := r.Metadata("ETH")
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestAddNewTokenRejectsZeroPrice(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterForeignToken("ETH", 18, &stubMintCap{}, &stubBurnCap{}, 0))
	_, err := r.AddNewToken("ETH", 1, 0)
	assert.ErrorIs(t, err, ErrZeroNotionalPrice)
}

func TestAddNewTokenRejectsNotWaiting(t *testing.T) {
	r := NewRegistry()
	_, err := r.AddNewToken("GHOST", 1, 1)
	assert.ErrorIs(t, err, ErrTokenNotWaiting)
}

func TestAddNewTokenRejectsDuplicateID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterForeignToken("ETH", 18, &stubMintCap{}, &stubBurnCap{}, 0))
	require.NoError(t, r.RegisterForeignToken("WBGL", 8, &stubMintCap{}, &stubBurnCap{}, 0))
	_, err := r.AddNewToken("ETH", 1, 1)
	require.NoError(t, err)

	_, err = r.AddNewToken("WBGL", 1, 1)
	assert.ErrorIs(t, err, ErrDuplicateTokenID)
}

func TestRegisterNativeToken(t *testing.T) {
	r := NewRegistry()
	meta, err := r.RegisterNativeToken("STAR", 0, 8, 1_00000000, &stubMintCap{}, &stubBurnCap{}, 0)
	require.NoError(t, err)
	assert.True(t, meta.NativeToken)

	id, err := r.TokenID("STAR")
	require.NoError(t, err)
	assert.Equal(t, uint8(0), id)
}

func TestAddNewTokenWithNativeFlag(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterForeignToken("STAR", 8, &stubMintCap{}, &stubBurnCap{}, 0))

	meta, err := r.AddNewTokenWithNativeFlag("STAR", 2, 1_00000000, true)
	require.NoError(t, err)
	assert.True(t, meta.NativeToken)

	got, err := r.Metadata("STAR")
	require.NoError(t, err)
	assert.True(t, got.NativeToken)
}

func TestRegisterForeignTokenRejectsNonzeroSupply(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterForeignToken("ETH", 18, &stubMintCap{}, &stubBurnCap{}, 5)
	assert.ErrorIs(t, err, ErrNonZeroSupply)
}

func TestMintAndBurnUpdateSupply(t *testing.T) {
	r := NewRegistry()
	mint, burn := &stubMintCap{}, &stubBurnCap{}
	require.NoError(t, r.RegisterForeignToken("ETH", 18, mint, burn, 0))
	_, err := r.AddNewToken("ETH", 1, 1_00000000)
	require.NoError(t, err)

	tok, err := r.Mint("ETH", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), tok.Amount)
	assert.Equal(t, uint64(10), r.Supply("ETH"))

	require.NoError(t, r.Burn("ETH", 4))
	assert.Equal(t, uint64(6), r.Supply("ETH"))
	assert.Equal(t, uint64(4), burn.burned)
}

func TestUpdateAssetNotionalPrice(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterForeignToken("ETH", 18, &stubMintCap{}, &stubBurnCap{}, 0))
	_, err := r.AddNewToken("ETH", 1, 100_00000000)
	require.NoError(t, err)

	meta, err := r.UpdateAssetNotionalPrice(1, 150_00000000)
	require.NoError(t, err)
	assert.Equal(t, uint64(150_00000000), meta.NotionalValueUSD8dp)

	_, err = r.UpdateAssetNotionalPrice(99, 1)
	assert.ErrorIs(t, err, ErrUnsupportedTokenType)
}

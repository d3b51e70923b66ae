package xcrypto

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEVMAddressWorkedExample(t *testing.T) {
	compressed, err := hex.DecodeString("029bef8d556d80e43ae7e0becb3a7e6838b95defe45896ed6075bb9035d06c9964")
	require.NoError(t, err)

	addr, err := EVMAddress(compressed)
	require.NoError(t, err)
	assert.Equal(t, "b14d3c4f5fbfbcfb98af2d330000d49c95b93aa7", hex.EncodeToString(addr))
}

func TestEVMAddressRejectsWrongLength(t *testing.T) {
	_, err := EVMAddress([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidPubkeyLen)
}

func TestEcrecoverRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	compressed := crypto.CompressPubkey(&key.PublicKey)

	message := []byte("approve_token_transfer seq=7")
	preimage := PrefixedPreimage(message)
	digest := crypto.Keccak256(preimage)

	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)

	recovered, err := Ecrecover(sig, preimage, Keccak256)
	require.NoError(t, err)
	assert.Equal(t, compressed, recovered)
}

func TestEcrecoverAcceptsEthereumRecoveryConvention(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	compressed := crypto.CompressPubkey(&key.PublicKey)

	message := []byte("emergency_op pause")
	preimage := PrefixedPreimage(message)
	digest := crypto.Keccak256(preimage)

	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	sig[64] += 27 // Ethereum convention instead of go-ethereum's [0,1]

	recovered, err := Ecrecover(sig, preimage, Keccak256)
	require.NoError(t, err)
	assert.Equal(t, compressed, recovered)
}

func TestEcrecoverRejectsWrongSignatureLength(t *testing.T) {
	_, err := Ecrecover([]byte{0x01}, []byte("x"), Keccak256)
	assert.ErrorIs(t, err, ErrInvalidSignatureLen)
}

func TestCompressDecompressPubkeyRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	uncompressed := crypto.FromECDSAPub(&key.PublicKey)

	compressed, err := CompressPubkey(uncompressed)
	require.NoError(t, err)

	roundTripped, err := DecompressPubkey(compressed)
	require.NoError(t, err)
	assert.Equal(t, uncompressed, roundTripped)
}

func TestPrefixedPreimage(t *testing.T) {
	out := PrefixedPreimage([]byte("hello"))
	assert.Equal(t, []byte("STARCOIN_BRIDGE_MESSAGEhello"), out)
}

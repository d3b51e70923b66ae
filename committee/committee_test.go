package committee

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starcoin-bridge/bridgecore/chainid"
	"github.com/starcoin-bridge/bridgecore/message"
	"github.com/starcoin-bridge/bridgecore/xcrypto"
)

type signer struct {
	address    string
	privateKey []byte
	compressed []byte
}

func newSigner(t *testing.T, address string) signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return signer{
		address:    address,
		privateKey: crypto.FromECDSA(key),
		compressed: crypto.CompressPubkey(&key.PublicKey),
	}
}

func (s signer) sign(t *testing.T, m message.Message) []byte {
	t.Helper()
	key, err := crypto.ToECDSA(s.privateKey)
	require.NoError(t, err)
	preimage := xcrypto.PrefixedPreimage(m.Serialize())
	digest := crypto.Keccak256(preimage)
	sig, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	return sig
}

func buildCommittee(t *testing.T, weights map[string]uint32) (*Registry, map[string]signer) {
	t.Helper()
	validators := NewStaticValidatorSet(weights)
	reg := New(validators)
	require.NoError(t, reg.Initialize())

	signers := make(map[string]signer, len(weights))
	for addr := range weights {
		s := newSigner(t, addr)
		signers[addr] = s
		require.NoError(t, reg.Register(addr, s.compressed, "http://"+addr))
	}
	return reg, signers
}

func TestTryCreateNextCommitteeRequiresMinParticipation(t *testing.T) {
	reg, _ := buildCommittee(t, map[string]uint32{"a": 3000, "b": 2000})
	assert.False(t, reg.TryCreateNextCommittee(6000))
	assert.True(t, reg.TryCreateNextCommittee(5000))
	assert.Len(t, reg.Members(), 2)
}

func TestRegisterRejectsNonActiveValidator(t *testing.T) {
	validators := NewStaticValidatorSet(map[string]uint32{"a": 1000})
	reg := New(validators)
	require.NoError(t, reg.Initialize())
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	err = reg.Register("ghost", crypto.CompressPubkey(&key.PublicKey), "http://ghost")
	assert.ErrorIs(t, err, ErrSenderNotActiveValidator)
}

func TestVerifySignaturesThresholdScenario(t *testing.T) {
	// Signature threshold: forging one signer where total power is 3000
	// bps against a token message requiring 3334 bps aborts.
	reg, signers := buildCommittee(t, map[string]uint32{"a": 3000, "b": 4000, "c": 3000})
	require.True(t, reg.TryCreateNextCommittee(5001))

	m, err := message.NewTokenTransfer(0, chainid.HomeDevnet, make([]byte, 32), chainid.EthSepolia, make([]byte, 20), 1, 10)
	require.NoError(t, err)

	sigs := [][]byte{signers["a"].sign(t, m)}
	err = reg.VerifySignatures(m, sigs)
	assert.ErrorIs(t, err, ErrSignatureBelowThreshold)

	sigs = [][]byte{signers["a"].sign(t, m), signers["b"].sign(t, m)}
	assert.NoError(t, reg.VerifySignatures(m, sigs))
}

func TestVerifySignaturesRejectsDuplicateSigner(t *testing.T) {
	reg, signers := buildCommittee(t, map[string]uint32{"a": 10000})
	require.True(t, reg.TryCreateNextCommittee(1))

	m, err := message.NewEmergencyOp(0, chainid.HomeDevnet, message.EmergencyOpPause)
	require.NoError(t, err)

	sig := signers["a"].sign(t, m)
	err = reg.VerifySignatures(m, [][]byte{sig, sig})
	assert.ErrorIs(t, err, ErrDuplicatedSignature)
}

func TestVerifySignaturesRejectsUnknownSigner(t *testing.T) {
	reg, _ := buildCommittee(t, map[string]uint32{"a": 10000})
	require.True(t, reg.TryCreateNextCommittee(1))

	m, err := message.NewEmergencyOp(0, chainid.HomeDevnet, message.EmergencyOpPause)
	require.NoError(t, err)

	stranger := newSigner(t, "stranger")
	err = reg.VerifySignatures(m, [][]byte{stranger.sign(t, m)})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestExecuteBlocklist(t *testing.T) {
	reg, signers := buildCommittee(t, map[string]uint32{"a": 10000})
	require.True(t, reg.TryCreateNextCommittee(1))

	addr, err := xcrypto.EVMAddress(signers["a"].compressed)
	require.NoError(t, err)

	require.NoError(t, reg.ExecuteBlocklist(message.BlocklistType(0), [][]byte{addr}))
	members := reg.Members()
	require.Len(t, members, 1)
	assert.True(t, members[0].Blocklisted)

	require.NoError(t, reg.ExecuteBlocklist(message.BlocklistType(1), [][]byte{addr}))
	members = reg.Members()
	assert.False(t, members[0].Blocklisted)
}

func TestExecuteBlocklistRejectsUnknownTarget(t *testing.T) {
	reg, _ := buildCommittee(t, map[string]uint32{"a": 10000})
	require.True(t, reg.TryCreateNextCommittee(1))

	err := reg.ExecuteBlocklist(message.BlocklistType(0), [][]byte{make([]byte, 20)})
	assert.ErrorIs(t, err, ErrUnknownBlocklistTarget)
}

func TestRequiredVotingPower(t *testing.T) {
	pause, err := message.NewEmergencyOp(0, chainid.HomeDevnet, message.EmergencyOpPause)
	require.NoError(t, err)
	req, err := RequiredVotingPower(pause)
	require.NoError(t, err)
	assert.Equal(t, uint32(450), req)

	unpause, err := message.NewEmergencyOp(0, chainid.HomeDevnet, message.EmergencyOpUnpause)
	require.NoError(t, err)
	req, err = RequiredVotingPower(unpause)
	require.NoError(t, err)
	assert.Equal(t, uint32(5001), req)
}

func TestRecoverSignerRejectsNonMember(t *testing.T) {
	reg, _ := buildCommittee(t, map[string]uint32{"a": 10000})
	require.True(t, reg.TryCreateNextCommittee(1))

	m, err := message.NewEmergencyOp(0, chainid.HomeDevnet, message.EmergencyOpPause)
	require.NoError(t, err)

	stranger := newSigner(t, "stranger")
	_, err = reg.RecoverSigner(m, stranger.sign(t, m))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

// Package committee implements the weighted-voting member registry,
// block-list, and signature aggregation/verification described in
// spec.md §3.5, §4.6 (C7).
//
// The recover-then-match pattern is grounded on
// workers/handlers/SubmitWBGL.go's validateMsgSignature, generalized from
// a single expected address to a map of registered members and a running
// voting-power sum.
package committee

import (
	"errors"
	"fmt"
	"sync"

	"github.com/starcoin-bridge/bridgecore/message"
	"github.com/starcoin-bridge/bridgecore/xcrypto"
)

// VotingPowerScale is the basis-points denominator voting power is
// expressed in (spec.md §6.4).
const VotingPowerScale = 10_000

var (
	ErrAlreadyInitialized        = errors.New("committee: already initialized")
	ErrSenderNotActiveValidator  = errors.New("committee: sender not an active validator")
	ErrInvalidPubkeyLength       = errors.New("committee: pubkey must be 33 bytes")
	ErrDuplicatePubkey           = errors.New("committee: duplicate pubkey")
	ErrSenderNotInCommittee      = errors.New("committee: sender not registered")
	ErrInsufficientParticipation = errors.New("committee: registered voting power below minimum participation")
	ErrDuplicatedSignature       = errors.New("committee: duplicated signature")
	ErrInvalidSignature          = errors.New("committee: signature from unknown signer")
	ErrSignatureBelowThreshold   = errors.New("committee: aggregate voting power below required threshold")
	ErrUnknownBlocklistTarget    = errors.New("committee: blocklist contains unknown key")
	ErrUnsupportedEmergencyOp    = errors.New("committee: unsupported emergency op type for threshold lookup")
)

// Member is a single committee member (spec.md §3.5).
type Member struct {
	Address           string
	CompressedPubkey  []byte
	VotingPowerBps     uint32
	HTTPURL           string
	Blocklisted       bool
}

// ActiveValidatorSource answers whether an address currently holds active
// validator status and its voting power, resolving spec.md §9's open
// question about the stubbed `active_validator_addresses()` collaborator:
// registration depends on an explicit, swappable source instead of a
// permanently-empty stub.
type ActiveValidatorSource interface {
	IsActiveValidator(address string) (votingPowerBps uint32, ok bool)
}

// StaticValidatorSet is an in-memory ActiveValidatorSource for
// tests/devnets.
type StaticValidatorSet struct {
	mu      sync.Mutex
	powers  map[string]uint32
}

// NewStaticValidatorSet returns a StaticValidatorSet seeded with powers.
func NewStaticValidatorSet(powers map[string]uint32) *StaticValidatorSet {
	s := &StaticValidatorSet{powers: make(map[string]uint32, len(powers))}
	for addr, p := range powers {
		s.powers[addr] = p
	}
	return s
}

// IsActiveValidator implements ActiveValidatorSource.
func (s *StaticValidatorSet) IsActiveValidator(address string) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.powers[address]
	return p, ok
}

type registration struct {
	pubkey []byte
	url    string
}

// Registry is the committee: the active member map (keyed by compressed
// pubkey) plus a pending-registration set accumulated before the
// committee is activated (spec.md §4.6).
type Registry struct {
	mu sync.Mutex

	initialized   bool
	validators    ActiveValidatorSource
	members       map[string]*Member // keyed by the raw compressed pubkey bytes
	registrations map[string]registration // keyed by sender address
}

// New returns an uninitialized Registry.
func New(validators ActiveValidatorSource) *Registry {
	return &Registry{
		validators:    validators,
		members:       make(map[string]*Member),
		registrations: make(map[string]registration),
	}
}

// Initialize creates the committee's bookkeeping. Mirrors spec.md §4.6:
// only the bridge owner may call this, enforced by the caller (the
// orchestrator), not this package.
func (r *Registry) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return ErrAlreadyInitialized
	}
	r.initialized = true
	return nil
}

// Register records sender's intent to join the next committee. Only
// accepted while the members map is empty (v1 accepts no re-registration
// after activation); sender must be an active validator; pubkey must be
// 33 bytes; duplicate pubkeys across registrations are rejected.
func (r *Registry) Register(sender string, compressedPubkey []byte, url string) error {
	if len(compressedPubkey) != xcrypto.CompressedPubkeyLen {
		return fmt.Errorf("%w: got %d", ErrInvalidPubkeyLength, len(compressedPubkey))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) != 0 {
		return fmt.Errorf("committee: cannot register once the committee is active")
	}
	if _, ok := r.validators.IsActiveValidator(sender); !ok {
		return fmt.Errorf("%w: %s", ErrSenderNotActiveValidator, sender)
	}

	key := string(compressedPubkey)
	for otherSender, reg := range r.registrations {
		if otherSender != sender && string(reg.pubkey) == key {
			return fmt.Errorf("%w: %x", ErrDuplicatePubkey, compressedPubkey)
		}
	}

	r.registrations[sender] = registration{pubkey: append([]byte(nil), compressedPubkey...), url: url}
	return nil
}

// TryCreateNextCommittee sums the voting power of registrants that are
// active validators and, only if that sum meets minParticipationBps,
// replaces the members map and clears registrations. Otherwise it is a
// no-op (spec.md §4.6).
func (r *Registry) TryCreateNextCommittee(minParticipationBps uint32) (activated bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total uint32
	candidates := make(map[string]*Member, len(r.registrations))
	for sender, reg := range r.registrations {
		power, ok := r.validators.IsActiveValidator(sender)
		if !ok {
			continue
		}
		total += power
		candidates[string(reg.pubkey)] = &Member{
			Address:          sender,
			CompressedPubkey: append([]byte(nil), reg.pubkey...),
			VotingPowerBps:   power,
			HTTPURL:          reg.url,
		}
	}

	if total < minParticipationBps {
		return false
	}

	r.members = candidates
	r.registrations = make(map[string]registration)
	return true
}

func (r *Registry) memberByPubkey(compressedPubkey []byte) *Member {
	return r.members[string(compressedPubkey)]
}

// ExecuteBlocklist toggles the blocklisted flag of each 20-byte EVM
// address in addresses: listType != 1 blocklists, listType == 1
// unblocklists. Unknown addresses fail with ErrUnknownBlocklistTarget
// (spec.md §4.6).
func (r *Registry) ExecuteBlocklist(listType message.BlocklistType, addresses [][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	blocklisted := listType != 1

	for _, addr := range addresses {
		found := false
		for _, m := range r.members {
			evmAddr, err := xcrypto.EVMAddress(m.CompressedPubkey)
			if err != nil {
				continue
			}
			if string(evmAddr) == string(addr) {
				m.Blocklisted = blocklisted
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %x", ErrUnknownBlocklistTarget, addr)
		}
	}
	return nil
}

// Members returns a snapshot copy of the current member set.
func (r *Registry) Members() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, *m)
	}
	return out
}

// RequiredVotingPower returns the bps-of-10000 threshold a message type
// (and, for emergency ops, its op type) must meet (spec.md §4.6).
func RequiredVotingPower(m message.Message) (uint32, error) {
	switch m.Type {
	case message.TypeTokenTransfer:
		return 3334, nil
	case message.TypeEmergencyOp:
		op, err := message.ParseEmergencyOp(m.Payload)
		if err != nil {
			return 0, err
		}
		switch op {
		case message.EmergencyOpPause:
			return 450, nil
		case message.EmergencyOpUnpause:
			return 5001, nil
		default:
			return 0, fmt.Errorf("%w: %d", ErrUnsupportedEmergencyOp, op)
		}
	case message.TypeCommitteeBlocklist, message.TypeUpdateBridgeLimit, message.TypeUpdateAssetPrice, message.TypeAddTokensOnHome:
		return 5001, nil
	default:
		return 0, fmt.Errorf("committee: unknown message type %d", m.Type)
	}
}

// RecoverSigner recovers the signer of a single signature over m and
// returns the matching committee member.
func (r *Registry) RecoverSigner(m message.Message, sig []byte) (Member, error) {
	preimage := xcrypto.PrefixedPreimage(m.Serialize())
	pubkey, err := xcrypto.Ecrecover(sig, preimage, xcrypto.Keccak256)
	if err != nil {
		return Member{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	member := r.memberByPubkey(pubkey)
	if member == nil {
		return Member{}, fmt.Errorf("%w: %x", ErrInvalidSignature, pubkey)
	}
	return *member, nil
}

// VerifySignatures serializes message, prepends the domain separator,
// recovers each signature's compressed pubkey, rejects duplicate or
// unknown signers, and requires the non-blocklisted matching members'
// voting power to meet the message's required threshold (spec.md §4.6).
func (r *Registry) VerifySignatures(m message.Message, signatures [][]byte) error {
	required, err := RequiredVotingPower(m)
	if err != nil {
		return err
	}

	preimage := xcrypto.PrefixedPreimage(m.Serialize())

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(signatures))
	var total uint32

	for _, sig := range signatures {
		pubkey, err := xcrypto.Ecrecover(sig, preimage, xcrypto.Keccak256)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		key := string(pubkey)
		if seen[key] {
			return fmt.Errorf("%w: %x", ErrDuplicatedSignature, pubkey)
		}
		seen[key] = true

		member := r.memberByPubkey(pubkey)
		if member == nil {
			return fmt.Errorf("%w: %x", ErrInvalidSignature, pubkey)
		}
		if member.Blocklisted {
			continue
		}
		total += member.VotingPowerBps
	}

	if total < required {
		return fmt.Errorf("%w: got %d, need %d", ErrSignatureBelowThreshold, total, required)
	}
	return nil
}

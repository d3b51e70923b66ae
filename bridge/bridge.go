// Package bridge is the orchestrator (C8): it composes committee,
// treasury, and limiter into the state machine spec.md §4.7 diagrams —
// outbound SendToken, inbound ApproveTokenTransfer/ClaimToken, and
// admin ExecuteSystemMessage — and enforces strict per-(source_chain,
// message_type) sequence-number ordering on everything it admits
// (spec.md §3.2, §8).
//
// The "verify first, advance the sequence counter only on success"
// ordering below is grounded on workers/processExecution.go's pattern of
// never marking a BridgeOperation Executed until its on-chain call has
// actually confirmed: a failed verification must not consume a sequence
// number a later retry with better signatures still needs.
package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/starcoin-bridge/bridgecore/chainid"
	"github.com/starcoin-bridge/bridgecore/committee"
	"github.com/starcoin-bridge/bridgecore/events"
	"github.com/starcoin-bridge/bridgecore/message"
	"github.com/starcoin-bridge/bridgecore/treasury"
)

var (
	ErrUnexpectedMessageType  = errors.New("bridge: unexpected message type")
	ErrMessageMismatch        = errors.New("bridge: message does not match the existing record for this key")
	ErrBridgePaused           = errors.New("bridge: paused by emergency_op")
	ErrOutOfOrderMessage      = errors.New("bridge: message arrived out of sequence order")
	ErrStaleMessage           = errors.New("bridge: sequence number already advanced past this message with no record kept")
	ErrRecordNotFound         = errors.New("bridge: no record for this (source_chain, seq_num)")
	ErrNotYetApproved         = errors.New("bridge: token transfer is not yet approved")
	ErrZeroAmount             = errors.New("bridge: token amount must be greater than zero")
	ErrUnauthorizedClaim      = errors.New("bridge: caller is not the record's target address")
	ErrMessageNotForThisChain = errors.New("bridge: message does not involve this chain")
)

// RecordState is a token-transfer record's position in the spec.md §4.7
// state machine.
type RecordState uint8

const (
	StatePending RecordState = iota + 1
	StateApproved
	StateClaimed
)

func (s RecordState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateApproved:
		return "approved"
	case StateClaimed:
		return "claimed"
	default:
		return "unknown"
	}
}

// BridgeRecord tracks one inbound token-transfer message end to end: it
// is created already Approved by the first signature set that meets
// the required voting-power threshold, then transitions to Claimed on
// the single mint (spec.md §3.6, §4.7).
type BridgeRecord struct {
	Message       message.Message
	State         RecordState
	ClaimedAmount uint64
}

// Disburser forwards a claimed token on to its final destination (an EVM
// transfer, a home-chain unlock, ...). adapters/evmtoken ships a
// concrete implementation; ClaimAndTransferToken works with a nil
// Disburser and simply hands the minted treasury.Token back to the caller.
type Disburser interface {
	Disburse(target []byte, typeName string, amount uint64) error
}

type inboundKey struct {
	SourceChain chainid.ID
	MessageType message.Type
}

// Bridge is the per-process orchestrator for one home/foreign chain
// pairing's worth of state. Safe for concurrent use (spec.md §5).
type Bridge struct {
	mu sync.Mutex

	chainID chainid.ID
	paused  bool

	committee *committee.Registry
	treasury  *treasury.Registry
	limiter   limiterLike
	sink      events.Sink

	nextOutboundSeq      map[message.Type]uint64
	nextInboundSeq       map[inboundKey]uint64
	tokenTransferRecords map[message.Key]*BridgeRecord
}

// limiterLike is the subset of *limiter.Limiter the orchestrator needs;
// declared as an interface so tests can swap in a stub without the
// 24-hour sliding-window bookkeeping.
type limiterLike interface {
	CheckAndRecordSendingTransfer(route chainid.Route, decimalMultiplier uint64, notionalValueUSD8dp uint64, amount uint64, clockMs uint64) (bool, error)
	UpdateRouteLimit(route chainid.Route, newLimitUSD8dp uint64)
}

// New wires a fresh Bridge for chainID around already-constructed
// committee/treasury/limiter registries and an event sink.
func New(chainID chainid.ID, com *committee.Registry, tre *treasury.Registry, lim limiterLike, sink events.Sink) *Bridge {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Bridge{
		chainID:              chainID,
		committee:            com,
		treasury:             tre,
		limiter:              lim,
		sink:                 sink,
		nextOutboundSeq:      make(map[message.Type]uint64),
		nextInboundSeq:       make(map[inboundKey]uint64),
		tokenTransferRecords: make(map[message.Key]*BridgeRecord),
	}
}

// setPaused sets the pause flag; the emergency_op path within
// ExecuteSystemMessage is its only caller.
func (b *Bridge) setPaused(v bool) {
	b.paused = v
}

// Paused reports whether the bridge currently rejects new SendToken
// calls (spec.md §4.6 emergency pause).
func (b *Bridge) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

// Record returns a copy of the tracked BridgeRecord for (sourceChain,
// seqNum), for introspection.
func (b *Bridge) Record(sourceChain chainid.ID, seqNum uint64) (BridgeRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := message.Key{SourceChain: sourceChain, MessageType: message.TypeTokenTransfer, BridgeSeqNum: seqNum}
	rec, ok := b.tokenTransferRecords[key]
	if !ok {
		return BridgeRecord{}, false
	}
	return *rec, true
}

// peekInboundStatus classifies seqNum against the next expected sequence
// number for (sourceChain, msgType) — 0 until anything has been admitted,
// matching send_token's own seq_num==0 starting point — without mutating
// state.
func (b *Bridge) peekInboundStatus(sourceChain chainid.ID, msgType message.Type, seqNum uint64) string {
	expected := b.nextInboundSeq[inboundKey{SourceChain: sourceChain, MessageType: msgType}]
	switch {
	case seqNum < expected:
		return "duplicate"
	case seqNum == expected:
		return "next"
	default:
		return "gap"
	}
}

func (b *Bridge) commitInboundSeq(sourceChain chainid.ID, msgType message.Type, seqNum uint64) {
	b.nextInboundSeq[inboundKey{SourceChain: sourceChain, MessageType: msgType}] = seqNum + 1
}

// SendToken burns `amount` of typeName out of the treasury and returns
// the type-0 message a relayer should carry to targetChain (spec.md
// §4.2 send_token). The outbound sequence number is assigned and
// committed only once the burn has actually succeeded.
func (b *Bridge) SendToken(sender []byte, targetChain chainid.ID, target []byte, typeName string, amount uint64) (message.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.paused {
		return message.Message{}, ErrBridgePaused
	}
	if !chainid.IsValidRoute(b.chainID, targetChain) {
		return message.Message{}, chainid.ErrInvalidBridgeRoute
	}

	if amount == 0 {
		return message.Message{}, ErrZeroAmount
	}

	meta, err := b.treasury.Metadata(typeName)
	if err != nil {
		return message.Message{}, err
	}

	candidateSeq := b.nextOutboundSeq[message.TypeTokenTransfer]
	m, err := message.NewTokenTransfer(candidateSeq, b.chainID, sender, targetChain, target, meta.ID, amount)
	if err != nil {
		return message.Message{}, err
	}

	if err := b.treasury.Burn(typeName, amount); err != nil {
		return message.Message{}, err
	}
	b.nextOutboundSeq[message.TypeTokenTransfer] = candidateSeq + 1

	b.sink.Publish(events.TokenDeposited{
		SeqNum:      candidateSeq,
		TargetChain: targetChain,
		Target:      append([]byte(nil), target...),
		TokenType:   meta.ID,
		Amount:      amount,
	})
	return m, nil
}

// ApproveTokenTransfer verifies signatures against a type-0 message's
// required voting-power threshold in one shot. A signature set that
// falls short aborts with committee.ErrSignatureBelowThreshold (or
// whatever VerifySignatures rejects it for) without creating a record
// or advancing the inbound sequence number — only a signature set that
// already meets the threshold creates the record, already Approved. A
// call against an already-Approved or -Claimed record is an idempotent
// no-op that reports the current state (spec.md §3.6, §4.7, §8
// scenario 6).
func (b *Bridge) ApproveTokenTransfer(m message.Message, signatures [][]byte) (RecordState, error) {
	if m.Type != message.TypeTokenTransfer {
		return 0, ErrUnexpectedMessageType
	}
	if m.Version != message.Version {
		return 0, message.ErrUnexpectedVersion
	}

	payload, err := message.ParseTokenTransfer(m.Payload)
	if err != nil {
		return 0, err
	}
	if m.SourceChain != b.chainID && payload.TargetChain != b.chainID {
		return 0, fmt.Errorf("%w: %+v", ErrMessageNotForThisChain, m.Key())
	}

	key := m.Key()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.paused {
		return 0, ErrBridgePaused
	}

	if rec, exists := b.tokenTransferRecords[key]; exists {
		if !m.Equal(rec.Message) {
			return 0, ErrMessageMismatch
		}
		b.sink.Publish(events.TokenTransferAlreadyApproved{SourceChain: key.SourceChain, SeqNum: key.BridgeSeqNum})
		return rec.State, nil
	}

	switch b.peekInboundStatus(key.SourceChain, key.MessageType, key.BridgeSeqNum) {
	case "gap":
		return 0, fmt.Errorf("%w: %+v", ErrOutOfOrderMessage, key)
	case "duplicate":
		return 0, fmt.Errorf("%w: %+v", ErrStaleMessage, key)
	}

	if err := b.committee.VerifySignatures(m, signatures); err != nil {
		return 0, err
	}

	rec := &BridgeRecord{Message: m, State: StateApproved}
	b.tokenTransferRecords[key] = rec
	b.commitInboundSeq(key.SourceChain, key.MessageType, key.BridgeSeqNum)
	b.sink.Publish(events.TokenTransferApproved{SourceChain: key.SourceChain, SeqNum: key.BridgeSeqNum})
	return rec.State, nil
}

// claimLocked is the shared body of ClaimToken/ClaimAndTransferToken. A
// non-nil caller must equal the record's target address (spec.md §4.7's
// "unauthorised claim"); pass nil to skip the check, as
// ClaimAndTransferToken does, since it delivers to the recorded target
// itself rather than to whoever calls it. Caller must hold b.mu.
func (b *Bridge) claimLocked(caller []byte, clockMs uint64, sourceChain chainid.ID, seqNum uint64) (message.TokenTransferPayload, treasury.Token, treasury.Metadata, error) {
	key := message.Key{SourceChain: sourceChain, MessageType: message.TypeTokenTransfer, BridgeSeqNum: seqNum}
	rec, ok := b.tokenTransferRecords[key]
	if !ok {
		return message.TokenTransferPayload{}, treasury.Token{}, treasury.Metadata{}, ErrRecordNotFound
	}

	payload, err := message.ParseTokenTransfer(rec.Message.Payload)
	if err != nil {
		return message.TokenTransferPayload{}, treasury.Token{}, treasury.Metadata{}, err
	}
	if caller != nil && !bytes.Equal(caller, payload.Target) {
		return payload, treasury.Token{}, treasury.Metadata{}, ErrUnauthorizedClaim
	}
	meta, err := b.treasury.MetadataByID(payload.TokenType)
	if err != nil {
		return message.TokenTransferPayload{}, treasury.Token{}, treasury.Metadata{}, err
	}

	switch rec.State {
	case StatePending:
		return payload, treasury.Token{}, meta, ErrNotYetApproved
	case StateClaimed:
		b.sink.Publish(events.TokenTransferAlreadyClaimed{SourceChain: sourceChain, SeqNum: seqNum})
		return payload, treasury.Token{TypeName: meta.TypeName, Amount: rec.ClaimedAmount}, meta, nil
	}

	route, err := chainid.GetRoute(sourceChain, b.chainID)
	if err != nil {
		return payload, treasury.Token{}, meta, err
	}

	withinLimit, err := b.limiter.CheckAndRecordSendingTransfer(route, meta.DecimalMultiplier, meta.NotionalValueUSD8dp, payload.Amount, clockMs)
	if err != nil {
		return payload, treasury.Token{}, meta, err
	}
	if !withinLimit {
		// The record stays Approved; a later retry (e.g. once the
		// window has slid forward) can still succeed.
		b.sink.Publish(events.TokenTransferLimitExceed{SourceChain: sourceChain, SeqNum: seqNum, Amount: payload.Amount})
		return payload, treasury.Token{}, meta, nil
	}

	token, err := b.treasury.Mint(meta.TypeName, payload.Amount)
	if err != nil {
		return payload, treasury.Token{}, meta, err
	}

	rec.State = StateClaimed
	rec.ClaimedAmount = payload.Amount
	b.sink.Publish(events.TokenTransferClaimed{SourceChain: sourceChain, SeqNum: seqNum, Amount: payload.Amount})
	return payload, token, meta, nil
}

// ClaimToken mints the claimed amount once a token-transfer record is
// Approved, re-recording it against the 24h route limiter first.
// caller must equal the record's target address (20-byte EVM or
// 32-byte home, spec.md §4.7) or the call is rejected with
// ErrUnauthorizedClaim — unlike ClaimAndTransferToken, ClaimToken hands
// the minted token straight back to whoever calls it, so it must be the
// recorded owner. A limiter-exceeded attempt returns a zero Token and a
// nil error — the record is left Approved for a later retry (spec.md
// §4.7, §7).
func (b *Bridge) ClaimToken(caller []byte, clockMs uint64, sourceChain chainid.ID, seqNum uint64) (treasury.Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, token, _, err := b.claimLocked(caller, clockMs, sourceChain, seqNum)
	return token, err
}

// ClaimAndTransferToken does what ClaimToken does and additionally hands
// the minted token off to disburser, addressed to the message's original
// target; it may be called by anyone, since the payout always lands on
// the recorded target rather than the caller. A repeat call on an
// already-Claimed record returns the claimed token without disbursing
// it again.
func (b *Bridge) ClaimAndTransferToken(disburser Disburser, clockMs uint64, sourceChain chainid.ID, seqNum uint64) (treasury.Token, error) {
	b.mu.Lock()
	key := message.Key{SourceChain: sourceChain, MessageType: message.TypeTokenTransfer, BridgeSeqNum: seqNum}
	rec, ok := b.tokenTransferRecords[key]
	alreadyClaimed := ok && rec.State == StateClaimed
	payload, token, meta, err := b.claimLocked(nil, clockMs, sourceChain, seqNum)
	b.mu.Unlock()

	if err != nil || token.Amount == 0 || alreadyClaimed {
		return token, err
	}
	if disburser == nil {
		return token, nil
	}
	if err := disburser.Disburse(payload.Target, meta.TypeName, token.Amount); err != nil {
		return token, fmt.Errorf("bridge: disburse: %w", err)
	}
	return token, nil
}

// ExecuteSystemMessage verifies signatures and dispatches any
// non-token-transfer message type (spec.md §4.6's emergency_op,
// execute_blocklist, update_bridge_limit, update_asset_price, and
// add_tokens_on_home). Re-delivery of an already-executed message is a
// silent no-op; out-of-order delivery is rejected.
func (b *Bridge) ExecuteSystemMessage(m message.Message, signatures [][]byte) error {
	if m.Type == message.TypeTokenTransfer {
		return ErrUnexpectedMessageType
	}
	if m.Version != message.Version {
		return message.ErrUnexpectedVersion
	}
	if m.SourceChain != b.chainID {
		return fmt.Errorf("%w: %+v", ErrMessageNotForThisChain, m.Key())
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.peekInboundStatus(m.SourceChain, m.Type, m.SeqNum) {
	case "duplicate":
		return nil
	case "gap":
		return fmt.Errorf("%w: %+v", ErrOutOfOrderMessage, m.Key())
	}

	if err := b.committee.VerifySignatures(m, signatures); err != nil {
		return err
	}

	if err := b.dispatchSystemMessage(m); err != nil {
		return err
	}

	b.commitInboundSeq(m.SourceChain, m.Type, m.SeqNum)
	return nil
}

func (b *Bridge) dispatchSystemMessage(m message.Message) error {
	switch m.Type {
	case message.TypeEmergencyOp:
		op, err := message.ParseEmergencyOp(m.Payload)
		if err != nil {
			return err
		}
		switch op {
		case message.EmergencyOpPause:
			b.setPaused(true)
			b.sink.Publish(events.BridgePaused{SourceChain: m.SourceChain, SeqNum: m.SeqNum})
		case message.EmergencyOpUnpause:
			b.setPaused(false)
			b.sink.Publish(events.BridgeUnpaused{SourceChain: m.SourceChain, SeqNum: m.SeqNum})
		default:
			return fmt.Errorf("bridge: unsupported emergency op %d", op)
		}
		return nil

	case message.TypeCommitteeBlocklist:
		listType, addrs, err := message.ParseBlocklist(m.Payload)
		if err != nil {
			return err
		}
		if err := b.committee.ExecuteBlocklist(listType, addrs); err != nil {
			return err
		}
		b.sink.Publish(events.ValidatorBlocklistUpdated{
			SourceChain: m.SourceChain,
			SeqNum:      m.SeqNum,
			Blocklisted: listType != 1,
			Addresses:   addrs,
		})
		return nil

	case message.TypeUpdateBridgeLimit:
		p, err := message.ParseUpdateBridgeLimit(m.Payload)
		if err != nil {
			return err
		}
		route, err := chainid.GetRoute(p.SendingChain, b.chainID)
		if err != nil {
			return err
		}
		b.limiter.UpdateRouteLimit(route, p.NewLimitUSD8dp)
		b.sink.Publish(events.UpdateRouteLimit{Route: route, NewLimitUSD8dp: p.NewLimitUSD8dp})
		return nil

	case message.TypeUpdateAssetPrice:
		p, err := message.ParseUpdateAssetPrice(m.Payload)
		if err != nil {
			return err
		}
		if _, err := b.treasury.UpdateAssetNotionalPrice(p.TokenID, p.NewPriceUSD8dp); err != nil {
			return err
		}
		b.sink.Publish(events.UpdateTokenPrice{TokenID: p.TokenID, NewPriceUSD8dp: p.NewPriceUSD8dp})
		return nil

	case message.TypeAddTokensOnHome:
		p, err := message.ParseAddTokensOnHome(m.Payload)
		if err != nil {
			return err
		}
		for i := range p.IDs {
			meta, err := b.treasury.AddNewTokenWithNativeFlag(string(p.TypeNames[i]), p.IDs[i], p.PricesUSD8dp[i], p.Native)
			if err != nil {
				return err
			}
			b.sink.Publish(events.NewToken{TokenID: meta.ID, TypeName: meta.TypeName, NotionalValueUSD8dp: meta.NotionalValueUSD8dp})
		}
		return nil

	default:
		return fmt.Errorf("bridge: unknown message type %d", m.Type)
	}
}

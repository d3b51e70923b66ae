// Package events defines the typed, observable state changes the bridge
// orchestrator emits (spec.md §4.7, §7) and a pluggable Sink to publish
// them through, grounded on workers/handlers/util.go's responseJSON
// pattern of serializing a single well-known struct per outcome rather
// than a loosely-typed map.
package events

import (
	"log"

	"github.com/starcoin-bridge/bridgecore/chainid"
)

// TokenDeposited is emitted when SendToken locks/burns a token on the
// sending side and records a new outbound sequence number.
type TokenDeposited struct {
	SeqNum      uint64
	TargetChain chainid.ID
	Target      []byte
	TokenType   uint8
	Amount      uint64
}

// TokenTransferApproved is emitted the first time a token-transfer
// message reaches committee-approved state.
type TokenTransferApproved struct {
	SourceChain chainid.ID
	SeqNum      uint64
}

// TokenTransferAlreadyApproved is emitted on an idempotent re-approve of
// an already-approved transfer (spec.md §4.7's duplicate-approve path).
type TokenTransferAlreadyApproved struct {
	SourceChain chainid.ID
	SeqNum      uint64
}

// TokenTransferClaimed is emitted when a previously-approved transfer is
// claimed and the receiving side mints/unlocks the token.
type TokenTransferClaimed struct {
	SourceChain chainid.ID
	SeqNum      uint64
	Amount      uint64
}

// TokenTransferAlreadyClaimed is emitted on an idempotent re-claim.
type TokenTransferAlreadyClaimed struct {
	SourceChain chainid.ID
	SeqNum      uint64
}

// TokenTransferLimitExceed is emitted instead of a claim when the 24h
// route limiter would be exceeded; the record stays Approved so the
// claim can be retried later (spec.md §4.7, §4.5).
type TokenTransferLimitExceed struct {
	SourceChain chainid.ID
	SeqNum      uint64
	Amount      uint64
}

// NewToken is emitted when the treasury promotes a waiting-room token to
// supported.
type NewToken struct {
	TokenID             uint8
	TypeName            string
	NotionalValueUSD8dp uint64
}

// UpdateTokenPrice is emitted on a successful update_asset_price.
type UpdateTokenPrice struct {
	TokenID        uint8
	NewPriceUSD8dp uint64
}

// UpdateRouteLimit is emitted on a successful update_bridge_limit.
type UpdateRouteLimit struct {
	Route          chainid.Route
	NewLimitUSD8dp uint64
}

// BridgePaused is emitted when an emergency_op pause message is executed.
type BridgePaused struct {
	SourceChain chainid.ID
	SeqNum      uint64
}

// BridgeUnpaused is emitted when an emergency_op unpause message is
// executed.
type BridgeUnpaused struct {
	SourceChain chainid.ID
	SeqNum      uint64
}

// ValidatorBlocklistUpdated is emitted when execute_blocklist runs.
type ValidatorBlocklistUpdated struct {
	SourceChain chainid.ID
	SeqNum      uint64
	Blocklisted bool
	Addresses   [][]byte
}

// Sink receives every event the orchestrator emits. Implementations must
// not block the caller for long; ConsoleSink just logs.
type Sink interface {
	Publish(event any)
}

// MemorySink accumulates events in order, for tests and introspection.
type MemorySink struct {
	Events []any
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Publish implements Sink.
func (s *MemorySink) Publish(event any) {
	s.Events = append(s.Events, event)
}

// NopSink discards every event; used where wiring a sink is optional.
type NopSink struct{}

// Publish implements Sink.
func (NopSink) Publish(event any) {}

// ConsoleSink logs every event with log.Printf, the same "%+v"-by-default
// reporting the teacher's handlers fall back to when nothing fancier is
// wired up.
type ConsoleSink struct{}

// Publish implements Sink.
func (ConsoleSink) Publish(event any) {
	log.Printf("events: %T %+v", event, event)
}

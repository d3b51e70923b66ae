// Package message implements construction and parsing of the six bridge
// message variants (spec.md §3.2, §4.2, §6.1). Every extractor is given a
// forward-reading cursor over the payload (equivalent, per spec.md §9's
// design note, to reversing the BCS back-popping buffer once at entry) and
// must assert the cursor is fully drained before returning, or the message
// is rejected with ErrTrailingBytes.
package message

import (
	"errors"
	"fmt"

	ethav "github.com/KOREAN139/ethereum-address-validator"
	"github.com/ethereum/go-ethereum/common"

	"github.com/starcoin-bridge/bridgecore/bcs"
	"github.com/starcoin-bridge/bridgecore/chainid"
)

// Type tags the six wire message variants. Values are part of the wire
// protocol and must be preserved.
type Type uint8

const (
	TypeTokenTransfer    Type = 0
	TypeCommitteeBlocklist Type = 1
	TypeEmergencyOp       Type = 2
	TypeUpdateBridgeLimit Type = 3
	TypeUpdateAssetPrice  Type = 4
	TypeAddTokensOnHome   Type = 5
)

// Version is the only message_version this spec revision accepts.
const Version uint8 = 1

const (
	evmAddressLen  = 20
	homeAddressLen = 32
	tokenTransferPayloadLen = 64
)

var (
	ErrInvalidPayloadLength = errors.New("message: invalid payload length")
	ErrTrailingBytes        = errors.New("message: trailing bytes after decode")
	ErrEmptyList            = errors.New("message: empty list")
	ErrInvalidAddressLength = errors.New("message: invalid address length")
	ErrUnexpectedType       = errors.New("message: unexpected message type")
	ErrUnexpectedVersion    = errors.New("message: unexpected message version")
	ErrInvalidEVMAddress    = errors.New("message: invalid EVM address")
)

// Key uniquely identifies any message ever handled by the bridge
// (spec.md §3.2).
type Key struct {
	SourceChain   chainid.ID
	MessageType   Type
	BridgeSeqNum  uint64
}

// Message is the tuple every wire message is framed as (spec.md §3.2).
type Message struct {
	Type        Type
	Version     uint8
	SeqNum      uint64
	SourceChain chainid.ID
	Payload     []byte
}

// Key returns the BridgeMessageKey for this message.
func (m Message) Key() Key {
	return Key{SourceChain: m.SourceChain, MessageType: m.Type, BridgeSeqNum: m.SeqNum}
}

// Equal does a bytewise comparison of two messages (needed for the
// re-approve idempotence check in the orchestrator).
func (m Message) Equal(other Message) bool {
	if m.Type != other.Type || m.Version != other.Version || m.SeqNum != other.SeqNum || m.SourceChain != other.SourceChain {
		return false
	}
	if len(m.Payload) != len(other.Payload) {
		return false
	}
	for i := range m.Payload {
		if m.Payload[i] != other.Payload[i] {
			return false
		}
	}
	return true
}

// Serialize produces the exact on-wire byte sequence spec.md §6.1 defines:
// type || version || seq_num(BE) || source_chain || payload.
func (m Message) Serialize() []byte {
	out := make([]byte, 0, 11+len(m.Payload))
	out = append(out, byte(m.Type), m.Version)
	out = bcs.AppendU64BE(out, m.SeqNum)
	out = append(out, byte(m.SourceChain))
	out = append(out, m.Payload...)
	return out
}

// Deserialize parses the 11-byte fixed header off the front of b. The
// payload is returned as-is, undigested; per-type extractors below parse
// it further.
func Deserialize(b []byte) (Message, error) {
	if len(b) < 11 {
		return Message{}, fmt.Errorf("%w: header needs 11 bytes, have %d", ErrInvalidPayloadLength, len(b))
	}
	typ := Type(b[0])
	version := b[1]
	seqNum, rest, err := bcs.PeelU64BE(b[2:10])
	if err != nil {
		return Message{}, err
	}
	_ = rest
	source := chainid.ID(b[10])
	payload := append([]byte(nil), b[11:]...)
	return Message{Type: typ, Version: version, SeqNum: seqNum, SourceChain: source, Payload: payload}, nil
}

// TokenTransferPayload is the parsed form of a type-0 message payload.
type TokenTransferPayload struct {
	Sender      []byte
	TargetChain chainid.ID
	Target      []byte
	TokenType   uint8
	Amount      uint64
}

// cursor is a tiny forward-reading view over a byte slice used by the
// per-type extractors below.
type cursor struct {
	b []byte
}

func (c *cursor) u8() (uint8, error) {
	if len(c.b) < 1 {
		return 0, ErrInvalidPayloadLength
	}
	v := c.b[0]
	c.b = c.b[1:]
	return v, nil
}

func (c *cursor) take(n int) ([]byte, error) {
	if len(c.b) < n {
		return nil, ErrInvalidPayloadLength
	}
	v := c.b[:n]
	c.b = c.b[n:]
	return v, nil
}

func (c *cursor) u64BE() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	v, _, err := bcs.PeelU64BE(b)
	return v, err
}

func (c *cursor) requireEmpty() error {
	if len(c.b) != 0 {
		return fmt.Errorf("%w: %d byte(s) left", ErrTrailingBytes, len(c.b))
	}
	return nil
}

// NewTokenTransfer constructs a type-0 message. sender/target lengths
// must be 32/20 (home->EVM) or 20/32 (EVM->home); the wire payload is
// always exactly 64 bytes (spec.md §4.2).
func NewTokenTransfer(seqNum uint64, sourceChain chainid.ID, sender []byte, targetChain chainid.ID, target []byte, tokenType uint8, amount uint64) (Message, error) {
	if err := chainid.AssertValidChainID(sourceChain); err != nil {
		return Message{}, err
	}
	if err := chainid.AssertValidChainID(targetChain); err != nil {
		return Message{}, err
	}

	payload := make([]byte, 0, tokenTransferPayloadLen)
	payload = append(payload, byte(len(sender)))
	payload = append(payload, sender...)
	payload = append(payload, byte(targetChain))
	payload = append(payload, byte(len(target)))
	payload = append(payload, target...)
	payload = append(payload, tokenType)
	payload = bcs.AppendU64BE(payload, amount)

	if len(payload) != tokenTransferPayloadLen {
		return Message{}, fmt.Errorf("%w: got %d, want %d", ErrInvalidPayloadLength, len(payload), tokenTransferPayloadLen)
	}
	if err := validateEVMSide(sender, target); err != nil {
		return Message{}, err
	}

	return Message{Type: TypeTokenTransfer, Version: Version, SeqNum: seqNum, SourceChain: sourceChain, Payload: payload}, nil
}

// validateEVMSide checks that whichever of sender/target is the 20-byte
// EVM-side address actually decodes as one, using the teacher's exact
// address-validation dependency.
func validateEVMSide(sender, target []byte) error {
	var evmSide []byte
	switch {
	case len(sender) == evmAddressLen:
		evmSide = sender
	case len(target) == evmAddressLen:
		evmSide = target
	default:
		return fmt.Errorf("%w: neither side is a 20-byte EVM address", ErrInvalidAddressLength)
	}
	if err := ethav.Validate(common.BytesToAddress(evmSide).Hex()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEVMAddress, err)
	}
	return nil
}

// ParseTokenTransfer parses a type-0 payload, rejecting anything other
// than exactly 64 bytes.
func ParseTokenTransfer(payload []byte) (TokenTransferPayload, error) {
	if len(payload) != tokenTransferPayloadLen {
		return TokenTransferPayload{}, fmt.Errorf("%w: got %d, want %d", ErrInvalidPayloadLength, len(payload), tokenTransferPayloadLen)
	}
	c := cursor{b: payload}

	senderLen, err := c.u8()
	if err != nil {
		return TokenTransferPayload{}, err
	}
	sender, err := c.take(int(senderLen))
	if err != nil {
		return TokenTransferPayload{}, err
	}
	targetChainByte, err := c.u8()
	if err != nil {
		return TokenTransferPayload{}, err
	}
	targetLen, err := c.u8()
	if err != nil {
		return TokenTransferPayload{}, err
	}
	target, err := c.take(int(targetLen))
	if err != nil {
		return TokenTransferPayload{}, err
	}
	tokenType, err := c.u8()
	if err != nil {
		return TokenTransferPayload{}, err
	}
	amount, err := c.u64BE()
	if err != nil {
		return TokenTransferPayload{}, err
	}
	if err := c.requireEmpty(); err != nil {
		return TokenTransferPayload{}, err
	}
	if err := validateEVMSide(sender, target); err != nil {
		return TokenTransferPayload{}, err
	}

	return TokenTransferPayload{
		Sender:      append([]byte(nil), sender...),
		TargetChain: chainid.ID(targetChainByte),
		Target:      append([]byte(nil), target...),
		TokenType:   tokenType,
		Amount:      amount,
	}, nil
}

// EmergencyOpType tags the two recognized emergency operations.
type EmergencyOpType uint8

const (
	EmergencyOpPause   EmergencyOpType = 0
	EmergencyOpUnpause EmergencyOpType = 1
)

// NewEmergencyOp constructs a type-2 message.
func NewEmergencyOp(seqNum uint64, sourceChain chainid.ID, op EmergencyOpType) (Message, error) {
	if err := chainid.AssertValidChainID(sourceChain); err != nil {
		return Message{}, err
	}
	return Message{Type: TypeEmergencyOp, Version: Version, SeqNum: seqNum, SourceChain: sourceChain, Payload: []byte{byte(op)}}, nil
}

// ParseEmergencyOp parses a type-2 payload.
func ParseEmergencyOp(payload []byte) (EmergencyOpType, error) {
	c := cursor{b: payload}
	op, err := c.u8()
	if err != nil {
		return 0, err
	}
	if err := c.requireEmpty(); err != nil {
		return 0, err
	}
	return EmergencyOpType(op), nil
}

// BlocklistType distinguishes add-to-blocklist from remove-from-blocklist
// payloads (spec.md §4.6: type != 1 means blocklist, type == 1 means
// unblocklist).
type BlocklistType uint8

// NewBlocklist constructs a type-1 message. addresses must be non-empty,
// each exactly 20 bytes.
func NewBlocklist(seqNum uint64, sourceChain chainid.ID, listType BlocklistType, addresses [][]byte) (Message, error) {
	if err := chainid.AssertValidChainID(sourceChain); err != nil {
		return Message{}, err
	}
	if len(addresses) == 0 {
		return Message{}, ErrEmptyList
	}
	if len(addresses) > 255 {
		return Message{}, fmt.Errorf("%w: too many addresses for a u8 count", ErrInvalidPayloadLength)
	}
	payload := make([]byte, 0, 2+len(addresses)*evmAddressLen)
	payload = append(payload, byte(listType), byte(len(addresses)))
	for _, a := range addresses {
		if len(a) != evmAddressLen {
			return Message{}, fmt.Errorf("%w: got %d, want %d", ErrInvalidAddressLength, len(a), evmAddressLen)
		}
		payload = append(payload, a...)
	}
	return Message{Type: TypeCommitteeBlocklist, Version: Version, SeqNum: seqNum, SourceChain: sourceChain, Payload: payload}, nil
}

// ParseBlocklist parses a type-1 payload.
func ParseBlocklist(payload []byte) (BlocklistType, [][]byte, error) {
	c := cursor{b: payload}
	listType, err := c.u8()
	if err != nil {
		return 0, nil, err
	}
	count, err := c.u8()
	if err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, ErrEmptyList
	}
	addresses := make([][]byte, count)
	for i := range addresses {
		a, err := c.take(evmAddressLen)
		if err != nil {
			return 0, nil, err
		}
		addresses[i] = append([]byte(nil), a...)
	}
	if err := c.requireEmpty(); err != nil {
		return 0, nil, err
	}
	return BlocklistType(listType), addresses, nil
}

// UpdateBridgeLimitPayload is the parsed form of a type-3 payload. The
// message's own SourceChain field is the *receiving* chain; SendingChain
// here is the other leg of the route (spec.md §6.1).
type UpdateBridgeLimitPayload struct {
	SendingChain   chainid.ID
	NewLimitUSD8dp uint64
}

// NewUpdateBridgeLimit constructs a type-3 message.
func NewUpdateBridgeLimit(seqNum uint64, receivingChain chainid.ID, sendingChain chainid.ID, newLimitUSD8dp uint64) (Message, error) {
	if err := chainid.AssertValidChainID(receivingChain); err != nil {
		return Message{}, err
	}
	if err := chainid.AssertValidChainID(sendingChain); err != nil {
		return Message{}, err
	}
	payload := []byte{byte(sendingChain)}
	payload = bcs.AppendU64BE(payload, newLimitUSD8dp)
	return Message{Type: TypeUpdateBridgeLimit, Version: Version, SeqNum: seqNum, SourceChain: receivingChain, Payload: payload}, nil
}

// ParseUpdateBridgeLimit parses a type-3 payload.
func ParseUpdateBridgeLimit(payload []byte) (UpdateBridgeLimitPayload, error) {
	c := cursor{b: payload}
	sendingChain, err := c.u8()
	if err != nil {
		return UpdateBridgeLimitPayload{}, err
	}
	newLimit, err := c.u64BE()
	if err != nil {
		return UpdateBridgeLimitPayload{}, err
	}
	if err := c.requireEmpty(); err != nil {
		return UpdateBridgeLimitPayload{}, err
	}
	return UpdateBridgeLimitPayload{SendingChain: chainid.ID(sendingChain), NewLimitUSD8dp: newLimit}, nil
}

// UpdateAssetPricePayload is the parsed form of a type-4 payload.
type UpdateAssetPricePayload struct {
	TokenID      uint8
	NewPriceUSD8dp uint64
}

// NewUpdateAssetPrice constructs a type-4 message.
func NewUpdateAssetPrice(seqNum uint64, sourceChain chainid.ID, tokenID uint8, newPriceUSD8dp uint64) (Message, error) {
	if err := chainid.AssertValidChainID(sourceChain); err != nil {
		return Message{}, err
	}
	payload := []byte{tokenID}
	payload = bcs.AppendU64BE(payload, newPriceUSD8dp)
	return Message{Type: TypeUpdateAssetPrice, Version: Version, SeqNum: seqNum, SourceChain: sourceChain, Payload: payload}, nil
}

// ParseUpdateAssetPrice parses a type-4 payload.
func ParseUpdateAssetPrice(payload []byte) (UpdateAssetPricePayload, error) {
	c := cursor{b: payload}
	tokenID, err := c.u8()
	if err != nil {
		return UpdateAssetPricePayload{}, err
	}
	newPrice, err := c.u64BE()
	if err != nil {
		return UpdateAssetPricePayload{}, err
	}
	if err := c.requireEmpty(); err != nil {
		return UpdateAssetPricePayload{}, err
	}
	return UpdateAssetPricePayload{TokenID: tokenID, NewPriceUSD8dp: newPrice}, nil
}

// AddTokensPayload is the parsed form of a type-5 payload. Unlike the
// other variants, this one is genuinely BCS: three length-prefixed
// vectors, the price vector little-endian as BCS's default (spec.md
// §6.1).
type AddTokensPayload struct {
	Native     bool
	IDs        []byte
	TypeNames  [][]byte
	PricesUSD8dp []uint64
}

// NewAddTokensOnHome constructs a type-5 message.
func NewAddTokensOnHome(seqNum uint64, sourceChain chainid.ID, native bool, ids []byte, typeNames [][]byte, pricesUSD8dp []uint64) (Message, error) {
	if err := chainid.AssertValidChainID(sourceChain); err != nil {
		return Message{}, err
	}
	if len(ids) != len(typeNames) || len(typeNames) != len(pricesUSD8dp) {
		return Message{}, fmt.Errorf("message: add-tokens arrays must be equal length: ids=%d names=%d prices=%d", len(ids), len(typeNames), len(pricesUSD8dp))
	}

	var payload []byte
	if native {
		payload = append(payload, 1)
	} else {
		payload = append(payload, 0)
	}
	payload = bcs.AppendULEBLen(payload, len(ids))
	payload = append(payload, ids...)

	payload = bcs.AppendULEBLen(payload, len(typeNames))
	for _, n := range typeNames {
		payload = bcs.AppendULEBLen(payload, len(n))
		payload = append(payload, n...)
	}

	payload = bcs.AppendULEBLen(payload, len(pricesUSD8dp))
	for _, p := range pricesUSD8dp {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(p >> (8 * i))
		}
		payload = append(payload, tmp[:]...)
	}

	return Message{Type: TypeAddTokensOnHome, Version: Version, SeqNum: seqNum, SourceChain: sourceChain, Payload: payload}, nil
}

// ParseAddTokensOnHome parses a type-5 payload using the bcs.Decoder's
// back-popping semantics (this is the one variant that is genuinely BCS,
// per spec.md §6.1).
func ParseAddTokensOnHome(payload []byte) (AddTokensPayload, error) {
	if len(payload) < 1 {
		return AddTokensPayload{}, ErrInvalidPayloadLength
	}
	native := payload[0] == 1
	rest := payload[1:]

	// Each vector is consumed in forward order (length, then elements);
	// since bcs.Decoder pops from the tail, we reverse once so forward
	// peeling matches the wire order, per the package's documented
	// trailing-byte convention.
	d := bcs.NewDecoder(reverseBytes(rest))

	idsForward, err := peelVecU8Forward(d)
	if err != nil {
		return AddTokensPayload{}, err
	}
	typeNamesForward, err := peelVecVecU8Forward(d)
	if err != nil {
		return AddTokensPayload{}, err
	}
	pricesForward, err := peelVecU64LEForward(d)
	if err != nil {
		return AddTokensPayload{}, err
	}
	if d.Remaining() != 0 {
		return AddTokensPayload{}, fmt.Errorf("%w: %d byte(s) left", ErrTrailingBytes, d.Remaining())
	}

	return AddTokensPayload{Native: native, IDs: idsForward, TypeNames: typeNamesForward, PricesUSD8dp: pricesForward}, nil
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[len(b)-1-i]
	}
	return out
}

// peelVecU8Forward reads a ULEB128 length followed by that many raw bytes,
// off a decoder that was primed with the buffer reversed so "popTail"
// reads happen in forward wire order.
func peelVecU8Forward(d *bcs.Decoder) ([]byte, error) {
	n, err := peelULEBForward(d)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, err := d.PeelU8()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func peelVecVecU8Forward(d *bcs.Decoder) ([][]byte, error) {
	n, err := peelULEBForward(d)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		v, err := peelVecU8Forward(d)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func peelVecU64LEForward(d *bcs.Decoder) ([]uint64, error) {
	n, err := peelULEBForward(d)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		v, err := peelU64LEForward(d)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// peelULEBForward reads a forward-order ULEB128 length from a
// tail-popping decoder: since each byte is popped in forward order (we
// primed the decoder with the buffer reversed), the raw PeelU8 calls
// already land in the right order; PeelULEBLen does exactly this.
func peelULEBForward(d *bcs.Decoder) (int, error) {
	return d.PeelULEBLen()
}

func peelU64LEForward(d *bcs.Decoder) (uint64, error) {
	var v uint64
	for i := 0; i < 8; i++ {
		b, err := d.PeelU8()
		if err != nil {
			return 0, err
		}
		v |= uint64(b) << (8 * i)
	}
	return v, nil
}

// Package treasury implements the token metadata registry and the
// mint/burn capability dispatch described in spec.md §3.3, §4.4 (C5).
//
// The id<->type_name<->metadata maps and the waiting room for foreign
// tokens pending approval are grounded on config.Configuration's
// nested-struct-of-maps shape (config/config.go); mint/burn capabilities
// are modeled per spec.md §9's design note as non-clonable values held
// exclusively by this package, one slot per registered token type.
package treasury

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnsupportedTokenType = errors.New("treasury: unsupported token type")
	ErrTokenAlreadyWaiting  = errors.New("treasury: token already in waiting room")
	ErrTokenNotWaiting      = errors.New("treasury: token not in waiting room")
	ErrNonZeroSupply        = errors.New("treasury: capability registered with nonzero supply")
	ErrZeroNotionalPrice    = errors.New("treasury: notional price must be positive")
	ErrDuplicateTokenID     = errors.New("treasury: token id already in use")
	ErrMissingCapability    = errors.New("treasury: missing mint/burn capability")
	ErrNilCapability        = errors.New("treasury: nil mint or burn capability")
)

// Token is an opaque, non-clonable value representing a quantity of a
// single registered token type. The underlying "chain environment"
// representation (a native on-chain resource, an account balance, ...) is
// out of this module's scope (spec.md §1); Token only carries the amount
// through burn/mint calls.
type Token struct {
	TypeName string
	Amount   uint64
}

// MintCapability is held exclusively by the treasury for one token type
// and produces new Tokens of that type. It is the external collaborator
// spec.md §1 says the core consumes ("a token mint/burn capability per
// asset type"); adapters/evmtoken ships a concrete ERC-20-backed
// implementation.
type MintCapability interface {
	Mint(amount uint64) (Token, error)
}

// BurnCapability is held exclusively by the treasury for one token type
// and consumes Tokens of that type.
type BurnCapability interface {
	Burn(token Token) error
}

// Metadata is a token's registered description (spec.md §3.3).
type Metadata struct {
	ID                  uint8
	TypeName            string
	DecimalMultiplier   uint64
	NotionalValueUSD8dp uint64
	NativeToken         bool
}

type waitingEntry struct {
	typeName string
	decimals uint8
}

// Registry is the treasury: id<->type_name<->metadata maps, the waiting
// room for foreign tokens pending approval, and the mint/burn capability
// slots. Safe for concurrent use (spec.md §5: when ported to a
// multithreaded runtime, the treasury's global resource gets a
// writer-exclusive lock).
type Registry struct {
	mu sync.Mutex

	metadataByType map[string]Metadata
	typeByID       map[uint8]string
	waitingRoom    map[string]waitingEntry

	mintCaps map[string]MintCapability
	burnCaps map[string]BurnCapability
	supply   map[string]uint64
}

// NewRegistry returns an empty treasury (spec.md §4.4 initialize).
func NewRegistry() *Registry {
	return &Registry{
		metadataByType: make(map[string]Metadata),
		typeByID:       make(map[uint8]string),
		waitingRoom:    make(map[string]waitingEntry),
		mintCaps:       make(map[string]MintCapability),
		burnCaps:       make(map[string]BurnCapability),
		supply:         make(map[string]uint64),
	}
}

// RegisterForeignToken places (typeName, decimals) into the waiting room
// and stores its mint/burn capabilities. Fails if the token already has
// nonzero supply at the moment the capability is registered (spec.md
// §3.3 invariant) or if it is already waiting.
func (r *Registry) RegisterForeignToken(typeName string, decimals uint8, mintCap MintCapability, burnCap BurnCapability, currentSupply uint64) error {
	if mintCap == nil || burnCap == nil {
		return ErrNilCapability
	}
	if currentSupply != 0 {
		return fmt.Errorf("%w: type=%s supply=%d", ErrNonZeroSupply, typeName, currentSupply)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.waitingRoom[typeName]; ok {
		return fmt.Errorf("%w: %s", ErrTokenAlreadyWaiting, typeName)
	}
	r.waitingRoom[typeName] = waitingEntry{typeName: typeName, decimals: decimals}
	r.mintCaps[typeName] = mintCap
	r.burnCaps[typeName] = burnCap
	r.supply[typeName] = currentSupply
	return nil
}

// AddNewToken promotes a waiting-room entry to supported, assigning it a
// token id and notional USD price (spec.md §4.4 add_new_token). Emits
// events.NewToken via the returned Metadata; callers are expected to
// publish it through an events.Sink.
func (r *Registry) AddNewToken(typeName string, tokenID uint8, notionalValueUSD8dp uint64) (Metadata, error) {
	if notionalValueUSD8dp == 0 {
		return Metadata{}, ErrZeroNotionalPrice
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.waitingRoom[typeName]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %s", ErrTokenNotWaiting, typeName)
	}
	if existing, ok := r.typeByID[tokenID]; ok {
		return Metadata{}, fmt.Errorf("%w: id=%d already maps to %s", ErrDuplicateTokenID, tokenID, existing)
	}

	meta := Metadata{
		ID:                  tokenID,
		TypeName:            typeName,
		DecimalMultiplier:   pow10(entry.decimals),
		NotionalValueUSD8dp: notionalValueUSD8dp,
		NativeToken:         false,
	}
	r.metadataByType[typeName] = meta
	r.typeByID[tokenID] = typeName
	delete(r.waitingRoom, typeName)
	return meta, nil
}

// RegisterNativeToken is the home-chain analogue of RegisterForeignToken
// + AddNewToken collapsed into one step, for tokens whose mint/burn
// capability is native to the home chain (spec.md §3.3's native_token
// flag).
func (r *Registry) RegisterNativeToken(typeName string, tokenID uint8, decimals uint8, notionalValueUSD8dp uint64, mintCap MintCapability, burnCap BurnCapability, currentSupply uint64) (Metadata, error) {
	if mintCap == nil || burnCap == nil {
		return Metadata{}, ErrNilCapability
	}
	if currentSupply != 0 {
		return Metadata{}, fmt.Errorf("%w: type=%s supply=%d", ErrNonZeroSupply, typeName, currentSupply)
	}
	if notionalValueUSD8dp == 0 {
		return Metadata{}, ErrZeroNotionalPrice
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.typeByID[tokenID]; ok {
		return Metadata{}, fmt.Errorf("%w: id=%d already maps to %s", ErrDuplicateTokenID, tokenID, existing)
	}

	meta := Metadata{
		ID:                  tokenID,
		TypeName:            typeName,
		DecimalMultiplier:   pow10(decimals),
		NotionalValueUSD8dp: notionalValueUSD8dp,
		NativeToken:         true,
	}
	r.metadataByType[typeName] = meta
	r.typeByID[tokenID] = typeName
	r.mintCaps[typeName] = mintCap
	r.burnCaps[typeName] = burnCap
	r.supply[typeName] = currentSupply
	return meta, nil
}

// AddNewTokenWithNativeFlag is a variant of AddNewToken used when a
// governance add_tokens_on_home message specifies whether a waiting-room
// entry is the home chain's own native asset (spec.md §4.2's
// add_tokens_on_home `native` flag).
func (r *Registry) AddNewTokenWithNativeFlag(typeName string, tokenID uint8, notionalValueUSD8dp uint64, native bool) (Metadata, error) {
	meta, err := r.AddNewToken(typeName, tokenID, notionalValueUSD8dp)
	if err != nil {
		return Metadata{}, err
	}
	if native {
		meta.NativeToken = true
		r.mu.Lock()
		r.metadataByType[typeName] = meta
		r.mu.Unlock()
	}
	return meta, nil
}

// Metadata looks up a registered token's metadata by type name.
func (r *Registry) Metadata(typeName string) (Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.metadataByType[typeName]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %s", ErrUnsupportedTokenType, typeName)
	}
	return meta, nil
}

// MetadataByID looks up a registered token's metadata by its 1-byte id.
func (r *Registry) MetadataByID(id uint8) (Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	typeName, ok := r.typeByID[id]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: id=%d", ErrUnsupportedTokenType, id)
	}
	return r.metadataByType[typeName], nil
}

// TokenID is a pure lookup: the 1-byte id of a registered type.
func (r *Registry) TokenID(typeName string) (uint8, error) {
	meta, err := r.Metadata(typeName)
	if err != nil {
		return 0, err
	}
	return meta.ID, nil
}

// DecimalMultiplier is a pure lookup: 10^decimals for a registered type.
func (r *Registry) DecimalMultiplier(typeName string) (uint64, error) {
	meta, err := r.Metadata(typeName)
	if err != nil {
		return 0, err
	}
	return meta.DecimalMultiplier, nil
}

// NotionalValueUSD8dp is a pure lookup: the registered 8dp USD price.
func (r *Registry) NotionalValueUSD8dp(typeName string) (uint64, error) {
	meta, err := r.Metadata(typeName)
	if err != nil {
		return 0, err
	}
	return meta.NotionalValueUSD8dp, nil
}

// UpdateAssetNotionalPrice updates a registered token's USD price,
// looked up by id (spec.md §4.4, messages carry token_id not type_name).
func (r *Registry) UpdateAssetNotionalPrice(id uint8, newPriceUSD8dp uint64) (Metadata, error) {
	if newPriceUSD8dp == 0 {
		return Metadata{}, ErrZeroNotionalPrice
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	typeName, ok := r.typeByID[id]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: id=%d", ErrUnsupportedTokenType, id)
	}
	meta := r.metadataByType[typeName]
	meta.NotionalValueUSD8dp = newPriceUSD8dp
	r.metadataByType[typeName] = meta
	return meta, nil
}

// Burn consumes `amount` of typeName through its registered burn
// capability. The bookkeeping supply does not go below zero.
func (r *Registry) Burn(typeName string, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.metadataByType[typeName]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedTokenType, typeName)
	}
	burnCap, ok := r.burnCaps[typeName]
	if !ok {
		return fmt.Errorf("%w: burn cap for %s", ErrMissingCapability, typeName)
	}
	if err := burnCap.Burn(Token{TypeName: typeName, Amount: amount}); err != nil {
		return err
	}
	if r.supply[typeName] < amount {
		r.supply[typeName] = 0
	} else {
		r.supply[typeName] -= amount
	}
	return nil
}

// Mint produces `amount` of typeName through its registered mint
// capability.
func (r *Registry) Mint(typeName string, amount uint64) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.metadataByType[typeName]; !ok {
		return Token{}, fmt.Errorf("%w: %s", ErrUnsupportedTokenType, typeName)
	}
	mintCap, ok := r.mintCaps[typeName]
	if !ok {
		return Token{}, fmt.Errorf("%w: mint cap for %s", ErrMissingCapability, typeName)
	}
	token, err := mintCap.Mint(amount)
	if err != nil {
		return Token{}, err
	}
	r.supply[typeName] += amount
	return token, nil
}

// Supply reports the treasury's bookkeeping view of a token's supply
// (only accurate if all mint/burn traffic for that type flows through
// this registry).
func (r *Registry) Supply(typeName string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supply[typeName]
}

func pow10(n uint8) uint64 {
	v := uint64(1)
	for i := uint8(0); i < n; i++ {
		v *= 10
	}
	return v
}

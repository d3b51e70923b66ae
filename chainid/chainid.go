// Package chainid enumerates the chain ids the bridge knows about and the
// fixed, asymmetric set of directed routes permitted between them.
package chainid

import "fmt"

// ID is an 8-bit chain tag. The set of legal values is fixed at compile
// time (spec.md §3.1).
type ID uint8

// Foreign, EVM-compatible chains.
const (
	EthMainnet ID = 10
	EthSepolia ID = 11
	EthCustom  ID = 12
)

// Home-chain variants.
const (
	HomeMainnet ID = 1
	HomeTestnet ID = 2
	HomeDevnet  ID = 3
	HomeCustom  ID = 4
)

var validIDs = map[ID]string{
	EthMainnet:  "eth_mainnet",
	EthSepolia:  "eth_sepolia",
	EthCustom:   "eth_custom",
	HomeMainnet: "home_mainnet",
	HomeTestnet: "home_testnet",
	HomeDevnet:  "home_devnet",
	HomeCustom:  "home_custom",
}

// Route is a directed, ordered pair of chain ids.
type Route struct {
	Source      ID
	Destination ID
}

// routeAllowList is deliberately asymmetric: not every inbound route has a
// matching outbound route and vice versa (spec.md §3.1).
var routeAllowList = map[Route]bool{
	{Source: HomeDevnet, Destination: EthSepolia}: true,
	{Source: EthSepolia, Destination: HomeDevnet}: true,
	{Source: HomeTestnet, Destination: EthSepolia}: true,
	{Source: EthSepolia, Destination: HomeTestnet}: true,
	{Source: HomeMainnet, Destination: EthMainnet}: true,
	{Source: EthMainnet, Destination: HomeMainnet}: true,
	{Source: HomeCustom, Destination: EthCustom}:   true,
	{Source: EthCustom, Destination: HomeCustom}:   true,
}

// ErrInvalidChainID is returned when a chain id is not in the legal set.
var ErrInvalidChainID = fmt.Errorf("chainid: invalid chain id")

// ErrInvalidBridgeRoute is returned when a (source, destination) pair is
// not in the route allow-list.
var ErrInvalidBridgeRoute = fmt.Errorf("chainid: invalid bridge route")

// Name returns the human-readable name of a chain id, if known.
func (id ID) Name() string {
	if name, ok := validIDs[id]; ok {
		return name
	}
	return "unknown"
}

// AssertValidChainID fails with ErrInvalidChainID if id is not in the
// compile-time legal set.
func AssertValidChainID(id ID) error {
	if _, ok := validIDs[id]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidChainID, id)
	}
	return nil
}

// IsValidRoute reports whether (source, destination) is in the allow-list.
func IsValidRoute(source, destination ID) bool {
	return routeAllowList[Route{Source: source, Destination: destination}]
}

// GetRoute returns the Route for (source, destination), failing with
// ErrInvalidBridgeRoute if it is not in the allow-list.
func GetRoute(source, destination ID) (Route, error) {
	r := Route{Source: source, Destination: destination}
	if !routeAllowList[r] {
		return Route{}, fmt.Errorf("%w: %d->%d", ErrInvalidBridgeRoute, source, destination)
	}
	return r, nil
}

// RegisterRoute adds (source, destination) to the allow-list. Exposed so
// devnets/tests can extend the fixed table without touching package state
// directly (mirrors the teacher's config.EVMChains being a package
// variable rather than a constant).
func RegisterRoute(source, destination ID) {
	routeAllowList[Route{Source: source, Destination: destination}] = true
}

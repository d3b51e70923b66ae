package chainid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssertValidChainID(t *testing.T) {
	assert.NoError(t, AssertValidChainID(HomeDevnet))
	assert.NoError(t, AssertValidChainID(EthSepolia))
	assert.ErrorIs(t, AssertValidChainID(ID(99)), ErrInvalidChainID)
}

func TestIsValidRoute(t *testing.T) {
	tests := []struct {
		name   string
		source ID
		dest   ID
		want   bool
	}{
		{"devnet to sepolia allowed", HomeDevnet, EthSepolia, true},
		{"sepolia to devnet allowed", EthSepolia, HomeDevnet, true},
		{"mainnet to sepolia not allowed", HomeMainnet, EthSepolia, false},
		{"devnet to testnet not allowed", HomeDevnet, HomeTestnet, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsValidRoute(tc.source, tc.dest))
		})
	}
}

func TestGetRoute(t *testing.T) {
	route, err := GetRoute(HomeMainnet, EthMainnet)
	assert.NoError(t, err)
	assert.Equal(t, Route{Source: HomeMainnet, Destination: EthMainnet}, route)

	_, err = GetRoute(EthMainnet, EthSepolia)
	assert.ErrorIs(t, err, ErrInvalidBridgeRoute)
}

func TestRegisterRouteExtendsAllowList(t *testing.T) {
	assert.False(t, IsValidRoute(HomeCustom, HomeCustom))
	RegisterRoute(HomeCustom, HomeCustom)
	assert.True(t, IsValidRoute(HomeCustom, HomeCustom))
}

func TestNameFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, "home_devnet", HomeDevnet.Name())
	assert.Equal(t, "unknown", ID(250).Name())
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  http_addr: ":8080"
  redis_host: "localhost"
  redis_port: 6379
home:
  chain_id: 1
EVM:
  address: "0xabc"
  private_key: "deadbeef"
committee:
  min_participation_bps: 5000
route_limits:
  - source_chain_id: 1
    destination_chain_id: 3
    limit_usd_8dp: 100000000000
tokens:
  - type_name: "ETH"
    token_id: 1
    decimals: 18
    notional_value_usd_8dp: 500000000
    native: false
`

func TestInitLoadsConfigAndSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	Init(path)

	assert.Equal(t, ":8080", Config.Server.HTTPAddr)
	assert.Equal(t, 6379, Config.Server.RedisPort)
	assert.Equal(t, uint8(1), Config.Home.ChainID)
	assert.Equal(t, uint32(5000), Config.Committee.MinParticipationBps)

	require.Len(t, SeedData.RouteLimits, 1)
	assert.Equal(t, uint8(1), SeedData.RouteLimits[0].SourceChainID)
	assert.Equal(t, uint64(100000000000), SeedData.RouteLimits[0].LimitUSD8dp)

	require.Len(t, SeedData.Tokens, 1)
	assert.Equal(t, "ETH", SeedData.Tokens[0].TypeName)
	assert.Equal(t, uint8(18), SeedData.Tokens[0].Decimals)
}

func TestInitEnvOverridesServerAddr(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	t.Setenv("SERVER_HTTPADDR", ":9999")
	Init(path)

	assert.Equal(t, ":9999", Config.Server.HTTPAddr)
}

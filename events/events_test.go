package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/starcoin-bridge/bridgecore/chainid"
)

func TestMemorySinkAccumulatesInOrder(t *testing.T) {
	s := NewMemorySink()
	s.Publish(TokenDeposited{SeqNum: 0, TargetChain: chainid.EthSepolia, Amount: 5})
	s.Publish(BridgePaused{SourceChain: chainid.HomeDevnet, SeqNum: 1})

	require := assert.New(t)
	require.Len(s.Events, 2)
	require.Equal(TokenDeposited{SeqNum: 0, TargetChain: chainid.EthSepolia, Amount: 5}, s.Events[0])
	require.Equal(BridgePaused{SourceChain: chainid.HomeDevnet, SeqNum: 1}, s.Events[1])
}

func TestNopSinkDiscards(t *testing.T) {
	// Publish must not panic and leaves nothing observable; there's
	// nothing to assert beyond "it returns".
	NopSink{}.Publish(TokenDeposited{})
}

func TestConsoleSinkDoesNotPanic(t *testing.T) {
	ConsoleSink{}.Publish(NewToken{TokenID: 1, TypeName: "ETH", NotionalValueUSD8dp: 1})
}

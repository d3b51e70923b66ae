package redisstore

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starcoin-bridge/bridgecore/bridge"
	"github.com/starcoin-bridge/bridgecore/chainid"
	"github.com/starcoin-bridge/bridgecore/limiter"
)

// fakeRedis is a minimal RESP server speaking only enough of the
// protocol (SET/GET of bulk strings) for setJSON/getJSON to round-trip
// against; there's no miniredis-equivalent in the retrieved pack, and a
// real redis-server isn't available in this environment.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ln   net.Listener
}

func startFakeRedis(t *testing.T) *fakeRedis {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeRedis{data: make(map[string]string), ln: ln}
	go f.serve()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeRedis) addr() string { return f.ln.Addr().String() }

func (f *fakeRedis) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeRedis) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readRESPArray(r)
		if err != nil {
			return
		}
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "SET":
			f.mu.Lock()
			f.data[args[1]] = args[2]
			f.mu.Unlock()
			conn.Write([]byte("+OK\r\n"))
		case "GET":
			f.mu.Lock()
			v, ok := f.data[args[1]]
			f.mu.Unlock()
			if !ok {
				conn.Write([]byte("$-1\r\n"))
			} else {
				fmt.Fprintf(conn, "$%d\r\n%s\r\n", len(v), v)
			}
		default:
			conn.Write([]byte("-ERR unsupported\r\n"))
		}
	}
}

func readRESPArray(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if len(line) == 0 || line[0] != '*' {
		return nil, fmt.Errorf("redisstore test: expected array, got %q", line)
	}
	var n int
	fmt.Sscanf(line, "*%d\r\n", &n)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lenLine, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		var blen int
		fmt.Sscanf(lenLine, "$%d\r\n", &blen)
		buf := make([]byte, blen+2)
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
		out = append(out, string(buf[:blen]))
	}
	return out, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	f := startFakeRedis(t)
	return &Store{pool: &redis.Pool{
		MaxIdle: 5,
		Dial:    func() (redis.Conn, error) { return redis.Dial("tcp", f.addr()) },
	}}
}

func TestBridgeRecordRoundTrip(t *testing.T) {
	s := newTestStore(t)
	rec := bridge.BridgeRecord{State: bridge.StateApproved, ClaimedAmount: 6800}

	require.NoError(t, s.SaveBridgeRecord(chainid.EthSepolia, 3, rec))

	got, err := s.LoadBridgeRecord(chainid.EthSepolia, 3)
	require.NoError(t, err)
	assert.Equal(t, rec.State, got.State)
	assert.Equal(t, rec.ClaimedAmount, got.ClaimedAmount)
}

func TestLoadBridgeRecordNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadBridgeRecord(chainid.EthSepolia, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLimiterStateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	route, err := chainid.GetRoute(chainid.HomeDevnet, chainid.EthSepolia)
	require.NoError(t, err)

	rec := limiter.TransferRecord{TotalAmount: 12345, HourHead: 4, PerHourAmounts: []uint64{1, 2, 3}}
	require.NoError(t, s.SaveLimiterState(route, rec, 1_000_000_00000000))

	gotRec, gotLimit, err := s.LoadLimiterState(route)
	require.NoError(t, err)
	assert.Equal(t, rec.TotalAmount, gotRec.TotalAmount)
	assert.Equal(t, rec.PerHourAmounts, gotRec.PerHourAmounts)
	assert.Equal(t, uint64(1_000_000_00000000), gotLimit)
}

func TestLoadLimiterStateNotFound(t *testing.T) {
	s := newTestStore(t)
	route, err := chainid.GetRoute(chainid.HomeDevnet, chainid.EthSepolia)
	require.NoError(t, err)

	_, _, err = s.LoadLimiterState(route)
	assert.ErrorIs(t, err, ErrNotFound)
}

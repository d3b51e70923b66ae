// Package redisstore is an optional durable snapshot/restore layer for
// a running *bridge.Bridge and *limiter.Limiter, so a restarted process
// can resume instead of replaying every message from genesis.
//
// The connection pool and JSON-marshal-then-SET persistence pattern are
// redis/redis.go's Init/UpsertBridgeOperation, generalized from a single
// BridgeOperation type to any snapshot-able value, keyed the same way
// (a fixed prefix plus an identifier) rather than through status-keyed
// SADD sets, since this package keeps one snapshot per key rather than
// a queue of operations to scan.
package redisstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gomodule/redigo/redis"

	"github.com/starcoin-bridge/bridgecore/bridge"
	"github.com/starcoin-bridge/bridgecore/chainid"
	"github.com/starcoin-bridge/bridgecore/limiter"
)

// ErrNotFound is returned by the Load* methods when no snapshot exists
// for the requested key.
var ErrNotFound = errors.New("redisstore: not found")

// Store wraps a redigo connection pool.
type Store struct {
	pool *redis.Pool
}

// envelope wraps every persisted value with a fresh snapshot ID, the
// same way redis.go stamps a new uuid onto a BridgeOperation each time
// it's upserted, so a caller diffing two loads can tell whether the
// value actually changed between them.
type envelope struct {
	SnapshotID string          `json:"snapshot_id"`
	Data       json.RawMessage `json:"data"`
}

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

// New dials addr (host:port) lazily through a small idle pool.
func New(addr string) *Store {
	return &Store{
		pool: &redis.Pool{
			MaxIdle: 5,
			Dial:    func() (redis.Conn, error) { return redis.Dial("tcp", addr, timeoutDialOptions()...) },
		},
	}
}

func (s *Store) setJSON(key string, v interface{}) error {
	conn := s.pool.Get()
	defer conn.Close()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redisstore: marshal: %w", err)
	}
	payload, err := json.Marshal(envelope{SnapshotID: uuid.New().String(), Data: data})
	if err != nil {
		return fmt.Errorf("redisstore: marshal envelope: %w", err)
	}
	if _, err := conn.Do("SET", key, payload); err != nil {
		return fmt.Errorf("redisstore: SET %s: %w", key, err)
	}
	return nil
}

func (s *Store) getJSON(key string, v interface{}) error {
	conn := s.pool.Get()
	defer conn.Close()

	raw, err := redis.Bytes(conn.Do("GET", key))
	if errors.Is(err, redis.ErrNil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redisstore: GET %s: %w", key, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("redisstore: unmarshal envelope %s: %w", key, err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("redisstore: unmarshal %s: %w", key, err)
	}
	return nil
}

func bridgeRecordKey(sourceChain chainid.ID, seqNum uint64) string {
	return fmt.Sprintf("bridgerecord:%d:%d", sourceChain, seqNum)
}

func limiterRecordKey(route chainid.Route) string {
	return fmt.Sprintf("limiterrecord:%d:%d", route.Source, route.Destination)
}

func limiterLimitKey(route chainid.Route) string {
	return fmt.Sprintf("limiterlimit:%d:%d", route.Source, route.Destination)
}

// SaveBridgeRecord persists one inbound token-transfer record.
func (s *Store) SaveBridgeRecord(sourceChain chainid.ID, seqNum uint64, rec bridge.BridgeRecord) error {
	return s.setJSON(bridgeRecordKey(sourceChain, seqNum), rec)
}

// LoadBridgeRecord restores a previously-saved record, or ErrNotFound.
func (s *Store) LoadBridgeRecord(sourceChain chainid.ID, seqNum uint64) (bridge.BridgeRecord, error) {
	var rec bridge.BridgeRecord
	err := s.getJSON(bridgeRecordKey(sourceChain, seqNum), &rec)
	return rec, err
}

// SaveLimiterState persists one route's sliding-window record and its
// configured cap.
func (s *Store) SaveLimiterState(route chainid.Route, rec limiter.TransferRecord, limitUSD8dp uint64) error {
	if err := s.setJSON(limiterRecordKey(route), rec); err != nil {
		return err
	}
	return s.setJSON(limiterLimitKey(route), limitUSD8dp)
}

// LoadLimiterState restores a route's sliding-window record and cap.
func (s *Store) LoadLimiterState(route chainid.Route) (limiter.TransferRecord, uint64, error) {
	var rec limiter.TransferRecord
	if err := s.getJSON(limiterRecordKey(route), &rec); err != nil {
		return limiter.TransferRecord{}, 0, err
	}
	var limitUSD8dp uint64
	if err := s.getJSON(limiterLimitKey(route), &limitUSD8dp); err != nil {
		return limiter.TransferRecord{}, 0, err
	}
	return rec, limitUSD8dp, nil
}

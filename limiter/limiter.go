// Package limiter implements the 24-hour sliding-window, USD-notional
// transfer limiter described in spec.md §3.4, §4.5 (C6).
//
// The per-route TransferRecord bucket-sliding algorithm is spec.md §4.5
// verbatim; the notional-value arithmetic uses github.com/holiman/uint256
// (promoted here from the teacher's indirect go-ethereum dependency) so
// the u64*u64 multiplications spec.md requires "in 128-bit arithmetic"
// never silently overflow.
package limiter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/starcoin-bridge/bridgecore/chainid"
)

// MaxHourBuckets is the width of the sliding window (24 hours).
const MaxHourBuckets = 24

// HourMillis is the length of one bucket in the clock's millisecond unit.
const HourMillis = 3_600_000

// USD8dpScale is the fixed-point scale for 8-decimal USD values.
const USD8dpScale = 100_000_000

var (
	// ErrLimitNotFoundForRoute is returned when a route has no configured
	// cap; the limiter deliberately fails closed for unlisted routes
	// (spec.md §4.5).
	ErrLimitNotFoundForRoute = errors.New("limiter: route limit not found")
)

// TransferRecord is the per-route sliding-window state (spec.md §3.4).
type TransferRecord struct {
	HourHead       uint64
	HourTail       uint64
	PerHourAmounts []uint64
	TotalAmount    uint64
}

// Limiter enforces a 24h sliding-window USD notional cap per directed
// route. Safe for concurrent use (spec.md §5).
type Limiter struct {
	mu      sync.Mutex
	records map[chainid.Route]*TransferRecord
	limits  map[chainid.Route]uint64
}

// New returns an empty Limiter; routes must be given a cap via
// UpdateRouteLimit before CheckAndRecordSendingTransfer will accept
// transfers on them.
func New() *Limiter {
	return &Limiter{
		records: make(map[chainid.Route]*TransferRecord),
		limits:  make(map[chainid.Route]uint64),
	}
}

// UpdateRouteLimit upserts the USD (8dp) cap for a route (spec.md §4.5
// update_route_limit).
func (l *Limiter) UpdateRouteLimit(route chainid.Route, newLimitUSD8dp uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[route] = newLimitUSD8dp
}

// RouteLimit returns the currently configured cap for route, or
// ErrLimitNotFoundForRoute.
func (l *Limiter) RouteLimit(route chainid.Route) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	limit, ok := l.limits[route]
	if !ok {
		return 0, fmt.Errorf("%w: %+v", ErrLimitNotFoundForRoute, route)
	}
	return limit, nil
}

// Snapshot returns a copy of the current TransferRecord for route, for
// introspection; it does not mutate limiter state.
func (l *Limiter) Snapshot(route chainid.Route) (TransferRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[route]
	if !ok {
		return TransferRecord{}, false
	}
	return TransferRecord{
		HourHead:       rec.HourHead,
		HourTail:       rec.HourTail,
		PerHourAmounts: append([]uint64(nil), rec.PerHourAmounts...),
		TotalAmount:    rec.TotalAmount,
	}, true
}

// CheckAndRecordSendingTransfer implements spec.md §4.5's algorithm.
// `true` means within limit and recorded; `false` means the transfer
// would exceed the cap and nothing was mutated (spec.md §9's
// normalization of the limiter's inconsistently-interpreted source
// return value).
func (l *Limiter) CheckAndRecordSendingTransfer(route chainid.Route, decimalMultiplier uint64, notionalValueUSD8dp uint64, amount uint64, clockMs uint64) (bool, error) {
	routeLimitUSD8dp, err := l.RouteLimit(route)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[route]
	if !ok {
		rec = &TransferRecord{HourHead: 0, HourTail: 0, PerHourAmounts: []uint64{0}, TotalAmount: 0}
		l.records[route] = rec
	}

	h := clockMs / HourMillis
	slideToHour(rec, h)

	// notional_with_decimals = notional_value_usd_8dp(T) * amount, in
	// decimal-multiplier-scaled units, computed with headroom against
	// u64 overflow.
	notionalWithDecimals := new(uint256.Int).Mul(
		uint256.NewInt(notionalValueUSD8dp),
		uint256.NewInt(amount),
	)

	// Scale route_limit_usd_8dp up by decimalMultiplier so it is
	// comparable to total*decimals + notional_with_decimals in the same
	// (decimal-multiplier-scaled USD) units.
	scaledLimit := new(uint256.Int).Mul(
		uint256.NewInt(routeLimitUSD8dp),
		uint256.NewInt(decimalMultiplier),
	)
	scaledTotal := new(uint256.Int).Mul(
		uint256.NewInt(rec.TotalAmount),
		uint256.NewInt(decimalMultiplier),
	)
	candidate := new(uint256.Int).Add(scaledTotal, notionalWithDecimals)

	if candidate.Gt(scaledLimit) {
		return false, nil
	}

	// Scale notional_with_decimals back down to plain 8dp USD before
	// recording it.
	recordedDelta := new(uint256.Int).Div(notionalWithDecimals, uint256.NewInt(decimalMultiplier))
	delta := recordedDelta.Uint64()

	idx := len(rec.PerHourAmounts) - 1
	rec.PerHourAmounts[idx] += delta
	rec.TotalAmount += delta
	return true, nil
}

// slideToHour advances rec's window to hour h, in place, per spec.md
// §4.5 step 3.
func slideToHour(rec *TransferRecord, h uint64) {
	if rec.HourHead == h {
		return
	}

	var targetTail uint64
	if h >= MaxHourBuckets-1 {
		targetTail = h - (MaxHourBuckets - 1)
	} else {
		targetTail = 0
	}

	if rec.HourHead < targetTail {
		// Entire window is stale.
		rec.HourHead = targetTail
		rec.HourTail = targetTail
		rec.PerHourAmounts = []uint64{0}
		rec.TotalAmount = 0
	} else {
		for rec.HourTail < targetTail {
			rec.TotalAmount -= rec.PerHourAmounts[0]
			rec.PerHourAmounts = rec.PerHourAmounts[1:]
			rec.HourTail++
		}
	}

	for rec.HourHead < h {
		rec.PerHourAmounts = append(rec.PerHourAmounts, 0)
		rec.HourHead++
	}
}

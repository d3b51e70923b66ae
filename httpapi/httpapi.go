// Package httpapi is a read-only introspection server over a running
// bridge: health, pause state, committee membership, a single
// token-transfer record, and a route's limiter snapshot.
//
// Router wiring (chi + middleware.Logger + an OPTIONS/* CORS handler)
// and the responseJSON helper are workers/http.go and
// workers/handlers/util.go kept close to verbatim; the response payload
// shapes follow handlers/types.go's APIResponse family, generalized to
// carry this domain's data instead of a BGL/WBGL balance string.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/starcoin-bridge/bridgecore/bridge"
	"github.com/starcoin-bridge/bridgecore/chainid"
	"github.com/starcoin-bridge/bridgecore/committee"
	"github.com/starcoin-bridge/bridgecore/limiter"
)

// APIResponse is the generic envelope every handler that isn't returning
// a specific payload uses.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// StateResponse answers GET /state.
type StateResponse struct {
	Status  string `json:"status"`
	ChainID uint8  `json:"chain_id"`
	Paused  bool   `json:"paused"`
}

// MemberResponse is one entry of GET /committee.
type MemberResponse struct {
	Address          string `json:"address"`
	CompressedPubkey string `json:"compressed_pubkey_hex"`
	VotingPowerBps   uint32 `json:"voting_power_bps"`
	Blocklisted      bool   `json:"blocklisted"`
}

// RecordResponse answers GET /records/{sourceChain}/{seqNum}.
type RecordResponse struct {
	State         string `json:"state"`
	ClaimedAmount uint64 `json:"claimed_amount"`
}

// LimiterResponse answers GET /limiter/{source}/{destination}.
type LimiterResponse struct {
	LimitUSD8dp uint64   `json:"limit_usd_8dp"`
	TotalAmount uint64   `json:"total_amount"`
	HourHead    uint64   `json:"hour_head"`
	HourTail    uint64   `json:"hour_tail"`
	Buckets     []uint64 `json:"per_hour_amounts"`
}

func responseJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func corsHeaders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Origin, X-Requested-With")
}

// Server is the introspection HTTP API.
type Server struct {
	chainID   chainid.ID
	bridge    *bridge.Bridge
	committee *committee.Registry
	limiter   *limiter.Limiter
}

// New wires a Server around the already-running components it reports
// on.
func New(chainID chainid.ID, b *bridge.Bridge, com *committee.Registry, lim *limiter.Limiter) *Server {
	return &Server{chainID: chainID, bridge: b, committee: com, limiter: lim}
}

// Router returns the chi router; callers own the *http.Server lifecycle
// (cmd/bridgecore wires this the way workers.Worker_HTTP does).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Options("/*", corsHeaders)

	r.Get("/health", s.handleHealth)
	r.Get("/state", s.handleState)
	r.Get("/committee", s.handleCommittee)
	r.Get("/records/{sourceChain}/{seqNum}", s.handleRecord)
	r.Get("/limiter/{source}/{destination}", s.handleLimiter)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	responseJSON(w, &APIResponse{Status: "ok"}, http.StatusOK)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	responseJSON(w, &StateResponse{Status: "ok", ChainID: uint8(s.chainID), Paused: s.bridge.Paused()}, http.StatusOK)
}

func (s *Server) handleCommittee(w http.ResponseWriter, r *http.Request) {
	members := s.committee.Members()
	out := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, MemberResponse{
			Address:          m.Address,
			CompressedPubkey: hex.EncodeToString(m.CompressedPubkey),
			VotingPowerBps:   m.VotingPowerBps,
			Blocklisted:      m.Blocklisted,
		})
	}
	responseJSON(w, out, http.StatusOK)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	sourceChain, err := parseChainID(chi.URLParam(r, "sourceChain"))
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: err.Error()}, http.StatusBadRequest)
		return
	}
	seqNum, err := strconv.ParseUint(chi.URLParam(r, "seqNum"), 10, 64)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: "invalid seq_num"}, http.StatusBadRequest)
		return
	}

	rec, ok := s.bridge.Record(sourceChain, seqNum)
	if !ok {
		responseJSON(w, &APIResponse{Status: "error", Message: "record not found"}, http.StatusNotFound)
		return
	}
	responseJSON(w, &RecordResponse{
		State:         rec.State.String(),
		ClaimedAmount: rec.ClaimedAmount,
	}, http.StatusOK)
}

func (s *Server) handleLimiter(w http.ResponseWriter, r *http.Request) {
	source, err := parseChainID(chi.URLParam(r, "source"))
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: err.Error()}, http.StatusBadRequest)
		return
	}
	destination, err := parseChainID(chi.URLParam(r, "destination"))
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	route, err := chainid.GetRoute(source, destination)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: err.Error()}, http.StatusNotFound)
		return
	}

	limitUSD8dp, err := s.limiter.RouteLimit(route)
	if err != nil {
		responseJSON(w, &APIResponse{Status: "error", Message: err.Error()}, http.StatusNotFound)
		return
	}
	rec, _ := s.limiter.Snapshot(route)

	responseJSON(w, &LimiterResponse{
		LimitUSD8dp: limitUSD8dp,
		TotalAmount: rec.TotalAmount,
		HourHead:    rec.HourHead,
		HourTail:    rec.HourTail,
		Buckets:     rec.PerHourAmounts,
	}, http.StatusOK)
}

func parseChainID(s string) (chainid.ID, error) {
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	id := chainid.ID(n)
	if err := chainid.AssertValidChainID(id); err != nil {
		return 0, err
	}
	return id, nil
}

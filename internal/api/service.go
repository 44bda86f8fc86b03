// Package api provides the HTTP handlers for the settlement engine:
// protocol initialization, swaps, market lifecycle, betting, and claims.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sibyl-protocol/sibyl/internal/custody"
	"github.com/sibyl-protocol/sibyl/internal/engine"
	"github.com/sibyl-protocol/sibyl/internal/metrics"
	"github.com/sibyl-protocol/sibyl/internal/model"
	"github.com/sibyl-protocol/sibyl/internal/store"
)

// Service exposes the engine over HTTP. Every mutating request names the
// acting identity in its body; the identity check gates it against the
// request's asserted signer before the engine runs.
type Service struct {
	engine   *engine.Engine
	identity IdentityCheck
	hub      *WSHub // optional WebSocket hub for event broadcasts
}

// NewService creates the HTTP service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(eng *engine.Engine, identity IdentityCheck, hub *WSHub) *Service {
	return &Service{engine: eng, identity: identity, hub: hub}
}

// Routes mounts all handlers on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Post("/protocol/init", s.InitializeProtocol)
	r.Get("/protocol", s.GetProtocol)
	r.Post("/swap", s.Swap)
	r.Post("/markets", s.CreateMarket)
	r.Get("/markets", s.ListMarkets)
	r.Get("/markets/{marketID}", s.GetMarket)
	r.Get("/markets/{marketID}/positions", s.ListMarketPositions)
	r.Post("/markets/{marketID}/bets", s.PlaceBet)
	r.Post("/markets/{marketID}/resolve", s.Resolve)
	r.Post("/markets/{marketID}/claim", s.Claim)
	r.Get("/positions/{owner}", s.ListPositions)
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
}

// --- Request/Response types ---

// InitRequest is the JSON body for POST /protocol/init.
type InitRequest struct {
	Authority  string `json:"authority"`
	Oracle     string `json:"oracle"`
	Treasury   string `json:"treasury"`
	WagerToken string `json:"wager_token"`
	FeeBps     uint16 `json:"fee_bps"`
	SwapCap    uint64 `json:"swap_cap"`
}

// CreateMarketRequest is the JSON body for POST /markets.
type CreateMarketRequest struct {
	Requester   string `json:"requester"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    int64  `json:"deadline"` // unix seconds
}

// BetRequest is the JSON body for POST /markets/{marketID}/bets.
type BetRequest struct {
	Bettor string        `json:"bettor"`
	Side   model.Outcome `json:"side"`
	Amount uint64        `json:"amount"`
}

// ResolveRequest is the JSON body for POST /markets/{marketID}/resolve.
type ResolveRequest struct {
	Caller     string        `json:"caller"`
	Outcome    model.Outcome `json:"outcome"`
	Confidence uint8         `json:"confidence"`
}

// ClaimRequest is the JSON body for POST /markets/{marketID}/claim.
type ClaimRequest struct {
	Caller   string        `json:"caller"`
	Side     model.Outcome `json:"side"`
	Treasury string        `json:"treasury"`
}

// SwapRequest is the JSON body for POST /swap.
type SwapRequest struct {
	Payer  string `json:"payer"`
	Amount uint64 `json:"amount"`
}

// SwapResponse confirms a successful 1:1 swap.
type SwapResponse struct {
	Payer  string `json:"payer"`
	Minted uint64 `json:"minted"`
}

// --- Handlers ---

// InitializeProtocol handles POST /api/v1/protocol/init.
func (s *Service) InitializeProtocol(w http.ResponseWriter, r *http.Request) {
	var req InitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.identity.Verify(r, req.Authority) {
		writeError(w, "signer does not match authority", http.StatusForbidden)
		return
	}

	p, err := s.engine.Initialize(r.Context(), engine.InitParams{
		Authority:  req.Authority,
		Oracle:     req.Oracle,
		Treasury:   req.Treasury,
		WagerToken: req.WagerToken,
		FeeBps:     req.FeeBps,
		SwapCap:    req.SwapCap,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// GetProtocol handles GET /api/v1/protocol.
func (s *Service) GetProtocol(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.GetProtocol(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateMarket handles POST /api/v1/markets.
func (s *Service) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.identity.Verify(r, req.Requester) {
		writeError(w, "signer does not match requester", http.StatusForbidden)
		return
	}

	m, err := s.engine.CreateMarket(r.Context(), req.Title, req.Description, req.Deadline, req.Requester)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	metrics.MarketsCreated.Inc()
	s.broadcast(WSMessage{Type: "market_created", MarketID: m.ID, Status: m.Status.String()})
	writeJSON(w, http.StatusCreated, m)
}

// ListMarkets handles GET /api/v1/markets.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.engine.ListMarkets(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}
	writeJSON(w, http.StatusOK, markets)
}

// GetMarket handles GET /api/v1/markets/{marketID}.
func (s *Service) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	m, err := s.engine.GetMarket(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// PlaceBet handles POST /api/v1/markets/{marketID}/bets.
func (s *Service) PlaceBet(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	var req BetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.identity.Verify(r, req.Bettor) {
		writeError(w, "signer does not match bettor", http.StatusForbidden)
		return
	}

	pos, err := s.engine.PlaceBet(r.Context(), id, req.Bettor, req.Side, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	metrics.BetsTotal.WithLabelValues(req.Side.String()).Inc()
	metrics.BetVolume.WithLabelValues(req.Side.String()).Add(float64(req.Amount))
	s.broadcast(WSMessage{
		Type:     "bet_placed",
		MarketID: id,
		Side:     req.Side.String(),
		Amount:   req.Amount,
	})
	writeJSON(w, http.StatusOK, pos)
}

// Resolve handles POST /api/v1/markets/{marketID}/resolve.
func (s *Service) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.identity.Verify(r, req.Caller) {
		writeError(w, "signer does not match caller", http.StatusForbidden)
		return
	}

	m, err := s.engine.Resolve(r.Context(), id, req.Caller, req.Outcome, req.Confidence)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	metrics.MarketsResolved.WithLabelValues(m.Outcome.String()).Inc()
	s.broadcast(WSMessage{
		Type:       "market_resolved",
		MarketID:   id,
		Outcome:    m.Outcome.String(),
		Status:     m.Status.String(),
		Confidence: m.OracleConfidence,
	})
	writeJSON(w, http.StatusOK, m)
}

// Claim handles POST /api/v1/markets/{marketID}/claim.
func (s *Service) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.identity.Verify(r, req.Caller) {
		writeError(w, "signer does not match caller", http.StatusForbidden)
		return
	}

	payout, err := s.engine.Claim(r.Context(), id, req.Caller, req.Side, req.Treasury)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	metrics.ClaimsTotal.Inc()
	metrics.PayoutVolume.Add(float64(payout.Net))
	s.broadcast(WSMessage{
		Type:     "payout_claimed",
		MarketID: id,
		Side:     req.Side.String(),
		Amount:   payout.Net,
	})
	writeJSON(w, http.StatusOK, payout)
}

// Swap handles POST /api/v1/swap.
func (s *Service) Swap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.identity.Verify(r, req.Payer) {
		writeError(w, "signer does not match payer", http.StatusForbidden)
		return
	}

	if err := s.engine.SwapToSbyl(r.Context(), req.Payer, req.Amount); err != nil {
		if errors.Is(err, engine.ErrSwapCapExceeded) {
			metrics.SwapRejections.Inc()
		}
		writeEngineError(w, err)
		return
	}

	metrics.SwapsTotal.Inc()
	writeJSON(w, http.StatusOK, SwapResponse{Payer: req.Payer, Minted: req.Amount})
}

// ListPositions handles GET /api/v1/positions/{owner}.
func (s *Service) ListPositions(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	positions, err := s.engine.ListPositions(r.Context(), owner)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if positions == nil {
		positions = []model.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

// ListMarketPositions handles GET /api/v1/markets/{marketID}/positions.
func (s *Service) ListMarketPositions(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	positions, err := s.engine.ListMarketPositions(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if positions == nil {
		positions = []model.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

// --- Helpers ---

func (s *Service) broadcast(msg WSMessage) {
	if s.hub != nil {
		s.hub.Broadcast(msg)
	}
}

func marketID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "marketID"), 10, 64)
	if err != nil {
		writeError(w, "invalid market id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeEngineError maps engine sentinel errors onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), errorStatus(err))
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrZeroAmount),
		errors.Is(err, engine.ErrInvalidBetSide),
		errors.Is(err, engine.ErrInvalidOutcome),
		errors.Is(err, engine.ErrTitleTooLong),
		errors.Is(err, engine.ErrDescriptionTooLong),
		errors.Is(err, engine.ErrInvalidConfidence),
		errors.Is(err, engine.ErrInvalidFeeBps),
		errors.Is(err, engine.ErrDeadlineInPast):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnauthorized),
		errors.Is(err, engine.ErrTreasuryMismatch):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrAlreadyInitialized),
		errors.Is(err, engine.ErrMarketNotOpen),
		errors.Is(err, engine.ErrMarketExpired),
		errors.Is(err, engine.ErrMarketNotResolvable),
		errors.Is(err, engine.ErrDeadlineNotReached),
		errors.Is(err, engine.ErrAlreadyClaimed),
		errors.Is(err, engine.ErrNotWinner),
		errors.Is(err, engine.ErrMarketNotResolved),
		errors.Is(err, engine.ErrNoPayout),
		errors.Is(err, engine.ErrSwapCapExceeded),
		errors.Is(err, custody.ErrInsufficientFunds):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

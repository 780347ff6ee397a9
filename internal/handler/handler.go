package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Arrogantx/hyperian/internal/chain"
	"github.com/Arrogantx/hyperian/internal/repository"
	"github.com/Arrogantx/hyperian/internal/service"
	"github.com/Arrogantx/hyperian/pkg/errors"
	"github.com/Arrogantx/hyperian/pkg/logger"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// statusForError maps the claim-path error taxonomy to HTTP statuses.
func statusForError(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrInvalidInput:
		return http.StatusBadRequest
	case errors.ErrUpstreamUnavailable, errors.ErrMalformedResponse, errors.ErrChainReadFailed:
		return http.StatusInternalServerError
	case errors.ErrPersistenceFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// CORSMiddleware mirrors the headers the browser client expects.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type ClaimHandler struct {
	engine *service.Engine
}

func NewClaimHandler(engine *service.Engine) *ClaimHandler {
	return &ClaimHandler{engine: engine}
}

func (h *ClaimHandler) Claim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Wallet string `json:"wallet"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Wallet == "" {
		writeError(w, http.StatusBadRequest, "Missing wallet address")
		return
	}

	decision, err := h.engine.Claim(r.Context(), req.Wallet)
	if err != nil {
		logger.WithError(err).Error("claim failed")
		writeError(w, statusForError(err), err.Error())
		return
	}

	if !decision.Granted {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"success":       false,
			"error":         "Cooldown active",
			"next_claim_at": decision.NextClaimAt.UTC().Format(time.RFC3339),
		})
		return
	}

	entry := decision.Entry
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"points":           decision.Points,
		"available_points": entry.Points,
		"total_points":     entry.Points,
		"weekly_points":    entry.WeeklyPoints,
		"total_claimed":    entry.TotalClaimed,
		"next_claim_at":    decision.NextClaimAt.UTC().Format(time.RFC3339),
		"tier_multiplier":  decision.Multiplier,
		"total_nfts_held":  decision.TotalHeld,
		"holdings":         decision.Holdings,
	})
}

type PointsHandler struct {
	engine *service.Engine
	ledger *repository.LedgerRepository
}

func NewPointsHandler(engine *service.Engine, ledger *repository.LedgerRepository) *PointsHandler {
	return &PointsHandler{engine: engine, ledger: ledger}
}

// GetPoints serves /api/points/{address}: the staking view's read path.
func (h *PointsHandler) GetPoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	address := pathSuffix(r.URL.Path, "/api/points/")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	entry, err := h.engine.GetEntry(r.Context(), address)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	resp := map[string]interface{}{
		"available_points": int64(0),
		"weekly_points":    int64(0),
		"total_claimed":    int64(0),
		"total_nfts_held":  int64(0),
		"tier_multiplier":  1.0,
	}
	if entry != nil {
		resp["available_points"] = entry.Points
		resp["weekly_points"] = entry.WeeklyPoints
		resp["total_claimed"] = entry.TotalClaimed
		resp["total_nfts_held"] = entry.TotalNftsHeld
		resp["tier_multiplier"] = entry.ActivityMultiplier
		if entry.LastClaimedAt != nil {
			next := entry.LastClaimedAt.Add(h.engine.CooldownWindow())
			resp["last_claimed_at"] = entry.LastClaimedAt.UTC().Format(time.RFC3339)
			resp["next_claim_at"] = next.UTC().Format(time.RFC3339)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *PointsHandler) Spend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Wallet string `json:"wallet"`
		Amount int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	address, err := chain.NormalizeAddress(req.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	spent, err := h.ledger.SpendPoints(r.Context(), address, req.Amount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to spend points: "+err.Error())
		return
	}
	if !spent {
		writeError(w, http.StatusConflict, "Insufficient points")
		return
	}

	entry, err := h.ledger.Get(r.Context(), address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read ledger entry: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"spent":            req.Amount,
		"available_points": entry.Points,
	})
}

func (h *PointsHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 25
	}

	wallets, err := h.ledger.ListTop(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list wallets: "+err.Error())
		return
	}

	items := make([]map[string]interface{}, 0, len(wallets))
	for _, wallet := range wallets {
		items = append(items, map[string]interface{}{
			"address":          wallet.Address,
			"available_points": wallet.Points,
			"weekly_points":    wallet.WeeklyPoints,
			"total_claimed":    wallet.TotalClaimed,
			"total_nfts_held":  wallet.TotalNftsHeld,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

type NFTHandler struct {
	reader chain.HoldingsReader
}

func NewNFTHandler(reader chain.HoldingsReader) *NFTHandler {
	return &NFTHandler{reader: reader}
}

// GetNFTs serves /api/nfts/{address}: per-collection counts and enumerated
// token ids.
func (h *NFTHandler) GetNFTs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := pathSuffix(r.URL.Path, "/api/nfts/")
	address, err := chain.NormalizeAddress(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid address")
		return
	}

	ctx := r.Context()
	holdings, err := h.reader.GetHoldings(ctx, address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tokens := make(map[string][]int64, len(holdings))
	for collection := range holdings {
		ids, err := h.reader.GetTokenIDs(ctx, address, collection)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		tokens[collection] = ids
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"holdings": holdings,
		"tokens":   tokens,
	})
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func pathSuffix(path, prefix string) string {
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}

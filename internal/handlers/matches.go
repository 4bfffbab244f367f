package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"courtmatch/internal/models"
	"courtmatch/internal/services"
)

type MatchHandler struct {
	coordinator *services.Coordinator
}

func NewMatchHandler(coordinator *services.Coordinator) *MatchHandler {
	return &MatchHandler{coordinator: coordinator}
}

type SetScoreRequest struct {
	P1 int `json:"p1"`
	P2 int `json:"p2"`
}

type SubmitResultRequest struct {
	Format models.Format     `json:"format"`
	Sets   []SetScoreRequest `json:"sets"`
}

type DisputeRequest struct {
	Reason string `json:"reason"`
}

// GetMatch handles GET /api/matches/{id}
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	match, err := h.coordinator.GetMatch(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, match)
}

// SubmitResult handles POST /api/matches/{id}/result
func (h *MatchHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req SubmitResultRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sets := make([]models.SetScore, 0, len(req.Sets))
	for _, s := range req.Sets {
		sets = append(sets, models.SetScore{P1Games: s.P1, P2Games: s.P2})
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	match, err := h.coordinator.SubmitResult(ctx, mux.Vars(r)["id"], actor, sets, req.Format)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, match)
}

// ConfirmResult handles POST /api/matches/{id}/confirm
func (h *MatchHandler) ConfirmResult(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	match, err := h.coordinator.ConfirmResult(ctx, mux.Vars(r)["id"], actor)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, match)
}

// DisputeResult handles POST /api/matches/{id}/dispute
func (h *MatchHandler) DisputeResult(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req DisputeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	match, err := h.coordinator.DisputeResult(ctx, mux.Vars(r)["id"], actor, req.Reason)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, match)
}

// CancelMatch handles POST /api/matches/{id}/cancel
func (h *MatchHandler) CancelMatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	match, err := h.coordinator.CancelMatch(ctx, mux.Vars(r)["id"], actor)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, match)
}

// RatingHistory handles GET /api/players/{id}/rating-history
func (h *MatchHandler) RatingHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondWithCode(w, http.StatusBadRequest, "invalid_input", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	entries, err := h.coordinator.RatingHistory(ctx, mux.Vars(r)["id"], limit)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.RatingHistoryEntry{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"playerId": mux.Vars(r)["id"],
		"entries":  entries,
	})
}

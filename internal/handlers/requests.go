package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"courtmatch/internal/models"
	"courtmatch/internal/services"
)

type RequestHandler struct {
	requests *services.RequestService
}

func NewRequestHandler(requests *services.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

type CreateRequestRequest struct {
	RecipientID string        `json:"recipientId"`
	Format      models.Format `json:"format"`
	ProposedAt  time.Time     `json:"proposedAt"`
}

type AcceptRequestResponse struct {
	Request *models.MatchRequest `json:"request"`
	Match   *models.Match        `json:"match"`
}

// CreateRequest handles POST /api/requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	created, err := h.requests.CreateRequest(ctx, actor, req.RecipientID, req.Format, req.ProposedAt)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// GetRequest handles GET /api/requests/{id}. Only the two parties can see a
// request; anyone else gets 404.
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id := mux.Vars(r)["id"]
	req, err := h.requests.GetRequest(ctx, id)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if actor != req.RequesterID && actor != req.RecipientID {
		respondWithCode(w, http.StatusNotFound, "not_found", "not found: request "+id)
		return
	}
	respondWithJSON(w, http.StatusOK, req)
}

// AcceptRequest handles POST /api/requests/{id}/accept
func (h *RequestHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	req, match, err := h.requests.AcceptRequest(ctx, mux.Vars(r)["id"], actor)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, AcceptRequestResponse{Request: req, Match: match})
}

// DeclineRequest handles POST /api/requests/{id}/decline
func (h *RequestHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.requests.DeclineRequest)
}

// WithdrawRequest handles POST /api/requests/{id}/withdraw
func (h *RequestHandler) WithdrawRequest(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.requests.WithdrawRequest)
}

func (h *RequestHandler) respond(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, requestID, actorID string) (*models.MatchRequest, error)) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	req, err := fn(ctx, mux.Vars(r)["id"], actor)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, req)
}

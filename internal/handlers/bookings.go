package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"courtmatch/internal/models"
	"courtmatch/internal/services"
)

// defaultBookingWindow is the listing range when the caller omits ?to=.
const defaultBookingWindow = 7 * 24 * time.Hour

type BookingHandler struct {
	guard *services.BookingGuard
}

func NewBookingHandler(guard *services.BookingGuard) *BookingHandler {
	return &BookingHandler{guard: guard}
}

type BookCourtRequest struct {
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	MatchID  string    `json:"matchId,omitempty"`
}

type BookingListResponse struct {
	ResourceID string           `json:"resourceId"`
	From       time.Time        `json:"from"`
	To         time.Time        `json:"to"`
	Bookings   []models.Booking `json:"bookings"`
}

// BookCourt handles POST /api/courts/{courtId}/bookings
func (h *BookingHandler) BookCourt(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req BookCourtRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	booking, err := h.guard.BookCourt(ctx, services.BookRequest{
		ResourceID: mux.Vars(r)["courtId"],
		ActorID:    actor,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
		MatchID:    req.MatchID,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, booking)
}

// ListBookings handles GET /api/courts/{courtId}/bookings?from=&to=
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from := time.Now().UTC()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondWithCode(w, http.StatusBadRequest, "invalid_input", "from must be RFC 3339")
			return
		}
		from = t
	}
	to := from.Add(defaultBookingWindow)
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondWithCode(w, http.StatusBadRequest, "invalid_input", "to must be RFC 3339")
			return
		}
		to = t
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	courtID := mux.Vars(r)["courtId"]
	bookings, err := h.guard.ListBookings(ctx, courtID, from, to)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	respondWithJSON(w, http.StatusOK, BookingListResponse{
		ResourceID: courtID,
		From:       from,
		To:         to,
		Bookings:   bookings,
	})
}

// CancelBooking handles POST /api/bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	booking, err := h.guard.CancelBooking(ctx, mux.Vars(r)["id"], actor)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, booking)
}

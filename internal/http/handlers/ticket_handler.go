package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	mw "github.com/diagnosis/scanlogin/internal/http/middleware"
	"github.com/diagnosis/scanlogin/internal/http/response"
	"github.com/diagnosis/scanlogin/internal/notify"
	"github.com/diagnosis/scanlogin/internal/ticket"
	"github.com/diagnosis/scanlogin/pkg/logger"
)

const wsWriteTimeout = 5 * time.Second

type TicketHandler struct {
	service  ticket.Service
	notifier notify.Notifier

	// waitTimeout caps how long a subscriber can stay attached; a pending
	// ticket cannot outlive its TTL, so neither should its waiters.
	waitTimeout time.Duration
}

func NewTicketHandler(service ticket.Service, notifier notify.Notifier, waitTimeout time.Duration) *TicketHandler {
	return &TicketHandler{
		service:     service,
		notifier:    notifier,
		waitTimeout: waitTimeout,
	}
}

// Create handles POST /v1/tickets - a primary device starts a handshake.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	desc, err := h.service.Create(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	// The id travels out-of-band too so the page script can correlate its
	// subscription without parsing the QR payload.
	w.Header().Set("X-Ticket-ID", desc.ID)
	writeJSON(w, http.StatusCreated, desc)
}

// Confirm handles POST /v1/tickets/{id}/confirm - an authenticated
// secondary device approves the login. RequireJWT runs before this.
func (h *TicketHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "ticket id is required")
		return
	}

	claims := mw.Claims(r)
	if claims == nil || claims.Username == "" {
		response.Unauthorized(w, "Authenticated principal required")
		return
	}

	redirect, err := h.service.Confirm(r.Context(), id, claims.Username)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"redirect": redirect,
	})
}

// Consume handles POST /v1/tickets/{id}/consume - the primary device claims
// the single-use login result.
func (h *TicketHandler) Consume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "ticket id is required")
		return
	}

	redirect, err := h.service.Consume(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"redirect": redirect,
	})
}

// Get handles GET /v1/tickets/{id} - the polling fallback when the push
// channel is unavailable. Agrees with the subscription on the final outcome
// because both read the same store.
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "ticket id is required")
		return
	}

	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if rec == nil {
		response.Gone(w, "ticket invalid or expired", response.CodeTicketExpired)
		return
	}

	body := map[string]any{"state": rec.State}
	if rec.State == ticket.StateConfirmed {
		body["redirect"] = rec.Redirect
	}
	writeJSON(w, http.StatusOK, body)
}

// Subscribe handles GET /v1/tickets/{id}/subscribe - a WebSocket that
// delivers at most one "confirmed" frame and then closes.
func (h *TicketHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "ticket id is required")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.WarnContext(r.Context(), "WebSocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected shutdown")

	// Register before the state check so a confirm landing in between is
	// caught by one path or the other.
	events, cancel := h.notifier.Subscribe(id)
	defer cancel()

	ctx := conn.CloseRead(r.Context())

	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "store unavailable")
		return
	}
	switch {
	case rec == nil:
		conn.Close(websocket.StatusNormalClosure, "expired")
		return
	case rec.State == ticket.StateConfirmed:
		h.push(ctx, conn, notify.Event{Type: notify.EventConfirmed, TicketID: id, Redirect: rec.Redirect})
		return
	case rec.State != ticket.StatePending:
		conn.Close(websocket.StatusNormalClosure, "already settled")
		return
	}

	timer := time.NewTimer(h.waitTimeout)
	defer timer.Stop()

	select {
	case ev, ok := <-events:
		if !ok {
			conn.Close(websocket.StatusGoingAway, "subscription closed")
			return
		}
		h.push(ctx, conn, ev)
	case <-timer.C:
		conn.Close(websocket.StatusNormalClosure, "expired")
	case <-ctx.Done():
		// Client went away; cancel() releases the hub entry.
	}
}

// push writes the one meaningful frame and closes the socket normally.
func (h *TicketHandler) push(ctx context.Context, conn *websocket.Conn, ev notify.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "encode failed")
		return
	}

	wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()

	if err := conn.Write(wctx, websocket.MessageText, payload); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "done")
}

func (h *TicketHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ticket.ErrExpired):
		response.Gone(w, "ticket invalid or expired", response.CodeTicketExpired)
	case errors.Is(err, ticket.ErrAlreadyConfirmed):
		response.Conflict(w, "ticket already confirmed", response.CodeTicketConfirmed)
	case errors.Is(err, ticket.ErrNotReady):
		response.Conflict(w, "ticket not yet confirmed", response.CodeTicketNotReady)
	case errors.Is(err, ticket.ErrAlreadyConsumed):
		response.Conflict(w, "ticket already consumed", response.CodeTicketConsumed)
	case errors.Is(err, ticket.ErrStoreUnavailable):
		logger.ErrorContext(r.Context(), "Ticket store unavailable", "error", err)
		response.ServiceUnavailable(w, "temporary storage failure, retry shortly")
	default:
		logger.ErrorContext(r.Context(), "Unhandled ticket error", "error", err)
		response.InternalError(w, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

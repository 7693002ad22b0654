package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/suufi/mit-lobby7-verification/internal/application/reconcile"
	"github.com/suufi/mit-lobby7-verification/internal/pkg/validate"
)

// EventsHandler ingests member lifecycle events forwarded by the gateway
// process and feeds them into reconciliation.
type EventsHandler struct {
	svc reconcile.Service
}

func NewEventsHandler(svc reconcile.Service) *EventsHandler {
	return &EventsHandler{svc: svc}
}

type memberActivityRequest struct {
	GuildID    string `json:"guild_id" validate:"required"`
	DiscordID  string `json:"discord_id" validate:"required"`
	ObservedAt string `json:"observed_at"` // RFC 3339; empty means now
}

type memberJoinRequest struct {
	GuildID   string `json:"guild_id" validate:"required"`
	DiscordID string `json:"discord_id" validate:"required"`
}

func (h *EventsHandler) MemberActivity(w http.ResponseWriter, r *http.Request) {
	var req memberActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	when := time.Now().UTC()
	if req.ObservedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ObservedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "observed_at must be RFC 3339")
			return
		}
		when = parsed
	}

	if err := h.svc.OnActivity(r.Context(), req.GuildID, req.DiscordID, when); err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "accepted"})
}

func (h *EventsHandler) MemberJoin(w http.ResponseWriter, r *http.Request) {
	var req memberJoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.OnJoin(r.Context(), req.GuildID, req.DiscordID); err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "accepted"})
}

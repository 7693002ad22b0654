package handler

import (
	"encoding/json"
	"net/http"

	"github.com/suufi/mit-lobby7-verification/internal/application/roles"
	"github.com/suufi/mit-lobby7-verification/internal/pkg/validate"
)

// RolesHandler exposes the member-facing toggleable role commands.
type RolesHandler struct {
	svc roles.Service
}

func NewRolesHandler(svc roles.Service) *RolesHandler {
	return &RolesHandler{svc: svc}
}

type roleEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type toggleRequest struct {
	GuildID   string `json:"guild_id" validate:"required"`
	DiscordID string `json:"discord_id" validate:"required"`
	RoleID    string `json:"role_id" validate:"required"`
}

func (h *RolesHandler) ListToggleable(w http.ResponseWriter, r *http.Request) {
	guildID := r.URL.Query().Get("guild_id")
	if guildID == "" {
		writeError(w, http.StatusBadRequest, "guild_id is required")
		return
	}
	list, err := h.svc.ListToggleable(r.Context(), guildID)
	if err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}
	out := make([]roleEntry, 0, len(list))
	for _, role := range list {
		out = append(out, roleEntry{ID: role.ID, Name: role.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RolesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	added, err := h.svc.Toggle(r.Context(), req.GuildID, req.DiscordID, req.RoleID)
	if err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}
	msg := "Role removed."
	if added {
		msg = "Role added."
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: msg})
}

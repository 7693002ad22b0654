package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/suufi/mit-lobby7-verification/internal/application/reconcile"
	"github.com/suufi/mit-lobby7-verification/internal/application/roles"
	"github.com/suufi/mit-lobby7-verification/internal/application/settings"
	"github.com/suufi/mit-lobby7-verification/internal/domain"
	"github.com/suufi/mit-lobby7-verification/internal/pkg/validate"
)

// AdminHandler exposes the moderator command surface: directory lookups,
// role refresh, blacklist and settings management.
type AdminHandler struct {
	directory Directory
	roles     roles.Service
	reconcile reconcile.Service
	settings  settings.Service
}

func NewAdminHandler(directory Directory, rolesSvc roles.Service, reconcileSvc reconcile.Service, settingsSvc settings.Service) *AdminHandler {
	return &AdminHandler{
		directory: directory,
		roles:     rolesSvc,
		reconcile: reconcileSvc,
		settings:  settingsSvc,
	}
}

// DirectoryLookup returns the raw directory record for a kerb.
func (h *AdminHandler) DirectoryLookup(w http.ResponseWriter, r *http.Request) {
	kerb := domain.NormalizeKerb(chi.URLParam(r, "kerb"))
	person, err := h.directory.Lookup(r.Context(), kerb)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Could not find that kerb!")
			return
		}
		writeError(w, http.StatusBadGateway, "Could not reach the directory. Please try again later.")
		return
	}
	writeJSON(w, http.StatusOK, person)
}

// AffiliationsPreview dry-runs role assignment for a kerb, returning the
// resolved candidate role names without touching the member.
func (h *AdminHandler) AffiliationsPreview(w http.ResponseWriter, r *http.Request) {
	kerb := domain.NormalizeKerb(chi.URLParam(r, "kerb"))
	guildID := r.URL.Query().Get("guild_id")
	discordID := r.URL.Query().Get("discord_id")
	if guildID == "" || discordID == "" {
		writeError(w, http.StatusBadRequest, "guild_id and discord_id are required")
		return
	}

	names, err := h.roles.Assign(r.Context(), guildID, discordID, kerb, true, domain.IsAlumni(kerb))
	if err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"roles": names})
}

type refreshRequest struct {
	GuildID string `json:"guild_id" validate:"required"`
	Kerb    string `json:"kerb" validate:"required"`
}

// RefreshRoles reconciles one verified user on demand.
func (h *AdminHandler) RefreshRoles(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	granted, err := h.reconcile.Refresh(r.Context(), req.GuildID, domain.NormalizeKerb(req.Kerb))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "That kerb has not verified.")
			return
		}
		writeError(w, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"granted": granted})
}

type kerbRequest struct {
	Kerb string `json:"kerb" validate:"required"`
}

func (h *AdminHandler) ListBlacklist(w http.ResponseWriter, r *http.Request) {
	list, err := h.settings.Blacklist(r.Context())
	if err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"blacklisted_kerbs": list})
}

func (h *AdminHandler) AddToBlacklist(w http.ResponseWriter, r *http.Request) {
	var req kerbRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.settings.BlacklistAdd(r.Context(), req.Kerb); err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Successfully blacklisted " + domain.NormalizeKerb(req.Kerb) + "."})
}

func (h *AdminHandler) RemoveFromBlacklist(w http.ResponseWriter, r *http.Request) {
	var req kerbRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.settings.BlacklistRemove(r.Context(), req.Kerb); err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Successfully unblacklisted " + domain.NormalizeKerb(req.Kerb) + "."})
}

type auditChannelRequest struct {
	ChannelID string `json:"channel_id" validate:"required"`
}

func (h *AdminHandler) SetAuditChannel(w http.ResponseWriter, r *http.Request) {
	var req auditChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.settings.SetAuditChannel(r.Context(), req.ChannelID); err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Audit channel updated."})
}

type roleIDRequest struct {
	RoleID string `json:"role_id" validate:"required"`
}

// ListToggleableRoles returns the raw toggleable role ids from settings,
// including ids that no longer resolve to a guild role.
func (h *AdminHandler) ListToggleableRoles(w http.ResponseWriter, r *http.Request) {
	ids, err := h.settings.ToggleableRoles(r.Context())
	if err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"toggleable_roles": ids})
}

func (h *AdminHandler) AddToggleableRole(w http.ResponseWriter, r *http.Request) {
	var req roleIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.settings.AddToggleableRole(r.Context(), req.RoleID); err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Role is now toggleable."})
}

func (h *AdminHandler) RemoveToggleableRole(w http.ResponseWriter, r *http.Request) {
	var req roleIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.settings.RemoveToggleableRole(r.Context(), req.RoleID); err != nil {
		writeError(w, statusFromError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Role is no longer toggleable."})
}

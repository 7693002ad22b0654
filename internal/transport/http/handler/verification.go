package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/suufi/mit-lobby7-verification/internal/application/verification"
	"github.com/suufi/mit-lobby7-verification/internal/domain"
	"github.com/suufi/mit-lobby7-verification/internal/pkg/validate"
)

// Directory resolves a kerb against the MIT People API.
type Directory interface {
	Lookup(ctx context.Context, kerb string) (*domain.PersonRecord, error)
}

// VerificationHandler handles code issuance and redemption, relayed by the
// gateway from the /verify and /code slash commands.
type VerificationHandler struct {
	svc       verification.Service
	directory Directory
}

func NewVerificationHandler(svc verification.Service, directory Directory) *VerificationHandler {
	return &VerificationHandler{svc: svc, directory: directory}
}

type issueRequest struct {
	Kerb      string `json:"kerb" validate:"required"`
	DiscordID string `json:"discord_id" validate:"required"`
}

type redeemRequest struct {
	Kerb      string `json:"kerb" validate:"required"`
	DiscordID string `json:"discord_id" validate:"required"`
	Code      string `json:"code" validate:"required"`
	GuildID   string `json:"guild_id" validate:"required"`
}

func (h *VerificationHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kerb := domain.NormalizeKerb(req.Kerb)
	if strings.HasSuffix(kerb, domain.PrimaryDomainSuffix) {
		writeError(w, http.StatusBadRequest, "Please provide your Kerberos ID (without the @mit.edu).")
		return
	}
	if !domain.IsAlumni(kerb) {
		if _, err := h.directory.Lookup(r.Context(), kerb); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Could not find that kerb! Please try again with your Kerberos ID (without the @mit.edu).")
				return
			}
			writeError(w, http.StatusBadGateway, "Could not reach the directory. Please try again later.")
			return
		}
	}

	if _, err := h.svc.Issue(r.Context(), kerb, req.DiscordID); err != nil {
		status, reason := issueFailure(err)
		writeError(w, status, "Could not start verification process. Please contact a moderator for assistance if needed. Failure reason: "+reason)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{
		Message: "Verification process started. Please check your email! To complete your verification, run the following command. `/code <kerb> <verification code>`.",
	})
}

func issueFailure(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrBlacklisted):
		return http.StatusForbidden, "Blacklisted kerb."
	case errors.Is(err, domain.ErrAlreadyVerified):
		return http.StatusConflict, "Already verified. Contact an admin if you need to change your kerb."
	case errors.Is(err, domain.ErrKerbClaimed):
		return http.StatusConflict, "That kerb is already verified under a different account. Contact a moderator if this is you."
	case errors.Is(err, domain.ErrCooldown):
		return http.StatusTooManyRequests, "Already in verification process. Please wait 10 minutes before trying to start a new process."
	case errors.Is(err, domain.ErrEmailDelivery):
		return http.StatusBadGateway, "Could not send email."
	default:
		return http.StatusInternalServerError, "Internal error."
	}
}

func (h *VerificationHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	kerb := domain.NormalizeKerb(req.Kerb)
	if err := h.svc.Redeem(r.Context(), kerb, req.DiscordID, req.Code, req.GuildID); err != nil {
		if errors.Is(err, domain.ErrInvalidCode) {
			writeError(w, http.StatusBadRequest, "Invalid verification code. Please restart the process with `/verify <kerb>` or enter the correct code.")
			return
		}
		if errors.Is(err, domain.ErrKerbClaimed) {
			writeError(w, http.StatusConflict, "That kerb is already verified under a different account. Contact a moderator if this is you.")
			return
		}
		writeError(w, statusFromError(err), "Verification failed. Please contact a moderator for assistance.")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Successfully verified!"})
}

package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// Issuance preconditions. Each maps to a specific, actionable user message
	// at the transport layer.
	ErrBlacklisted     = errors.New("kerb is blacklisted")
	ErrAlreadyVerified = errors.New("already verified")
	ErrCooldown        = errors.New("verification already in progress")

	// ErrKerbClaimed means the kerb is already verified under a different
	// Discord account. The old record is never overwritten; a moderator has
	// to remove it before the kerb can verify again.
	ErrKerbClaimed = errors.New("kerb verified under another account")

	// ErrEmailDelivery means the code was stored but the email could not be
	// sent. The code stays redeemable until its TTL.
	ErrEmailDelivery = errors.New("email delivery failed")

	// ErrInvalidCode covers every redemption failure: no live code for the
	// kerb, code mismatch, or requesting-account mismatch. The stored code is
	// never consumed on failure.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrLookupFailed is a transient failure talking to the MIT People API,
	// as opposed to ErrNotFound which means the kerb does not exist.
	ErrLookupFailed = errors.New("directory lookup failed")
)

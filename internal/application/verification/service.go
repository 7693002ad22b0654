package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/suufi/mit-lobby7-verification/internal/audit"
	"github.com/suufi/mit-lobby7-verification/internal/domain"
	"github.com/suufi/mit-lobby7-verification/internal/metrics"
	"github.com/suufi/mit-lobby7-verification/internal/pkg/code"
)

// CodeStore holds live verification codes. Expiry is the store's job (TTL);
// both Get methods must treat expired codes as absent.
type CodeStore interface {
	Put(ctx context.Context, v *domain.VerificationCode) error
	GetByKerb(ctx context.Context, kerb string) (*domain.VerificationCode, error)
	GetByDiscordID(ctx context.Context, discordID string) (*domain.VerificationCode, error)
	Delete(ctx context.Context, kerb string) error
}

// UserStore holds durable verified-user records.
type UserStore interface {
	Put(ctx context.Context, u *domain.VerifiedUser) error
	GetByKerb(ctx context.Context, kerb string) (*domain.VerifiedUser, error)
	GetByDiscordID(ctx context.Context, discordID string) (*domain.VerifiedUser, error)
}

// SettingsSource resolves the blacklist.
type SettingsSource interface {
	Get(ctx context.Context) (*domain.GuildSettings, error)
}

// Mailer delivers the verification email.
type Mailer interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// RoleAssigner is invoked after a successful redemption.
type RoleAssigner interface {
	Assign(ctx context.Context, guildID, discordID, kerb string, dryRun, alumni bool) ([]string, error)
}

// Notifier records audit lines.
type Notifier interface {
	Emit(ctx context.Context, status audit.Status, format string, args ...interface{})
}

// Service is the code issuance and redemption engine.
type Service interface {
	// Issue creates and emails a one-time code for the kerb, requested by the
	// given Discord account. The kerb is assumed to be normalized and, for
	// non-alumni, already resolved against the directory by the caller; the
	// blacklist is re-checked here regardless.
	Issue(ctx context.Context, kerb, discordID string) (string, error)
	// Redeem consumes a code and commits the verified-user record, then
	// assigns roles in the given guild.
	Redeem(ctx context.Context, kerb, discordID, submittedCode, guildID string) error
}

// Deps holds the narrow capability interfaces the engine needs.
type Deps struct {
	Codes    CodeStore
	Users    UserStore
	Settings SettingsSource
	Mailer   Mailer
	Roles    RoleAssigner
	Audit    Notifier
	Metrics  *metrics.Metrics
}

type service struct {
	deps Deps
}

func NewService(deps Deps) Service {
	return &service{deps: deps}
}

func (s *service) Issue(ctx context.Context, kerb, discordID string) (string, error) {
	settings, err := s.deps.Settings.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	if settings.IsBlacklisted(kerb) {
		s.deps.Audit.Emit(ctx, audit.StatusBlocked, "Blacklisted kerb (%s) used by <@%s>", kerb, discordID)
		s.deps.Metrics.IncVerificationRejected("blacklisted")
		return "", fmt.Errorf("kerb %q: %w", kerb, domain.ErrBlacklisted)
	}

	if _, err := s.deps.Users.GetByDiscordID(ctx, discordID); err == nil {
		s.deps.Metrics.IncVerificationRejected("already_verified")
		return "", fmt.Errorf("account %s: %w", discordID, domain.ErrAlreadyVerified)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("check verified user: %w", err)
	}

	// One verified record per kerb. The account check above already caught
	// the same account, so a hit here means the kerb belongs to someone else.
	if _, err := s.deps.Users.GetByKerb(ctx, kerb); err == nil {
		s.deps.Audit.Emit(ctx, audit.StatusWarning, "Kerb (%s) verification blocked for <@%s>, kerb already verified under another account.", kerb, discordID)
		s.deps.Metrics.IncVerificationRejected("kerb_claimed")
		return "", fmt.Errorf("kerb %q: %w", kerb, domain.ErrKerbClaimed)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("check verified kerb: %w", err)
	}

	// Check-then-act: a concurrent Issue for the same account can slip
	// through between this read and the Put below. Accepted; the TTL cleans
	// up whichever code goes unused.
	if _, err := s.deps.Codes.GetByDiscordID(ctx, discordID); err == nil {
		s.deps.Audit.Emit(ctx, audit.StatusWarning, "Kerb (%s) verification failed to start by <@%s>, too soon warning.", kerb, discordID)
		s.deps.Metrics.IncVerificationRejected("cooldown")
		return "", fmt.Errorf("account %s has a live code: %w", discordID, domain.ErrCooldown)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("check live code: %w", err)
	}

	secret, err := code.New(domain.CodeLength)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	now := time.Now().UTC()
	entry := &domain.VerificationCode{
		Kerb:      kerb,
		DiscordID: discordID,
		Alum:      domain.IsAlumni(kerb),
		Code:      secret,
		CreatedAt: now,
		ExpiresAt: now.Add(domain.CodeTTL).Unix(),
	}
	if err := s.deps.Codes.Put(ctx, entry); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}

	s.deps.Audit.Emit(ctx, audit.StatusStarted, "Kerb (%s) verification started by <@%s>", kerb, discordID)
	s.deps.Metrics.IncVerificationStarted()

	subject, text, html := codeEmail(kerb, secret)
	if err := s.deps.Mailer.Send(ctx, domain.MailboxFor(kerb), subject, text, html); err != nil {
		// The stored code stays redeemable; moderators can relay it manually.
		slog.Warn("verification email failed", "kerb", kerb, "err", err)
		s.deps.Audit.Emit(ctx, audit.StatusFailure, "Kerb (%s) verification failed due to email error.", kerb)
		s.deps.Metrics.IncEmailFailure()
		return "", fmt.Errorf("could not send email: %w", domain.ErrEmailDelivery)
	}
	return secret, nil
}

func (s *service) Redeem(ctx context.Context, kerb, discordID, submittedCode, guildID string) error {
	entry, err := s.deps.Codes.GetByKerb(ctx, kerb)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no live code for kerb %q: %w", kerb, domain.ErrInvalidCode)
		}
		return fmt.Errorf("load code: %w", err)
	}
	// Both the code and the requesting account must match. A mismatch never
	// consumes the stored code.
	if entry.Code != submittedCode || entry.DiscordID != discordID {
		return fmt.Errorf("code or account mismatch for kerb %q: %w", kerb, domain.ErrInvalidCode)
	}

	// Issuance rejects claimed kerbs, but the kerb can get verified by
	// another account while this code is in flight. Never overwrite.
	if existing, err := s.deps.Users.GetByKerb(ctx, kerb); err == nil {
		if existing.DiscordID != discordID {
			return fmt.Errorf("kerb %q: %w", kerb, domain.ErrKerbClaimed)
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("check verified kerb: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.VerifiedUser{
		Kerb:           kerb,
		DiscordID:      discordID,
		Alum:           entry.Alum,
		Verified:       true,
		VerifiedAt:     now,
		LastRoleUpdate: &now,
	}
	if err := s.deps.Users.Put(ctx, user); err != nil {
		return fmt.Errorf("store verified user: %w", err)
	}
	if err := s.deps.Codes.Delete(ctx, kerb); err != nil {
		slog.Warn("failed to delete redeemed code", "kerb", kerb, "err", err)
	}

	s.deps.Audit.Emit(ctx, audit.StatusSuccess, "Kerb (%s) verification completed by <@%s>", kerb, discordID)
	s.deps.Metrics.IncVerificationCompleted()

	// Verification is already committed; a role-assignment failure here is
	// recoverable via the admin refresh command.
	if _, err := s.deps.Roles.Assign(ctx, guildID, discordID, kerb, false, entry.Alum); err != nil {
		slog.Warn("role assignment after verification failed", "kerb", kerb, "guild", guildID, "err", err)
	}
	return nil
}

func codeEmail(kerb, secret string) (subject, text, html string) {
	subject = "MIT Discord Verification Code"
	text = fmt.Sprintf("Your verification code is: %s. Please enter /code kerb:%s code:%s in the #verification channel to complete the verification process. "+
		"If you are on mobile, please be careful with copy and pasting the message–you may need to wait for a black box to appear. "+
		"After 10 minutes, this code will expire and you will have to restart the verification process. "+
		"If you did not request this code, please ignore this email. If you have any questions, feel free to reply back to this email.", secret, kerb, secret)
	html = fmt.Sprintf(`<html>
	<head></head>
	<body>
		<p>Your verification code is: %s.</p>

		<p>Please enter <b>/code kerb:%s code:%s</b> in the #verification channel to complete the verification process. If you are on mobile, please be careful with copy and pasting the message–you may need to wait for a black box to appear.</p>

		<p>After 10 minutes, this code will expire and you will have to restart the verification process. If you did not request this code, please ignore this email. If you have any questions, feel free to reply back to this email.</p>
	</body>
</html>`, secret, kerb, secret)
	return subject, text, html
}

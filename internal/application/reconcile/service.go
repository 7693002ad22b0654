package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/suufi/mit-lobby7-verification/internal/domain"
	"github.com/suufi/mit-lobby7-verification/internal/metrics"
)

// StalenessWindow is how long a member's roles are considered fresh after the
// last assignment. Activity inside the window never triggers a refresh.
const StalenessWindow = 24 * time.Hour

// UserStore reads verified-user records for reconciliation.
type UserStore interface {
	GetByKerb(ctx context.Context, kerb string) (*domain.VerifiedUser, error)
	GetByDiscordID(ctx context.Context, discordID string) (*domain.VerifiedUser, error)
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.VerifiedUser, string, error)
}

// RoleAssigner applies the computed role set to a member.
type RoleAssigner interface {
	Assign(ctx context.Context, guildID, discordID, kerb string, dryRun, alumni bool) ([]string, error)
}

// Directory re-resolves kerbs before a refresh.
type Directory interface {
	Lookup(ctx context.Context, kerb string) (*domain.PersonRecord, error)
}

// Notifier posts the quiet reconciliation lines.
type Notifier interface {
	Info(ctx context.Context, format string, args ...interface{})
}

// Service keeps members' roles in step with the directory after the fact.
// Verification grants roles once; people change programs, graduate, and join
// new departments, so roles drift. Reconciliation is triggered by member
// activity, by guild joins, on demand by moderators, and by a periodic sweep.
type Service interface {
	// OnActivity refreshes a member's roles when they act in the guild at
	// `when` and their last assignment is older than StalenessWindow.
	// Unverified members and transient failures are ignored; activity must
	// never surface errors to members.
	OnActivity(ctx context.Context, guildID, discordID string, when time.Time) error
	// OnJoin refreshes a returning verified member immediately, with no
	// staleness gate. Unverified joiners are ignored.
	OnJoin(ctx context.Context, guildID, discordID string) error
	// Refresh reconciles one kerb on demand and returns the roles granted.
	Refresh(ctx context.Context, guildID, kerb string) ([]string, error)
	// Sweep walks every verified user and reconciles the stale ones. It
	// returns how many members had roles granted.
	Sweep(ctx context.Context, guildID string) (int, error)
}

type Deps struct {
	Users     UserStore
	Roles     RoleAssigner
	Directory Directory
	Audit     Notifier
	Metrics   *metrics.Metrics
}

type service struct {
	deps Deps
}

func NewService(deps Deps) Service {
	return &service{deps: deps}
}

func (s *service) OnActivity(ctx context.Context, guildID, discordID string, when time.Time) error {
	user, err := s.deps.Users.GetByDiscordID(ctx, discordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load verified user: %w", err)
	}
	if user.LastRoleUpdate != nil && when.Sub(*user.LastRoleUpdate) < StalenessWindow {
		return nil
	}
	s.deps.Metrics.IncReconcileRun("activity")
	s.refresh(ctx, guildID, user, "stale roles")
	return nil
}

func (s *service) OnJoin(ctx context.Context, guildID, discordID string) error {
	user, err := s.deps.Users.GetByDiscordID(ctx, discordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load verified user: %w", err)
	}
	s.deps.Metrics.IncReconcileRun("join")
	s.refresh(ctx, guildID, user, "rejoin")
	return nil
}

func (s *service) Refresh(ctx context.Context, guildID, kerb string) ([]string, error) {
	user, err := s.deps.Users.GetByKerb(ctx, kerb)
	if err != nil {
		return nil, fmt.Errorf("load verified user: %w", err)
	}
	granted, err := s.deps.Roles.Assign(ctx, guildID, user.DiscordID, user.Kerb, false, user.Alum)
	if err != nil {
		return nil, err
	}
	s.deps.Metrics.IncReconcileRun("admin")
	return granted, nil
}

func (s *service) Sweep(ctx context.Context, guildID string) (int, error) {
	var (
		cursor  string
		touched int
	)
	for {
		page, next, err := s.deps.Users.ScanPage(ctx, 100, cursor)
		if err != nil {
			return touched, fmt.Errorf("scan verified users: %w", err)
		}
		for i := range page {
			user := &page[i]
			if user.LastRoleUpdate != nil && time.Since(*user.LastRoleUpdate) < StalenessWindow {
				continue
			}
			if s.refresh(ctx, guildID, user, "sweep") {
				touched++
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	s.deps.Metrics.IncReconcileRun("sweep")
	slog.Info("reconciliation sweep finished", "guild", guildID, "updated", touched)
	return touched, nil
}

// refresh applies the current role set to one user and reports whether any
// roles were granted. Failures are logged, never propagated; every trigger
// except the explicit admin refresh is best-effort.
func (s *service) refresh(ctx context.Context, guildID string, user *domain.VerifiedUser, reason string) bool {
	// Non-alumni kerbs must still resolve in the directory. A kerb that
	// dropped out is left alone: no refresh, no stamp, no role removal.
	if !user.Alum {
		if _, err := s.deps.Directory.Lookup(ctx, user.Kerb); err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				slog.Warn("reconciliation directory lookup failed", "kerb", user.Kerb, "reason", reason, "err", err)
			}
			return false
		}
	}

	granted, err := s.deps.Roles.Assign(ctx, guildID, user.DiscordID, user.Kerb, false, user.Alum)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Left the guild.
			return false
		}
		slog.Warn("reconciliation refresh failed", "kerb", user.Kerb, "reason", reason, "err", err)
		return false
	}
	if len(granted) == 0 {
		return false
	}
	s.deps.Audit.Info(ctx, "Roles updated for <@%s> (%s): %s", user.DiscordID, user.Kerb, strings.Join(granted, ", "))
	return true
}

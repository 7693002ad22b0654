package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suufi/mit-lobby7-verification/internal/audit"
	"github.com/suufi/mit-lobby7-verification/internal/domain"
	"github.com/suufi/mit-lobby7-verification/internal/infrastructure/discord"
	"github.com/suufi/mit-lobby7-verification/internal/metrics"
)

// Role names granted from directory affiliations. The course roles are
// derived, not listed: "course-" + department code.
const (
	RoleVerified    = "Verified"
	RoleAffiliate   = "Affiliate"
	RoleStaff       = "Staff/Faculty"
	RoleGradStudent = "Grad Student"
	RoleXReg        = "X-Reg"
	RoleUndergrad   = "Undergrad"

	CourseRolePrefix = "course-"
	CrossRegPrefix   = "NI"
)

// Gateway is the slice of the Discord REST surface role assignment needs.
type Gateway interface {
	GuildRoles(ctx context.Context, guildID string) ([]discord.Role, error)
	GuildMember(ctx context.Context, guildID, userID string) (*discord.Member, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error
}

// Directory resolves a kerb to its institutional record.
type Directory interface {
	Lookup(ctx context.Context, kerb string) (*domain.PersonRecord, error)
}

// UserStore reads and stamps verified-user records.
type UserStore interface {
	GetByKerb(ctx context.Context, kerb string) (*domain.VerifiedUser, error)
	Update(ctx context.Context, kerb string, updates map[string]interface{}) error
}

// SettingsSource resolves the toggleable role list.
type SettingsSource interface {
	Get(ctx context.Context) (*domain.GuildSettings, error)
}

// Notifier records audit lines.
type Notifier interface {
	Emit(ctx context.Context, status audit.Status, format string, args ...interface{})
}

// Service maps directory affiliations onto guild roles and handles
// member-driven role toggling.
type Service interface {
	// Assign computes the member's role set from the directory (or the alumni
	// role for alumni kerbs) and grants the roles the member is missing,
	// returning the names it granted. With dryRun set, nothing is granted or
	// stamped and the full resolved candidate list is returned instead.
	Assign(ctx context.Context, guildID, discordID, kerb string, dryRun, alumni bool) ([]string, error)
	// ListToggleable returns the guild roles members may self-assign.
	ListToggleable(ctx context.Context, guildID string) ([]discord.Role, error)
	// Toggle flips one toggleable role on the member. Only members holding
	// Verified may toggle. It reports true when the role was added, false
	// when it was removed.
	Toggle(ctx context.Context, guildID, discordID, roleID string) (bool, error)
}

type Deps struct {
	Gateway   Gateway
	Directory Directory
	Users     UserStore
	Settings  SettingsSource
	Audit     Notifier
	Metrics   *metrics.Metrics

	// AlumniRole is the role name granted to alumni accounts.
	AlumniRole string
}

type service struct {
	deps Deps
}

func NewService(deps Deps) Service {
	return &service{deps: deps}
}

func (s *service) Assign(ctx context.Context, guildID, discordID, kerb string, dryRun, alumni bool) ([]string, error) {
	guildRoles, err := s.deps.Gateway.GuildRoles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list guild roles: %w", err)
	}
	member, err := s.deps.Gateway.GuildMember(ctx, guildID, discordID)
	if err != nil {
		return nil, fmt.Errorf("resolve member: %w", err)
	}

	verified := false
	if u, err := s.deps.Users.GetByKerb(ctx, kerb); err == nil {
		verified = u.Verified
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load verified user: %w", err)
	}

	var person *domain.PersonRecord
	if !alumni {
		person, err = s.deps.Directory.Lookup(ctx, kerb)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("directory lookup: %w", err)
		}
	}

	candidates := s.candidateRoles(person, alumni, verified)

	byName := make(map[string]string, len(guildRoles))
	for _, r := range guildRoles {
		byName[r.Name] = r.ID
	}

	// Candidate names that exist in the guild, deduped, order preserved.
	var resolved []string
	ids := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, name := range candidates {
		id, ok := byName[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		resolved = append(resolved, name)
		ids = append(ids, id)
	}

	if dryRun {
		return resolved, nil
	}

	held := make(map[string]bool, len(member.Roles))
	for _, id := range member.Roles {
		held[id] = true
	}

	var granted []string
	for i, id := range ids {
		if held[id] {
			continue
		}
		if err := s.deps.Gateway.AddMemberRole(ctx, guildID, discordID, id); err != nil {
			return nil, fmt.Errorf("add role %s: %w", resolved[i], err)
		}
		granted = append(granted, resolved[i])
	}

	if verified {
		if err := s.stampRoleUpdate(ctx, kerb); err != nil {
			return nil, err
		}
	}

	if len(granted) > 0 {
		s.deps.Audit.Emit(ctx, audit.StatusSuccess, "Assigning %v to <@%s>", granted, discordID)
		s.deps.Metrics.AddRolesGranted(len(granted))
	}
	return granted, nil
}

// stampRoleUpdate records the assignment time on the verified-user record.
// The record can vanish between the earlier load and this write (admin
// removal), so an absent record is not an error.
func (s *service) stampRoleUpdate(ctx context.Context, kerb string) error {
	err := s.deps.Users.Update(ctx, kerb, map[string]interface{}{
		"last_role_update": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("stamp role update: %w", err)
	}
	return nil
}

// candidateRoles computes the ordered role-name set for a member. Verified
// requires a committed verified-user record for the kerb. Alumni get only the
// alumni role on top of that. For current community members the directory
// record drives the rest; a missing or suppressed record adds nothing.
func (s *service) candidateRoles(person *domain.PersonRecord, alumni, verified bool) []string {
	var names []string
	if verified {
		names = append(names, RoleVerified)
	}
	if alumni {
		return append(names, s.deps.AlumniRole)
	}
	if person == nil {
		return names
	}

	var (
		student   *domain.Affiliation
		crossReg  bool
		deptRoles []string
	)
scan:
	for i := range person.Affiliations {
		aff := &person.Affiliations[i]
		switch aff.Type {
		case domain.AffiliationAffiliate:
			names = append(names, RoleAffiliate)
		case domain.AffiliationStaff:
			names = append(names, RoleStaff)
			// Staff wins outright; remaining affiliations don't add roles.
			break scan
		case domain.AffiliationStudent:
			student = aff
			for _, dept := range aff.Departments {
				deptRoles = append(deptRoles, CourseRolePrefix+dept.Code)
				if strings.HasPrefix(dept.Code, CrossRegPrefix) {
					crossReg = true
				}
			}
		}
	}
	names = append(names, deptRoles...)

	if student != nil {
		switch {
		case student.ClassYear == "G":
			names = append(names, RoleGradStudent)
		case crossReg:
			names = append(names, RoleXReg)
		case isUndergradYear(student.ClassYear):
			names = append(names, RoleUndergrad)
		}
	}
	return names
}

func isUndergradYear(year string) bool {
	switch year {
	case "1", "2", "3", "4":
		return true
	}
	return false
}

func (s *service) ListToggleable(ctx context.Context, guildID string) ([]discord.Role, error) {
	settings, err := s.deps.Settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	guildRoles, err := s.deps.Gateway.GuildRoles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list guild roles: %w", err)
	}
	var out []discord.Role
	for _, r := range guildRoles {
		if settings.IsToggleable(r.ID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *service) Toggle(ctx context.Context, guildID, discordID, roleID string) (bool, error) {
	settings, err := s.deps.Settings.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("load settings: %w", err)
	}
	if !settings.IsToggleable(roleID) {
		return false, fmt.Errorf("role %s is not toggleable: %w", roleID, domain.ErrBadRequest)
	}

	member, err := s.deps.Gateway.GuildMember(ctx, guildID, discordID)
	if err != nil {
		return false, fmt.Errorf("resolve member: %w", err)
	}
	if !s.holdsVerified(ctx, guildID, member) {
		return false, fmt.Errorf("member <@%s> is not verified: %w", discordID, domain.ErrForbidden)
	}
	for _, held := range member.Roles {
		if held == roleID {
			if err := s.deps.Gateway.RemoveMemberRole(ctx, guildID, discordID, roleID); err != nil {
				return false, fmt.Errorf("remove role: %w", err)
			}
			return false, nil
		}
	}
	if err := s.deps.Gateway.AddMemberRole(ctx, guildID, discordID, roleID); err != nil {
		return false, fmt.Errorf("add role: %w", err)
	}
	return true, nil
}

func (s *service) holdsVerified(ctx context.Context, guildID string, member *discord.Member) bool {
	guildRoles, err := s.deps.Gateway.GuildRoles(ctx, guildID)
	if err != nil {
		return false
	}
	var verifiedID string
	for _, r := range guildRoles {
		if r.Name == RoleVerified {
			verifiedID = r.ID
			break
		}
	}
	for _, held := range member.Roles {
		if held == verifiedID && verifiedID != "" {
			return true
		}
	}
	return false
}

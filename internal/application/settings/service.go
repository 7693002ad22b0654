package settings

import (
	"context"
	"fmt"

	"github.com/suufi/mit-lobby7-verification/internal/domain"
)

// Store is the durable settings document. Update applies the mutator to the
// current document and rewrites it whole.
type Store interface {
	Get(ctx context.Context) (*domain.GuildSettings, error)
	Update(ctx context.Context, mutate func(*domain.GuildSettings)) (*domain.GuildSettings, error)
}

// Service exposes the moderator-facing settings operations: the issuance
// blacklist, the audit channel, and the toggleable role list.
type Service interface {
	Blacklist(ctx context.Context) ([]string, error)
	BlacklistAdd(ctx context.Context, kerb string) error
	BlacklistRemove(ctx context.Context, kerb string) error

	SetAuditChannel(ctx context.Context, channelID string) error

	ToggleableRoles(ctx context.Context) ([]string, error)
	AddToggleableRole(ctx context.Context, roleID string) error
	RemoveToggleableRole(ctx context.Context, roleID string) error
}

type service struct {
	store Store
}

func NewService(store Store) Service {
	return &service{store: store}
}

func (s *service) Blacklist(ctx context.Context) ([]string, error) {
	doc, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	return doc.BlacklistedKerbs, nil
}

// BlacklistAdd is idempotent; re-adding a listed kerb is a no-op.
func (s *service) BlacklistAdd(ctx context.Context, kerb string) error {
	kerb = domain.NormalizeKerb(kerb)
	_, err := s.store.Update(ctx, func(doc *domain.GuildSettings) {
		if doc.IsBlacklisted(kerb) {
			return
		}
		doc.BlacklistedKerbs = append(doc.BlacklistedKerbs, kerb)
	})
	return err
}

func (s *service) BlacklistRemove(ctx context.Context, kerb string) error {
	kerb = domain.NormalizeKerb(kerb)
	found := false
	_, err := s.store.Update(ctx, func(doc *domain.GuildSettings) {
		kept := doc.BlacklistedKerbs[:0]
		for _, k := range doc.BlacklistedKerbs {
			if k == kerb {
				found = true
				continue
			}
			kept = append(kept, k)
		}
		doc.BlacklistedKerbs = kept
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("kerb %q not blacklisted: %w", kerb, domain.ErrNotFound)
	}
	return nil
}

func (s *service) SetAuditChannel(ctx context.Context, channelID string) error {
	_, err := s.store.Update(ctx, func(doc *domain.GuildSettings) {
		doc.AuditChannelID = channelID
	})
	return err
}

func (s *service) ToggleableRoles(ctx context.Context) ([]string, error) {
	doc, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	return doc.ToggleableRoles, nil
}

func (s *service) AddToggleableRole(ctx context.Context, roleID string) error {
	exists := false
	_, err := s.store.Update(ctx, func(doc *domain.GuildSettings) {
		if doc.IsToggleable(roleID) {
			exists = true
			return
		}
		doc.ToggleableRoles = append(doc.ToggleableRoles, roleID)
	})
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("role %s already toggleable: %w", roleID, domain.ErrConflict)
	}
	return nil
}

func (s *service) RemoveToggleableRole(ctx context.Context, roleID string) error {
	found := false
	_, err := s.store.Update(ctx, func(doc *domain.GuildSettings) {
		kept := doc.ToggleableRoles[:0]
		for _, id := range doc.ToggleableRoles {
			if id == roleID {
				found = true
				continue
			}
			kept = append(kept, id)
		}
		doc.ToggleableRoles = kept
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("role %s not toggleable: %w", roleID, domain.ErrNotFound)
	}
	return nil
}

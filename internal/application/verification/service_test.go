package verification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/suufi/mit-lobby7-verification/internal/audit"
	"github.com/suufi/mit-lobby7-verification/internal/domain"
)

// --- mocks ---

type mockCodeStore struct{ mock.Mock }

func (m *mockCodeStore) Put(ctx context.Context, v *domain.VerificationCode) error {
	return m.Called(ctx, v).Error(0)
}
func (m *mockCodeStore) GetByKerb(ctx context.Context, kerb string) (*domain.VerificationCode, error) {
	args := m.Called(ctx, kerb)
	if v, _ := args.Get(0).(*domain.VerificationCode); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCodeStore) GetByDiscordID(ctx context.Context, discordID string) (*domain.VerificationCode, error) {
	args := m.Called(ctx, discordID)
	if v, _ := args.Get(0).(*domain.VerificationCode); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCodeStore) Delete(ctx context.Context, kerb string) error {
	return m.Called(ctx, kerb).Error(0)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Put(ctx context.Context, u *domain.VerifiedUser) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) GetByKerb(ctx context.Context, kerb string) (*domain.VerifiedUser, error) {
	args := m.Called(ctx, kerb)
	if u, _ := args.Get(0).(*domain.VerifiedUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByDiscordID(ctx context.Context, discordID string) (*domain.VerifiedUser, error) {
	args := m.Called(ctx, discordID)
	if u, _ := args.Get(0).(*domain.VerifiedUser); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSettings struct{ mock.Mock }

func (m *mockSettings) Get(ctx context.Context) (*domain.GuildSettings, error) {
	args := m.Called(ctx)
	if s, _ := args.Get(0).(*domain.GuildSettings); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(ctx context.Context, to, subject, text, html string) error {
	return m.Called(ctx, to, subject, text, html).Error(0)
}

type mockRoleAssigner struct{ mock.Mock }

func (m *mockRoleAssigner) Assign(ctx context.Context, guildID, discordID, kerb string, dryRun, alumni bool) ([]string, error) {
	args := m.Called(ctx, guildID, discordID, kerb, dryRun, alumni)
	roles, _ := args.Get(0).([]string)
	return roles, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Emit(ctx context.Context, status audit.Status, format string, args ...interface{}) {
	m.Called(ctx, status, format, args)
}

// --- builder ---

func newService(cs *mockCodeStore, us *mockUserStore, st *mockSettings, ml *mockMailer, ra *mockRoleAssigner, nt *mockNotifier) Service {
	return NewService(Deps{
		Codes:    cs,
		Users:    us,
		Settings: st,
		Mailer:   ml,
		Roles:    ra,
		Audit:    nt,
	})
}

func emptySettings() *domain.GuildSettings {
	return &domain.GuildSettings{SettingsID: domain.DefaultSettingsID}
}

// --- Issue ---

func TestIssue_BlacklistedKerb(t *testing.T) {
	st := &mockSettings{}
	st.On("Get", mock.Anything).Return(&domain.GuildSettings{
		SettingsID:       domain.DefaultSettingsID,
		BlacklistedKerbs: []string{"troll"},
	}, nil)
	nt := &mockNotifier{}
	nt.On("Emit", mock.Anything, audit.StatusBlocked, mock.Anything, mock.Anything).Return()

	svc := newService(nil, nil, st, nil, nil, nt)
	_, err := svc.Issue(context.Background(), "troll", "111")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBlacklisted)
	nt.AssertCalled(t, "Emit", mock.Anything, audit.StatusBlocked, mock.Anything, mock.Anything)
}

func TestIssue_AlreadyVerified(t *testing.T) {
	st := &mockSettings{}
	st.On("Get", mock.Anything).Return(emptySettings(), nil)
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "111").Return(&domain.VerifiedUser{
		Kerb:      "timbeav",
		DiscordID: "111",
		Verified:  true,
	}, nil)

	svc := newService(nil, us, st, nil, nil, nil)
	_, err := svc.Issue(context.Background(), "timbeav", "111")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)
}

func TestIssue_CooldownWhileCodeLive(t *testing.T) {
	st := &mockSettings{}
	st.On("Get", mock.Anything).Return(emptySettings(), nil)
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "111").Return(nil, domain.ErrNotFound)
	us.On("GetByKerb", mock.Anything, "timbeav").Return(nil, domain.ErrNotFound)
	cs := &mockCodeStore{}
	cs.On("GetByDiscordID", mock.Anything, "111").Return(&domain.VerificationCode{
		Kerb:      "timbeav",
		DiscordID: "111",
		Code:      "aB3dE7f",
	}, nil)
	nt := &mockNotifier{}
	nt.On("Emit", mock.Anything, audit.StatusWarning, mock.Anything, mock.Anything).Return()

	svc := newService(cs, us, st, nil, nil, nt)
	_, err := svc.Issue(context.Background(), "timbeav", "111")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCooldown)
	cs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestIssue_KerbClaimedByAnotherAccount(t *testing.T) {
	st := &mockSettings{}
	st.On("Get", mock.Anything).Return(emptySettings(), nil)
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "999").Return(nil, domain.ErrNotFound)
	us.On("GetByKerb", mock.Anything, "timbeav").Return(&domain.VerifiedUser{
		Kerb:      "timbeav",
		DiscordID: "111",
		Verified:  true,
	}, nil)
	cs := &mockCodeStore{}
	nt := &mockNotifier{}
	nt.On("Emit", mock.Anything, audit.StatusWarning, mock.Anything, mock.Anything).Return()

	svc := newService(cs, us, st, nil, nil, nt)
	_, err := svc.Issue(context.Background(), "timbeav", "999")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrKerbClaimed)
	cs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	nt.AssertCalled(t, "Emit", mock.Anything, audit.StatusWarning, mock.Anything, mock.Anything)
}

func TestIssue_Success(t *testing.T) {
	st := &mockSettings{}
	st.On("Get", mock.Anything).Return(emptySettings(), nil)
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "111").Return(nil, domain.ErrNotFound)
	us.On("GetByKerb", mock.Anything, "timbeav").Return(nil, domain.ErrNotFound)

	var stored *domain.VerificationCode
	cs := &mockCodeStore{}
	cs.On("GetByDiscordID", mock.Anything, "111").Return(nil, domain.ErrNotFound)
	cs.On("Put", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*domain.VerificationCode)
	}).Return(nil)

	ml := &mockMailer{}
	ml.On("Send", mock.Anything, "timbeav@mit.edu", "MIT Discord Verification Code", mock.Anything, mock.Anything).Return(nil)
	nt := &mockNotifier{}
	nt.On("Emit", mock.Anything, audit.StatusStarted, mock.Anything, mock.Anything).Return()

	svc := newService(cs, us, st, ml, nil, nt)
	secret, err := svc.Issue(context.Background(), "timbeav", "111")

	require.NoError(t, err)
	assert.Len(t, secret, domain.CodeLength)
	require.NotNil(t, stored)
	assert.Equal(t, "timbeav", stored.Kerb)
	assert.Equal(t, "111", stored.DiscordID)
	assert.False(t, stored.Alum)
	assert.Equal(t, secret, stored.Code)
	assert.InDelta(t, time.Now().Add(domain.CodeTTL).Unix(), stored.ExpiresAt, 5)

	ml.AssertCalled(t, "Send", mock.Anything, "timbeav@mit.edu", "MIT Discord Verification Code", mock.Anything, mock.Anything)
	sentText := ml.Calls[0].Arguments.String(3)
	assert.True(t, strings.Contains(sentText, secret))
}

func TestIssue_AlumniMailbox(t *testing.T) {
	st := &mockSettings{}
	st.On("Get", mock.Anything).Return(emptySettings(), nil)
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "222").Return(nil, domain.ErrNotFound)
	us.On("GetByKerb", mock.Anything, "oldbeav@alum.mit.edu").Return(nil, domain.ErrNotFound)

	var stored *domain.VerificationCode
	cs := &mockCodeStore{}
	cs.On("GetByDiscordID", mock.Anything, "222").Return(nil, domain.ErrNotFound)
	cs.On("Put", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*domain.VerificationCode)
	}).Return(nil)

	ml := &mockMailer{}
	ml.On("Send", mock.Anything, "oldbeav@alum.mit.edu", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	nt := &mockNotifier{}
	nt.On("Emit", mock.Anything, audit.StatusStarted, mock.Anything, mock.Anything).Return()

	svc := newService(cs, us, st, ml, nil, nt)
	_, err := svc.Issue(context.Background(), "oldbeav@alum.mit.edu", "222")

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Alum)
	ml.AssertCalled(t, "Send", mock.Anything, "oldbeav@alum.mit.edu", mock.Anything, mock.Anything, mock.Anything)
}

func TestIssue_EmailFailureKeepsCode(t *testing.T) {
	st := &mockSettings{}
	st.On("Get", mock.Anything).Return(emptySettings(), nil)
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "111").Return(nil, domain.ErrNotFound)
	us.On("GetByKerb", mock.Anything, "timbeav").Return(nil, domain.ErrNotFound)
	cs := &mockCodeStore{}
	cs.On("GetByDiscordID", mock.Anything, "111").Return(nil, domain.ErrNotFound)
	cs.On("Put", mock.Anything, mock.Anything).Return(nil)
	ml := &mockMailer{}
	ml.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp: connection refused"))
	nt := &mockNotifier{}
	nt.On("Emit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	svc := newService(cs, us, st, ml, nil, nt)
	_, err := svc.Issue(context.Background(), "timbeav", "111")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmailDelivery)
	// The code was stored before the send and must stay redeemable.
	cs.AssertCalled(t, "Put", mock.Anything, mock.Anything)
	cs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	nt.AssertCalled(t, "Emit", mock.Anything, audit.StatusFailure, mock.Anything, mock.Anything)
}

// --- Redeem ---

func TestRedeem_NoLiveCode(t *testing.T) {
	cs := &mockCodeStore{}
	cs.On("GetByKerb", mock.Anything, "timbeav").Return(nil, domain.ErrNotFound)

	svc := newService(cs, nil, nil, nil, nil, nil)
	err := svc.Redeem(context.Background(), "timbeav", "111", "aB3dE7f", "guild-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestRedeem_WrongCodeNotConsumed(t *testing.T) {
	cs := &mockCodeStore{}
	cs.On("GetByKerb", mock.Anything, "timbeav").Return(&domain.VerificationCode{
		Kerb:      "timbeav",
		DiscordID: "111",
		Code:      "aB3dE7f",
	}, nil)

	svc := newService(cs, nil, nil, nil, nil, nil)
	err := svc.Redeem(context.Background(), "timbeav", "111", "zzzzzzz", "guild-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
	cs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRedeem_WrongAccountNotConsumed(t *testing.T) {
	cs := &mockCodeStore{}
	cs.On("GetByKerb", mock.Anything, "timbeav").Return(&domain.VerificationCode{
		Kerb:      "timbeav",
		DiscordID: "111",
		Code:      "aB3dE7f",
	}, nil)

	svc := newService(cs, nil, nil, nil, nil, nil)
	err := svc.Redeem(context.Background(), "timbeav", "999", "aB3dE7f", "guild-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
	cs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRedeem_Success(t *testing.T) {
	cs := &mockCodeStore{}
	cs.On("GetByKerb", mock.Anything, "timbeav").Return(&domain.VerificationCode{
		Kerb:      "timbeav",
		DiscordID: "111",
		Code:      "aB3dE7f",
	}, nil)
	cs.On("Delete", mock.Anything, "timbeav").Return(nil)

	var saved *domain.VerifiedUser
	us := &mockUserStore{}
	us.On("GetByKerb", mock.Anything, "timbeav").Return(nil, domain.ErrNotFound)
	us.On("Put", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		saved = args.Get(1).(*domain.VerifiedUser)
	}).Return(nil)

	ra := &mockRoleAssigner{}
	ra.On("Assign", mock.Anything, "guild-1", "111", "timbeav", false, false).
		Return([]string{"Verified", "course-6"}, nil)
	nt := &mockNotifier{}
	nt.On("Emit", mock.Anything, audit.StatusSuccess, mock.Anything, mock.Anything).Return()

	svc := newService(cs, us, nil, nil, ra, nt)
	err := svc.Redeem(context.Background(), "timbeav", "111", "aB3dE7f", "guild-1")

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.True(t, saved.Verified)
	assert.Equal(t, "timbeav", saved.Kerb)
	assert.Equal(t, "111", saved.DiscordID)
	require.NotNil(t, saved.LastRoleUpdate)
	assert.WithinDuration(t, time.Now(), *saved.LastRoleUpdate, 5*time.Second)

	cs.AssertCalled(t, "Delete", mock.Anything, "timbeav")
	ra.AssertCalled(t, "Assign", mock.Anything, "guild-1", "111", "timbeav", false, false)
}

func TestRedeem_KerbClaimedNotOverwritten(t *testing.T) {
	cs := &mockCodeStore{}
	cs.On("GetByKerb", mock.Anything, "timbeav").Return(&domain.VerificationCode{
		Kerb:      "timbeav",
		DiscordID: "999",
		Code:      "aB3dE7f",
	}, nil)
	us := &mockUserStore{}
	us.On("GetByKerb", mock.Anything, "timbeav").Return(&domain.VerifiedUser{
		Kerb:      "timbeav",
		DiscordID: "111",
		Verified:  true,
	}, nil)

	svc := newService(cs, us, nil, nil, nil, nil)
	err := svc.Redeem(context.Background(), "timbeav", "999", "aB3dE7f", "guild-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrKerbClaimed)
	us.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	cs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRedeem_RoleFailureDoesNotUnverify(t *testing.T) {
	cs := &mockCodeStore{}
	cs.On("GetByKerb", mock.Anything, "timbeav").Return(&domain.VerificationCode{
		Kerb:      "timbeav",
		DiscordID: "111",
		Code:      "aB3dE7f",
	}, nil)
	cs.On("Delete", mock.Anything, "timbeav").Return(nil)
	us := &mockUserStore{}
	us.On("GetByKerb", mock.Anything, "timbeav").Return(nil, domain.ErrNotFound)
	us.On("Put", mock.Anything, mock.Anything).Return(nil)
	ra := &mockRoleAssigner{}
	ra.On("Assign", mock.Anything, "guild-1", "111", "timbeav", false, false).
		Return(nil, errors.New("discord unavailable"))
	nt := &mockNotifier{}
	nt.On("Emit", mock.Anything, audit.StatusSuccess, mock.Anything, mock.Anything).Return()

	svc := newService(cs, us, nil, nil, ra, nt)
	err := svc.Redeem(context.Background(), "timbeav", "111", "aB3dE7f", "guild-1")

	require.NoError(t, err)
	us.AssertCalled(t, "Put", mock.Anything, mock.Anything)
}

package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/suufi/mit-lobby7-verification/internal/domain"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

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
func (m *mockUserStore) ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.VerifiedUser, string, error) {
	args := m.Called(ctx, limit, cursor)
	page, _ := args.Get(0).([]domain.VerifiedUser)
	return page, args.String(1), args.Error(2)
}

type mockRoleAssigner struct{ mock.Mock }

func (m *mockRoleAssigner) Assign(ctx context.Context, guildID, discordID, kerb string, dryRun, alumni bool) ([]string, error) {
	args := m.Called(ctx, guildID, discordID, kerb, dryRun, alumni)
	roles, _ := args.Get(0).([]string)
	return roles, args.Error(1)
}

type mockDirectory struct{ mock.Mock }

func (m *mockDirectory) Lookup(ctx context.Context, kerb string) (*domain.PersonRecord, error) {
	args := m.Called(ctx, kerb)
	if p, _ := args.Get(0).(*domain.PersonRecord); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Info(ctx context.Context, format string, args ...interface{}) {
	m.Called(ctx, format, args)
}

// --- builder ---

func newService(us *mockUserStore, dir *mockDirectory, ra *mockRoleAssigner, nt *mockNotifier) Service {
	return NewService(Deps{Users: us, Roles: ra, Directory: dir, Audit: nt})
}

// resolvableDirectory returns a directory that still knows the given kerbs.
func resolvableDirectory(kerbs ...string) *mockDirectory {
	dir := &mockDirectory{}
	for _, kerb := range kerbs {
		dir.On("Lookup", mock.Anything, kerb).Return(&domain.PersonRecord{}, nil)
	}
	return dir
}

func verifiedUser(kerb, discordID string, lastUpdate *time.Time) *domain.VerifiedUser {
	return &domain.VerifiedUser{
		Kerb:           kerb,
		DiscordID:      discordID,
		Verified:       true,
		LastRoleUpdate: lastUpdate,
	}
}

func timePtr(t time.Time) *time.Time { return &t }

// --- OnActivity ---

func TestOnActivity_UnverifiedIgnored(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "111").Return(nil, domain.ErrNotFound)
	ra := &mockRoleAssigner{}

	svc := newService(us, &mockDirectory{}, ra, nil)
	err := svc.OnActivity(context.Background(), "g1", "111", time.Now())

	require.NoError(t, err)
	ra.AssertNotCalled(t, "Assign", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOnActivity_FreshRolesSkipped(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "111").Return(
		verifiedUser("timbeav", "111", timePtr(time.Now().Add(-time.Hour))), nil)
	ra := &mockRoleAssigner{}

	svc := newService(us, &mockDirectory{}, ra, nil)
	err := svc.OnActivity(context.Background(), "g1", "111", time.Now())

	require.NoError(t, err)
	ra.AssertNotCalled(t, "Assign", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOnActivity_StaleRolesRefreshed(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "111").Return(
		verifiedUser("timbeav", "111", timePtr(time.Now().Add(-25*time.Hour))), nil)
	ra := &mockRoleAssigner{}
	ra.On("Assign", mock.Anything, "g1", "111", "timbeav", false, false).
		Return([]string{"Grad Student"}, nil)
	nt := &mockNotifier{}
	nt.On("Info", mock.Anything, mock.Anything, mock.Anything).Return()

	svc := newService(us, resolvableDirectory("timbeav"), ra, nt)
	err := svc.OnActivity(context.Background(), "g1", "111", time.Now())

	require.NoError(t, err)
	ra.AssertCalled(t, "Assign", mock.Anything, "g1", "111", "timbeav", false, false)
	nt.AssertCalled(t, "Info", mock.Anything, mock.Anything, mock.Anything)
}

func TestOnActivity_NeverStampedAlwaysEligible(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "111").Return(
		verifiedUser("timbeav", "111", nil), nil)
	ra := &mockRoleAssigner{}
	ra.On("Assign", mock.Anything, "g1", "111", "timbeav", false, false).Return(nil, nil)

	svc := newService(us, resolvableDirectory("timbeav"), ra, nil)
	err := svc.OnActivity(context.Background(), "g1", "111", time.Now())

	require.NoError(t, err)
	ra.AssertCalled(t, "Assign", mock.Anything, "g1", "111", "timbeav", false, false)
}

func TestOnActivity_AssignFailureSwallowed(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "111").Return(
		verifiedUser("timbeav", "111", nil), nil)
	ra := &mockRoleAssigner{}
	ra.On("Assign", mock.Anything, "g1", "111", "timbeav", false, false).
		Return(nil, errors.New("directory unavailable"))

	svc := newService(us, resolvableDirectory("timbeav"), ra, nil)
	err := svc.OnActivity(context.Background(), "g1", "111", time.Now())

	require.NoError(t, err)
}

func TestOnActivity_DirectoryDropoutSkipsRefresh(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "111").Return(
		verifiedUser("lostbeav", "111", nil), nil)
	dir := &mockDirectory{}
	dir.On("Lookup", mock.Anything, "lostbeav").Return(nil, domain.ErrNotFound)
	ra := &mockRoleAssigner{}

	svc := newService(us, dir, ra, nil)
	err := svc.OnActivity(context.Background(), "g1", "111", time.Now())

	require.NoError(t, err)
	// The member keeps their roles untouched; nothing is assigned or stamped.
	ra.AssertNotCalled(t, "Assign", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- OnJoin ---

func TestOnJoin_RefreshesWithoutStalenessGate(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "222").Return(
		&domain.VerifiedUser{Kerb: "oldbeav@alum.mit.edu", DiscordID: "222", Alum: true, Verified: true, LastRoleUpdate: timePtr(time.Now())}, nil)
	ra := &mockRoleAssigner{}
	ra.On("Assign", mock.Anything, "g1", "222", "oldbeav@alum.mit.edu", false, true).
		Return([]string{"Verified", "Alumni"}, nil)
	nt := &mockNotifier{}
	nt.On("Info", mock.Anything, mock.Anything, mock.Anything).Return()

	dir := &mockDirectory{}
	svc := newService(us, dir, ra, nt)
	err := svc.OnJoin(context.Background(), "g1", "222")

	require.NoError(t, err)
	ra.AssertCalled(t, "Assign", mock.Anything, "g1", "222", "oldbeav@alum.mit.edu", false, true)
	dir.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

func TestOnJoin_UnverifiedIgnored(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByDiscordID", mock.Anything, "333").Return(nil, domain.ErrNotFound)
	ra := &mockRoleAssigner{}

	svc := newService(us, &mockDirectory{}, ra, nil)
	err := svc.OnJoin(context.Background(), "g1", "333")

	require.NoError(t, err)
	ra.AssertNotCalled(t, "Assign", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- Refresh ---

func TestRefresh_UnknownKerb(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByKerb", mock.Anything, "nobody").Return(nil, domain.ErrNotFound)

	svc := newService(us, &mockDirectory{}, nil, nil)
	_, err := svc.Refresh(context.Background(), "g1", "nobody")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefresh_ReturnsGranted(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByKerb", mock.Anything, "timbeav").Return(
		verifiedUser("timbeav", "111", nil), nil)
	ra := &mockRoleAssigner{}
	ra.On("Assign", mock.Anything, "g1", "111", "timbeav", false, false).
		Return([]string{"Grad Student"}, nil)

	svc := newService(us, &mockDirectory{}, ra, nil)
	granted, err := svc.Refresh(context.Background(), "g1", "timbeav")

	require.NoError(t, err)
	assert.Equal(t, []string{"Grad Student"}, granted)
}

// --- Sweep ---

func TestSweep_PagesAndSkipsFresh(t *testing.T) {
	stale := verifiedUser("stale1", "111", timePtr(time.Now().Add(-48*time.Hour)))
	fresh := verifiedUser("fresh1", "222", timePtr(time.Now().Add(-time.Hour)))
	never := verifiedUser("never1", "333", nil)

	us := &mockUserStore{}
	us.On("ScanPage", mock.Anything, int32(100), "").
		Return([]domain.VerifiedUser{*stale, *fresh}, "cursor-1", nil)
	us.On("ScanPage", mock.Anything, int32(100), "cursor-1").
		Return([]domain.VerifiedUser{*never}, "", nil)

	ra := &mockRoleAssigner{}
	ra.On("Assign", mock.Anything, "g1", "111", "stale1", false, false).
		Return([]string{"course-6"}, nil)
	ra.On("Assign", mock.Anything, "g1", "333", "never1", false, false).
		Return(nil, nil)
	nt := &mockNotifier{}
	nt.On("Info", mock.Anything, mock.Anything, mock.Anything).Return()

	svc := newService(us, resolvableDirectory("stale1", "never1"), ra, nt)
	touched, err := svc.Sweep(context.Background(), "g1")

	require.NoError(t, err)
	assert.Equal(t, 1, touched)
	ra.AssertNotCalled(t, "Assign", mock.Anything, "g1", "222", "fresh1", false, false)
}

func TestSweep_DepartedMemberSkipped(t *testing.T) {
	gone := verifiedUser("gonebeav", "444", nil)

	us := &mockUserStore{}
	us.On("ScanPage", mock.Anything, int32(100), "").
		Return([]domain.VerifiedUser{*gone}, "", nil)
	ra := &mockRoleAssigner{}
	ra.On("Assign", mock.Anything, "g1", "444", "gonebeav", false, false).
		Return(nil, domain.ErrNotFound)

	svc := newService(us, resolvableDirectory("gonebeav"), ra, nil)
	touched, err := svc.Sweep(context.Background(), "g1")

	require.NoError(t, err)
	assert.Equal(t, 0, touched)
}

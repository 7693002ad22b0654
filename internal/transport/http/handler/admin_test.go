package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockSettingsService struct{ mock.Mock }

func (m *mockSettingsService) Blacklist(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]string)
	return list, args.Error(1)
}
func (m *mockSettingsService) BlacklistAdd(ctx context.Context, kerb string) error {
	return m.Called(ctx, kerb).Error(0)
}
func (m *mockSettingsService) BlacklistRemove(ctx context.Context, kerb string) error {
	return m.Called(ctx, kerb).Error(0)
}
func (m *mockSettingsService) SetAuditChannel(ctx context.Context, channelID string) error {
	return m.Called(ctx, channelID).Error(0)
}
func (m *mockSettingsService) ToggleableRoles(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}
func (m *mockSettingsService) AddToggleableRole(ctx context.Context, roleID string) error {
	return m.Called(ctx, roleID).Error(0)
}
func (m *mockSettingsService) RemoveToggleableRole(ctx context.Context, roleID string) error {
	return m.Called(ctx, roleID).Error(0)
}

func TestListToggleableRoles(t *testing.T) {
	st := &mockSettingsService{}
	st.On("ToggleableRoles", mock.Anything).Return([]string{"r-course-6", "r-announcements"}, nil)

	h := NewAdminHandler(nil, nil, nil, st)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ListToggleableRoles(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "r-course-6")
	assert.Contains(t, rr.Body.String(), "r-announcements")
}

func TestListToggleableRoles_StoreFailure(t *testing.T) {
	st := &mockSettingsService{}
	st.On("ToggleableRoles", mock.Anything).Return(nil, errors.New("dynamo unavailable"))

	h := NewAdminHandler(nil, nil, nil, st)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ListToggleableRoles(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

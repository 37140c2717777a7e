// internal/services/auth_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkmarket/commission-backend/internal/models"
	"github.com/inkmarket/commission-backend/internal/utils"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(newTestDB(t), testConfig())
}

func TestRegister(t *testing.T) {
	svc := newAuthService(t)

	resp, err := svc.Register(&RegisterRequest{
		Username: "ink_client",
		Email:    "client@example.com",
		Password: "Sup3r$ecret",
		UserType: models.UserTypeClient,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, models.UserStatusActive, resp.User.Status)
	assert.NotEqual(t, "Sup3r$ecret", resp.User.PasswordHash)

	claims, err := utils.ValidateJWT(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID.String(), claims.UserID)
	assert.Equal(t, string(models.UserTypeClient), claims.UserType)
}

func TestRegisterRejectsDuplicatesAndAdmins(t *testing.T) {
	svc := newAuthService(t)

	_, err := svc.Register(&RegisterRequest{
		Username: "ink_client",
		Email:    "client@example.com",
		Password: "Sup3r$ecret",
		UserType: models.UserTypeClient,
	})
	require.NoError(t, err)

	_, err = svc.Register(&RegisterRequest{
		Username: "other_name",
		Email:    "client@example.com",
		Password: "Sup3r$ecret",
		UserType: models.UserTypeClient,
	})
	assert.EqualError(t, err, "user with this email already exists")

	_, err = svc.Register(&RegisterRequest{
		Username: "ink_client",
		Email:    "other@example.com",
		Password: "Sup3r$ecret",
		UserType: models.UserTypeClient,
	})
	assert.EqualError(t, err, "username already taken")

	// Admin accounts are seeded, never self-registered.
	_, err = svc.Register(&RegisterRequest{
		Username: "sneaky_admin",
		Email:    "admin@example.com",
		Password: "Sup3r$ecret",
		UserType: models.UserTypeAdmin,
	})
	assert.EqualError(t, err, "invalid user type")
}

func TestRegisterWeakPassword(t *testing.T) {
	svc := newAuthService(t)

	_, err := svc.Register(&RegisterRequest{
		Username: "ink_client",
		Email:    "client@example.com",
		Password: "password",
		UserType: models.UserTypeClient,
	})
	assert.ErrorContains(t, err, "validation failed")
}

func TestLogin(t *testing.T) {
	svc := newAuthService(t)
	_, err := svc.Register(&RegisterRequest{
		Username: "ink_artist",
		Email:    "artist@example.com",
		Password: "Sup3r$ecret",
		UserType: models.UserTypeArtist,
	})
	require.NoError(t, err)

	resp, err := svc.Login(&LoginRequest{Email: "artist@example.com", Password: "Sup3r$ecret"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotNil(t, resp.User.LastLoginAt)

	_, err = svc.Login(&LoginRequest{Email: "artist@example.com", Password: "wrong-password"})
	assert.EqualError(t, err, "invalid email or password")

	// Unknown accounts get the same answer as bad passwords.
	_, err = svc.Login(&LoginRequest{Email: "nobody@example.com", Password: "Sup3r$ecret"})
	assert.EqualError(t, err, "invalid email or password")
}

func TestLoginSuspendedAccount(t *testing.T) {
	svc := newAuthService(t)
	resp, err := svc.Register(&RegisterRequest{
		Username: "ink_artist",
		Email:    "artist@example.com",
		Password: "Sup3r$ecret",
		UserType: models.UserTypeArtist,
	})
	require.NoError(t, err)

	require.NoError(t, svc.db.Model(&models.User{}).
		Where("id = ?", resp.User.ID).
		Update("status", models.UserStatusSuspended).Error)

	_, err = svc.Login(&LoginRequest{Email: "artist@example.com", Password: "Sup3r$ecret"})
	assert.EqualError(t, err, "account is suspended")
}

func TestRefreshToken(t *testing.T) {
	svc := newAuthService(t)
	registered, err := svc.Register(&RegisterRequest{
		Username: "ink_client",
		Email:    "client@example.com",
		Password: "Sup3r$ecret",
		UserType: models.UserTypeClient,
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(registered.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, refreshed.User.ID)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = svc.RefreshToken("not-a-token")
	assert.ErrorContains(t, err, "invalid refresh token")
}

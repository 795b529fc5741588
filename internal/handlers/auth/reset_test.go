package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/velmark/shopapi/internal/apperr"
	"github.com/velmark/shopapi/internal/hash"
	"github.com/velmark/shopapi/internal/models"
)

type fakeMailer struct {
	to       string
	resetURL string
	sends    int
	err      error
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, resetURL string) error {
	m.sends++
	m.to = to
	m.resetURL = resetURL
	return m.err
}

func seedUser(t *testing.T, h *AuthHandler, email, password string) *models.User {
	t.Helper()
	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)
	user := &models.User{
		Email:        email,
		Name:         "A",
		PasswordHash: pwHash,
		Permissions:  []models.Permission{models.PermissionUser},
	}
	require.NoError(t, h.DB.Create(user).Error)
	return user
}

func TestRequestResetIssuesToken(t *testing.T) {
	h := newHandler(t)
	mailer := &fakeMailer{}
	h.Mailer = mailer
	e := echo.New()

	seedUser(t, h, "user@shop.com", "original")

	c, _ := postJSON(t, e, "/request-reset", map[string]string{"email": "User@Shop.com"})
	require.NoError(t, h.RequestReset(c))

	var stored models.User
	require.NoError(t, h.DB.Where("email = ?", "user@shop.com").First(&stored).Error)
	require.NotNil(t, stored.ResetToken)
	require.Len(t, *stored.ResetToken, 40)
	require.NotNil(t, stored.ResetTokenExpiry)
	require.WithinDuration(t, time.Now().Add(time.Hour), *stored.ResetTokenExpiry, time.Minute)

	require.Equal(t, 1, mailer.sends)
	require.Equal(t, "user@shop.com", mailer.to)
	require.Contains(t, mailer.resetURL, *stored.ResetToken)
	require.Contains(t, mailer.resetURL, h.FrontendURL)
}

func TestRequestResetUnknownEmail(t *testing.T) {
	h := newHandler(t)
	h.Mailer = &fakeMailer{}
	e := echo.New()

	c, _ := postJSON(t, e, "/request-reset", map[string]string{"email": "ghost@shop.com"})
	requireKind(t, h.RequestReset(c), apperr.KindNotFound)
}

func TestRequestResetOverwritesPriorToken(t *testing.T) {
	h := newHandler(t)
	h.Mailer = &fakeMailer{}
	e := echo.New()

	seedUser(t, h, "user@shop.com", "original")

	c, _ := postJSON(t, e, "/request-reset", map[string]string{"email": "user@shop.com"})
	require.NoError(t, h.RequestReset(c))
	var first models.User
	require.NoError(t, h.DB.Where("email = ?", "user@shop.com").First(&first).Error)

	c2, _ := postJSON(t, e, "/request-reset", map[string]string{"email": "user@shop.com"})
	require.NoError(t, h.RequestReset(c2))
	var second models.User
	require.NoError(t, h.DB.Where("email = ?", "user@shop.com").First(&second).Error)

	require.NotEqual(t, *first.ResetToken, *second.ResetToken)

	// The overwritten token no longer redeems.
	c3, _ := postJSON(t, e, "/reset-password", map[string]string{
		"resetToken": *first.ResetToken, "password": "newpass1", "confirmPassword": "newpass1",
	})
	requireKind(t, h.ResetPassword(c3), apperr.KindAuthentication)
}

func TestRequestResetMailFailureKeepsToken(t *testing.T) {
	h := newHandler(t)
	h.Mailer = &fakeMailer{err: errors.New("smtp down")}
	e := echo.New()

	seedUser(t, h, "user@shop.com", "original")

	c, _ := postJSON(t, e, "/request-reset", map[string]string{"email": "user@shop.com"})
	require.NoError(t, h.RequestReset(c))

	var stored models.User
	require.NoError(t, h.DB.Where("email = ?", "user@shop.com").First(&stored).Error)
	require.NotNil(t, stored.ResetToken)
}

func TestResetPasswordHappyPath(t *testing.T) {
	h := newHandler(t)
	h.Mailer = &fakeMailer{}
	e := echo.New()

	seedUser(t, h, "user@shop.com", "original")
	c, _ := postJSON(t, e, "/request-reset", map[string]string{"email": "user@shop.com"})
	require.NoError(t, h.RequestReset(c))

	var withToken models.User
	require.NoError(t, h.DB.Where("email = ?", "user@shop.com").First(&withToken).Error)
	token := *withToken.ResetToken

	c2, rec := postJSON(t, e, "/reset-password", map[string]string{
		"resetToken": token, "password": "newpass1", "confirmPassword": "newpass1",
	})
	require.NoError(t, h.ResetPassword(c2))
	sessionCookie(t, rec)

	var after models.User
	require.NoError(t, h.DB.Where("email = ?", "user@shop.com").First(&after).Error)
	require.True(t, hash.CheckPassword(after.PasswordHash, "newpass1"))
	require.Nil(t, after.ResetToken)
	require.Nil(t, after.ResetTokenExpiry)

	// Single use: the same token string can never select a user again.
	c3, _ := postJSON(t, e, "/reset-password", map[string]string{
		"resetToken": token, "password": "another1", "confirmPassword": "another1",
	})
	requireKind(t, h.ResetPassword(c3), apperr.KindAuthentication)
}

func TestResetPasswordMismatchedConfirmation(t *testing.T) {
	h := newHandler(t)
	e := echo.New()

	c, _ := postJSON(t, e, "/reset-password", map[string]string{
		"resetToken": "whatever", "password": "one", "confirmPassword": "two",
	})
	requireKind(t, h.ResetPassword(c), apperr.KindValidation)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	h := newHandler(t)
	e := echo.New()

	user := seedUser(t, h, "user@shop.com", "original")
	token := "a1b2c3d4e5f60718293a4b5c6d7e8f9012345678"
	past := time.Now().Add(-time.Minute)
	require.NoError(t, h.DB.Model(user).Updates(map[string]any{
		"reset_token":        token,
		"reset_token_expiry": past,
	}).Error)

	c, _ := postJSON(t, e, "/reset-password", map[string]string{
		"resetToken": token, "password": "newpass1", "confirmPassword": "newpass1",
	})
	requireKind(t, h.ResetPassword(c), apperr.KindAuthentication)

	var after models.User
	require.NoError(t, h.DB.Where("email = ?", "user@shop.com").First(&after).Error)
	require.True(t, hash.CheckPassword(after.PasswordHash, "original"), "password must be unchanged")
}

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmark/shopapi/internal/apperr"
	"github.com/velmark/shopapi/internal/hash"
	"github.com/velmark/shopapi/internal/logging"
	"github.com/velmark/shopapi/internal/models"
)

const resetTokenTTL = time.Hour

func newResetToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// RequestReset issues a fresh single-use reset token, overwriting any prior
// one, and mails the reset link. A failed send is logged but does not undo the
// stored token: the request is retryable and the token is unusable without
// the email reaching its owner.
func (h *AuthHandler) RequestReset(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "request_reset")

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}

	email := NormalizeEmail(req.Email)

	var user models.User
	if err := h.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("no such user found for email " + email)
		}
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	expiry := time.Now().Add(resetTokenTTL)

	if err := h.DB.Model(&user).Updates(map[string]any{
		"reset_token":        token,
		"reset_token_expiry": expiry,
	}).Error; err != nil {
		return err
	}

	resetURL := h.FrontendURL + "/reset?resetToken=" + token
	if err := h.Mailer.SendPasswordReset(ctx, user.Email, resetURL); err != nil {
		l.Error("reset mail send failed", "userID", user.ID, "error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "check your email for a reset link"})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req struct {
		ResetToken      string `json:"resetToken"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}

	if req.Password == "" || req.Password != req.ConfirmPassword {
		return apperr.Validation("passwords do not match")
	}

	var user models.User
	err := h.DB.
		Where("reset_token = ? AND reset_token_expiry >= ?", req.ResetToken, time.Now()).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Authentication("this token is either invalid or expired")
		}
		return err
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return err
	}

	// Clearing both columns makes the token single-use: the same string can
	// never select a user again.
	if err := h.DB.Model(&user).Updates(map[string]any{
		"password_hash":      pwHash,
		"reset_token":        nil,
		"reset_token_expiry": nil,
	}).Error; err != nil {
		return err
	}

	if err := h.setSession(c, user.ID); err != nil {
		return err
	}

	h.publish(c, map[string]any{
		"type":   "password_reset",
		"userID": user.ID,
	})

	return c.JSON(http.StatusOK, user)
}

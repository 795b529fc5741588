package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmark/shopapi/internal/apperr"
	"github.com/velmark/shopapi/internal/hash"
	"github.com/velmark/shopapi/internal/logging"
	"github.com/velmark/shopapi/internal/mail"
	"github.com/velmark/shopapi/internal/models"
	"github.com/velmark/shopapi/internal/mykafka"
	"github.com/velmark/shopapi/internal/session"
)

type AuthHandler struct {
	DB            *gorm.DB
	SessionSecret []byte
	Producer      *mykafka.Producer
	Mailer        mail.Mailer
	FrontendURL   string
}

func (h *AuthHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *AuthHandler) setSession(c echo.Context, userID uint) error {
	token, err := session.Sign(userID, h.SessionSecret)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}
	c.SetCookie(session.Cookie(token))
	return nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *AuthHandler) Signup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "signup")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}

	email := NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return apperr.Validation("email and password are required")
	}

	var existing models.User
	err := h.DB.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return apperr.Conflict("email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("signup_error", "reason", "cannot hash the password", "error", err)
		return err
	}

	user := models.User{
		Email:        email,
		Name:         req.Name,
		PasswordHash: pwHash,
		Permissions:  []models.Permission{models.PermissionUser},
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return err
	}

	if err := h.setSession(c, user.ID); err != nil {
		return err
	}

	h.publish(c, map[string]any{
		"type":   "user_signed_up",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) Signin(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}

	var user models.User
	if err := h.DB.Where("email = ?", NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Authentication("no such user found for email " + NormalizeEmail(req.Email))
		}
		return err
	}

	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return apperr.Authentication("invalid credentials")
	}

	if err := h.setSession(c, user.ID); err != nil {
		return err
	}

	h.publish(c, map[string]any{
		"type":   "user_signed_in",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusOK, user)
}

// Signout clears the cookie unconditionally; it has no precondition on being
// signed in.
func (h *AuthHandler) Signout(c echo.Context) error {
	c.SetCookie(session.ExpiredCookie())
	return c.JSON(http.StatusOK, echo.Map{"message": "goodbye"})
}

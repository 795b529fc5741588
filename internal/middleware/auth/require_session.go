package auth

import (
	"errors"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmark/shopapi/internal/apperr"
	"github.com/velmark/shopapi/internal/models"
	"github.com/velmark/shopapi/internal/session"
)

const callerKey = "caller"

type SessionMiddleware struct {
	DB     *gorm.DB
	Secret []byte
}

// RequireSession verifies the session cookie and loads the caller's user row
// into the request context. Built fresh per request; nothing is cached across
// requests.
func (m *SessionMiddleware) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(session.CookieName)
		if err != nil || cookie.Value == "" {
			return apperr.Authentication("you must be signed in")
		}

		userID, err := session.Parse(cookie.Value, m.Secret)
		if err != nil {
			return apperr.Authentication("invalid session token")
		}

		var user models.User
		if err := m.DB.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Authentication("you must be signed in")
			}
			return err
		}

		c.Set(callerKey, &user)
		return next(c)
	}
}

// Caller returns the authenticated user placed in the context by
// RequireSession.
func Caller(c echo.Context) (*models.User, error) {
	user, ok := c.Get(callerKey).(*models.User)
	if !ok || user == nil {
		return nil, apperr.Authentication("you must be signed in")
	}
	return user, nil
}

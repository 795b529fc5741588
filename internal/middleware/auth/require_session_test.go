package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/velmark/shopapi/internal/apperr"
	"github.com/velmark/shopapi/internal/models"
	"github.com/velmark/shopapi/internal/session"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func TestRequireSessionLoadsCaller(t *testing.T) {
	db := newTestDB(t)
	secret := []byte("test-secret")
	m := &SessionMiddleware{DB: db, Secret: secret}
	e := echo.New()

	user := models.User{Email: "user@shop.com", Name: "A", PasswordHash: "x",
		Permissions: []models.Permission{models.PermissionUser}}
	require.NoError(t, db.Create(&user).Error)

	token, err := session.Sign(user.ID, secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(session.Cookie(token))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := m.RequireSession(func(c echo.Context) error {
		caller, err := Caller(c)
		require.NoError(t, err)
		require.Equal(t, user.ID, caller.ID)
		require.Equal(t, "user@shop.com", caller.Email)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireSessionMissingCookie(t *testing.T) {
	m := &SessionMiddleware{DB: newTestDB(t), Secret: []byte("test-secret")}
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := m.RequireSession(func(c echo.Context) error { return nil })
	err := handler(c)
	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, apperr.KindAuthentication, kind)
}

func TestRequireSessionTamperedToken(t *testing.T) {
	db := newTestDB(t)
	m := &SessionMiddleware{DB: db, Secret: []byte("test-secret")}
	e := echo.New()

	token, err := session.Sign(1, []byte("other-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(session.Cookie(token))
	c := e.NewContext(req, httptest.NewRecorder())

	handler := m.RequireSession(func(c echo.Context) error { return nil })
	kind, ok := apperr.KindOf(handler(c))
	require.True(t, ok)
	require.Equal(t, apperr.KindAuthentication, kind)
}

func TestRequireSessionDeletedUser(t *testing.T) {
	db := newTestDB(t)
	secret := []byte("test-secret")
	m := &SessionMiddleware{DB: db, Secret: secret}
	e := echo.New()

	token, err := session.Sign(42, secret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(session.Cookie(token))
	c := e.NewContext(req, httptest.NewRecorder())

	handler := m.RequireSession(func(c echo.Context) error { return nil })
	kind, ok := apperr.KindOf(handler(c))
	require.True(t, ok)
	require.Equal(t, apperr.KindAuthentication, kind)
}

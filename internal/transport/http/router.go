package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/velmark/shopapi/internal/apperr"
	"github.com/velmark/shopapi/internal/handlers/admin"
	"github.com/velmark/shopapi/internal/handlers/auth"
	"github.com/velmark/shopapi/internal/handlers/cart"
	"github.com/velmark/shopapi/internal/handlers/checkout"
	"github.com/velmark/shopapi/internal/handlers/item"
	"github.com/velmark/shopapi/internal/handlers/search"
	"github.com/velmark/shopapi/internal/logging"
	mwauth "github.com/velmark/shopapi/internal/middleware/auth"
)

type Deps struct {
	AuthHandler     *auth.AuthHandler
	ItemHandler     *item.ItemHandler
	CartHandler     *cart.CartHandler
	CheckoutHandler *checkout.CheckoutHandler
	AdminHandler    *admin.AdminHandler
	SearchHandler   *search.SearchHandler
	Session         *mwauth.SessionMiddleware
}

// ErrorHandler maps application errors to a stable {"error": kind, "message"}
// body. Anything unrecognized becomes an opaque 500; store and gateway
// internals are logged, never echoed to the caller.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		_ = c.JSON(ae.HTTPStatus(), echo.Map{
			"error":   string(ae.Kind),
			"message": ae.Message,
		})
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, echo.Map{
			"error":   "error",
			"message": he.Message,
		})
		return
	}

	logging.FromContext(c.Request().Context()).Error("unhandled error", "error", err)
	_ = c.JSON(http.StatusInternalServerError, echo.Map{
		"error":   "internal",
		"message": "internal error",
	})
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = ErrorHandler

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/signup", d.AuthHandler.Signup)
	v1.POST("/signin", d.AuthHandler.Signin)
	v1.POST("/signout", d.AuthHandler.Signout)
	v1.POST("/request-reset", d.AuthHandler.RequestReset)
	v1.POST("/reset-password", d.AuthHandler.ResetPassword)
	v1.GET("/search", d.SearchHandler.Search)

	items := v1.Group("/items", d.Session.RequireSession)
	items.POST("", d.ItemHandler.CreateItem)
	items.PATCH("/:id", d.ItemHandler.UpdateItem)
	items.DELETE("/:id", d.ItemHandler.DeleteItem)

	cartGroup := v1.Group("/cart", d.Session.RequireSession)
	cartGroup.GET("", d.CartHandler.GetCart)
	cartGroup.POST("", d.CartHandler.AddToCart)
	cartGroup.DELETE("/:id", d.CartHandler.RemoveFromCart)

	v1.POST("/checkout", d.CheckoutHandler.CreateOrder, d.Session.RequireSession)

	adminGroup := v1.Group("/admin", d.Session.RequireSession)
	adminGroup.GET("/users", d.AdminHandler.ListUsers)
	adminGroup.POST("/users/:id/permissions", d.AdminHandler.UpdatePermissions)
}

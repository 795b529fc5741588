package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmark/shopapi/internal/apperr"
	"github.com/velmark/shopapi/internal/logging"
	mwauth "github.com/velmark/shopapi/internal/middleware/auth"
	"github.com/velmark/shopapi/internal/models"
	"github.com/velmark/shopapi/internal/mykafka"
	"github.com/velmark/shopapi/internal/permission"
)

type AdminHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *AdminHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

// UpdatePermissions replaces the target user's whole permission set. Overwrite,
// not merge.
func (h *AdminHandler) UpdatePermissions(c echo.Context) error {
	caller, err := mwauth.Caller(c)
	if err != nil {
		return err
	}

	if err := permission.Authorize(caller, models.PermissionAdmin, models.PermissionPermissionUpdate); err != nil {
		return err
	}

	targetID, err := strconv.Atoi(c.Param("id"))
	if err != nil || targetID <= 0 {
		return apperr.Validation("invalid user id")
	}

	var req struct {
		Permissions []models.Permission `json:"permissions"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}
	if len(req.Permissions) == 0 {
		return apperr.Validation("permission set must not be empty")
	}
	for _, p := range req.Permissions {
		if !models.ValidPermission(p) {
			return apperr.Validation("unknown permission: " + string(p))
		}
	}

	var target models.User
	if err := h.DB.First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("user not found")
		}
		return err
	}

	target.Permissions = req.Permissions
	if err := h.DB.Model(&target).Update("permissions", target.Permissions).Error; err != nil {
		return err
	}

	h.publish(c, map[string]any{
		"type":        "permissions_updated",
		"userID":      target.ID,
		"updatedBy":   caller.ID,
		"permissions": target.Permissions,
	})

	return c.JSON(http.StatusOK, target)
}

// ListUsers is a pass-through read, but it sits on the admin authorization
// surface and is gated by the same guard as permission updates.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	caller, err := mwauth.Caller(c)
	if err != nil {
		return err
	}

	if err := permission.Authorize(caller, models.PermissionAdmin, models.PermissionPermissionUpdate); err != nil {
		return err
	}

	var users []models.User
	if err := h.DB.Order("id ASC").Find(&users).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, users)
}

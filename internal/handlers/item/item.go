package item

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
	"github.com/velmark/shopapi/internal/es"
	"github.com/velmark/shopapi/internal/logging"
	mwauth "github.com/velmark/shopapi/internal/middleware/auth"
	"github.com/velmark/shopapi/internal/models"
	"github.com/velmark/shopapi/internal/mykafka"
	"github.com/velmark/shopapi/internal/permission"
)

type ItemHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Index    *es.ItemIndex
}

func (h *ItemHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "item_events", fmt.Sprint(event["itemID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *ItemHandler) reindex(c echo.Context, item *models.Item) {
	if err := h.Index.Put(c.Request().Context(), item); err != nil {
		logging.FromContext(c.Request().Context()).Error("es index error", "itemID", item.ID, "error", err)
	}
}

type itemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Price       int64  `json:"price"`
}

func (h *ItemHandler) CreateItem(c echo.Context) error {
	caller, err := mwauth.Caller(c)
	if err != nil {
		return err
	}

	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}
	if req.Title == "" {
		return apperr.Validation("title is required")
	}
	if req.Price <= 0 {
		return apperr.Validation("price must be a positive amount in minor units")
	}

	item := models.Item{
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Price:       req.Price,
		UserID:      caller.ID,
	}
	if err := h.DB.Create(&item).Error; err != nil {
		return err
	}

	h.reindex(c, &item)
	h.publish(c, map[string]any{
		"type":   "item_created",
		"itemID": item.ID,
		"userID": caller.ID,
	})

	return c.JSON(http.StatusCreated, item)
}

func (h *ItemHandler) UpdateItem(c echo.Context) error {
	caller, err := mwauth.Caller(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return apperr.Validation("invalid item id")
	}

	var item models.Item
	if err := h.DB.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("item not found")
		}
		return err
	}

	if item.UserID != caller.ID {
		if err := permission.Authorize(caller, models.PermissionAdmin); err != nil {
			return err
		}
	}

	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}
	if req.Title != "" {
		item.Title = req.Title
	}
	if req.Description != "" {
		item.Description = req.Description
	}
	if req.Image != "" {
		item.Image = req.Image
	}
	if req.Price != 0 {
		if req.Price < 0 {
			return apperr.Validation("price must be a positive amount in minor units")
		}
		item.Price = req.Price
	}

	// Ownership never moves on update.
	if err := h.DB.Save(&item).Error; err != nil {
		return err
	}

	h.reindex(c, &item)
	h.publish(c, map[string]any{
		"type":   "item_updated",
		"itemID": item.ID,
		"userID": caller.ID,
	})

	return c.JSON(http.StatusOK, item)
}

func (h *ItemHandler) DeleteItem(c echo.Context) error {
	caller, err := mwauth.Caller(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return apperr.Validation("invalid item id")
	}

	var item models.Item
	if err := h.DB.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("item not found")
		}
		return err
	}

	if item.UserID != caller.ID {
		if err := permission.Authorize(caller, models.PermissionAdmin, models.PermissionItemDelete); err != nil {
			return err
		}
	}

	if err := h.DB.Delete(&item).Error; err != nil {
		return err
	}

	if err := h.Index.Delete(c.Request().Context(), item.ID); err != nil {
		logging.FromContext(c.Request().Context()).Error("es delete error", "itemID", item.ID, "error", err)
	}
	h.publish(c, map[string]any{
		"type":   "item_deleted",
		"itemID": item.ID,
		"userID": caller.ID,
	})

	return c.JSON(http.StatusOK, item)
}

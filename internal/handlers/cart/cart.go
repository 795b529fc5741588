package cart

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
)

type CartHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

// errLineExists marks an insert that lost to the unique (user_id, item_id)
// index; the caller retries with the increment path.
var errLineExists = errors.New("cart line already exists")

func (h *CartHandler) upsertLine(userID, itemID uint, line *models.CartItem) error {
	return h.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CartItem{}).
			Where("user_id = ? AND item_id = ?", userID, itemID).
			Update("quantity", gorm.Expr("quantity + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("user_id = ? AND item_id = ?", userID, itemID).First(line).Error
		}
		if err := tx.Create(line).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errLineExists
			}
			return err
		}
		return nil
	})
}

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	caller, err := mwauth.Caller(c)
	if err != nil {
		return err
	}

	var items []models.CartItem
	if err := h.DB.Preload("Item").Where("user_id = ?", caller.ID).Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, items)
}

// AddToCart increments the caller's line for the item, or inserts a fresh line
// with quantity 1. The update-then-insert runs inside one transaction and the
// (user_id, item_id) unique index backs it, so two concurrent adds can never
// leave two rows.
func (h *CartHandler) AddToCart(c echo.Context) error {
	caller, err := mwauth.Caller(c)
	if err != nil {
		return err
	}

	var req struct {
		ItemID uint `json:"item_id"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}
	if req.ItemID == 0 {
		return apperr.Validation("item_id is required")
	}

	var item models.Item
	if err := h.DB.First(&item, req.ItemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("item not found")
		}
		return err
	}

	line := models.CartItem{
		UserID:   caller.ID,
		ItemID:   req.ItemID,
		Quantity: 1,
	}
	txErr := h.upsertLine(caller.ID, req.ItemID, &line)
	if errors.Is(txErr, errLineExists) {
		// Lost the race with a concurrent first add of the same item: the
		// unique index rejected the insert, so the increment path wins on
		// retry.
		line = models.CartItem{UserID: caller.ID, ItemID: req.ItemID, Quantity: 1}
		txErr = h.upsertLine(caller.ID, req.ItemID, &line)
	}
	if txErr != nil {
		return txErr
	}

	h.publish(c, map[string]any{
		"type":     "cart_item_added",
		"userID":   caller.ID,
		"itemID":   req.ItemID,
		"quantity": line.Quantity,
	})

	line.Item = item
	return c.JSON(http.StatusOK, line)
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	caller, err := mwauth.Caller(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return apperr.Validation("invalid cart item id")
	}

	var line models.CartItem
	if err := h.DB.First(&line, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("cart item not found")
		}
		return err
	}
	if line.UserID != caller.ID {
		return apperr.Authorization("this cart item does not belong to you")
	}

	if err := h.DB.Delete(&line).Error; err != nil {
		return err
	}

	h.publish(c, map[string]any{
		"type":   "cart_item_removed",
		"userID": caller.ID,
		"id":     line.ID,
	})

	return c.NoContent(http.StatusNoContent)
}

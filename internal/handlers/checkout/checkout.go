package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/velmark/shopapi/internal/apperr"
	"github.com/velmark/shopapi/internal/logging"
	mwauth "github.com/velmark/shopapi/internal/middleware/auth"
	"github.com/velmark/shopapi/internal/models"
	"github.com/velmark/shopapi/internal/mykafka"
	"github.com/velmark/shopapi/internal/payment"
)

const currency = "usd"

type CheckoutHandler struct {
	DB       *gorm.DB
	Gateway  payment.Gateway
	Producer *mykafka.Producer
}

func (h *CheckoutHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

// CreateOrder turns the caller's cart into a paid, immutable order.
//
// The order row doubles as the saga record: it is created as "pending" before
// the gateway call, moved to "charged" with the charge reference the moment
// the capture is confirmed, and only reaches "completed" once the snapshot
// rows exist and the cart lines are gone. Any failure after capture leaves a
// row that reconciliation can find by status and charge id.
func (h *CheckoutHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create_order")

	caller, err := mwauth.Caller(c)
	if err != nil {
		return err
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid body")
	}
	if req.Token == "" {
		return apperr.Validation("payment token is required")
	}

	// The total comes from the cart as the store holds it right now, never
	// from anything the client sent.
	var lines []models.CartItem
	if err := h.DB.Preload("Item").Where("user_id = ?", caller.ID).Find(&lines).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return apperr.Validation("your cart is empty")
	}

	var amount int64
	for _, line := range lines {
		amount += line.Item.Price * int64(line.Quantity)
	}

	order := models.Order{
		UserID:         caller.ID,
		Total:          amount,
		Status:         models.OrderStatusPending,
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      time.Now().Unix(),
	}
	if err := h.DB.Create(&order).Error; err != nil {
		return err
	}

	charge, err := h.Gateway.Charge(ctx, payment.Request{
		AmountMinor:    amount,
		Currency:       currency,
		Token:          req.Token,
		IdempotencyKey: order.IdempotencyKey,
	})
	if err != nil {
		status := models.OrderStatusFailed
		if errors.Is(err, payment.ErrAmbiguousOutcome) {
			status = models.OrderStatusChargeAmbiguous
			l.Error("charge outcome unknown", "orderID", order.ID, "idempotencyKey", order.IdempotencyKey, "error", err)
		}
		if dbErr := h.DB.Model(&order).Update("status", status).Error; dbErr != nil {
			l.Error("order status not recorded", "orderID", order.ID, "status", status, "error", dbErr)
		}
		if status == models.OrderStatusChargeAmbiguous {
			return apperr.Ambiguous("payment outcome could not be determined, the order needs review", err)
		}
		return apperr.External("payment failed, your cart has not been changed", err)
	}

	// Charge reference lands before any dependent rows so a captured payment
	// is never untraceable.
	if err := h.DB.Model(&order).Updates(map[string]any{
		"status":    models.OrderStatusCharged,
		"charge_id": charge.ID,
		"total":     charge.CapturedAmount,
	}).Error; err != nil {
		l.Error("captured charge not recorded", "orderID", order.ID, "chargeID", charge.ID, "error", err)
		return apperr.Ambiguous("payment captured but the order record is incomplete", err)
	}
	order.Status = models.OrderStatusCharged
	order.ChargeID = charge.ID
	order.Total = charge.CapturedAmount

	snapshots := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		snapshots = append(snapshots, models.OrderItem{
			OrderID:     order.ID,
			UserID:      caller.ID,
			ItemID:      line.ItemID,
			Title:       line.Item.Title,
			Description: line.Item.Description,
			Image:       line.Item.Image,
			Price:       line.Item.Price,
			Quantity:    line.Quantity,
		})
	}

	consumed := make([]uint, 0, len(lines))
	for _, line := range lines {
		consumed = append(consumed, line.ID)
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		for i := range snapshots {
			if err := tx.Create(&snapshots[i]).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("id IN ?", consumed).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("status", models.OrderStatusCompleted).Error
	})
	if txErr != nil {
		l.Error("order persistence failed after capture", "orderID", order.ID, "chargeID", charge.ID, "error", txErr)
		return apperr.Ambiguous("payment captured but the order could not be finalized", txErr)
	}

	order.Status = models.OrderStatusCompleted
	order.Items = snapshots

	h.publish(c, map[string]any{
		"type":    "order_created",
		"userID":  caller.ID,
		"orderID": order.ID,
		"total":   order.Total,
	})

	return c.JSON(http.StatusCreated, order)
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	authmw "littlelemon/internal/middleware/auth"
	"littlelemon/internal/models"
	"littlelemon/internal/mykafka"
)

type OrderHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *OrderHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// PlaceOrder converts the caller's whole cart into an immutable order inside
// one transaction: every cart line becomes an order line with the snapshot
// quantity and prices, the total is the sum of line prices, and the cart is
// drained. Either all of it happens or none of it does.
func (h *OrderHandler) PlaceOrder(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Date string `json:"date"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"date": []string{"This field is required."},
		})
	}
	if _, err := time.Parse(time.DateOnly, req.Date); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"date": []string{"Date has wrong format. Use YYYY-MM-DD."},
		})
	}

	var order models.Order
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var lines []models.CartLine
		if err := tx.Where("user_id = ?", userID).Find(&lines).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Cart is empty")
		}

		order = models.Order{
			UserID: userID,
			Status: false,
			Total:  decimal.Zero,
			Date:   req.Date,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		total := decimal.Zero
		for _, line := range lines {
			ol := models.OrderLine{
				OrderID:    order.ID,
				MenuItemID: line.MenuItemID,
				Quantity:   line.Quantity,
				UnitPrice:  line.UnitPrice,
				Price:      line.Price,
			}
			if err := tx.Create(&ol).Error; err != nil {
				return err
			}
			total = total.Add(line.Price)
		}

		if err := tx.Model(&order).Update("total", total).Error; err != nil {
			return err
		}
		order.Total = total

		return tx.Where("user_id = ?", userID).Delete(&models.CartLine{}).Error
	})
	if txErr != nil {
		var he *echo.HTTPError
		if errors.As(txErr, &he) {
			return c.JSON(he.Code, echo.Map{"message": fmt.Sprint(he.Message)})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	h.publish(c, map[string]any{
		"type":    "order_placed",
		"userID":  userID,
		"orderID": order.ID,
		"total":   order.Total,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Order placed successfully"})
}

// ListOrders returns the caller's own orders; there is no cross-user view.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	var list []models.Order
	if err := h.DB.Where("user_id = ?", userID).Order("id ASC").Find(&list).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var order models.Order
	err = h.DB.Preload("Lines").
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, order)
}

// UpdateOrder is the staff transition endpoint (router gates it to Admin and
// Manager): it assigns the delivery crew and flips the status. An admitted
// order is frozen, whatever the caller sends. PUT demands both fields, PATCH
// takes what is present.
func (h *OrderHandler) UpdateOrder(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		DeliveryCrew *uint `json:"delivery_crew"`
		Status       *bool `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if c.Request().Method == http.MethodPut {
		fieldErrs := echo.Map{}
		if req.DeliveryCrew == nil {
			fieldErrs["delivery_crew"] = []string{"This field is required."}
		}
		if req.Status == nil {
			fieldErrs["status"] = []string{"This field is required."}
		}
		if len(fieldErrs) > 0 {
			return c.JSON(http.StatusBadRequest, fieldErrs)
		}
	}

	var order models.Order
	if err := h.DB.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if order.Status {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Order already admitted"})
	}

	if req.DeliveryCrew != nil {
		var crew models.User
		if err := h.DB.Preload("Groups").First(&crew, *req.DeliveryCrew).Error; err != nil || !crew.InGroup(models.GroupDeliveryCrew) {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"delivery_crew": []string{"User is not a member of the delivery crew."},
			})
		}
		order.DeliveryCrewID = req.DeliveryCrew
	}
	if req.Status != nil {
		order.Status = *req.Status
	}

	if err := h.DB.Save(&order).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":    "order_updated",
		"userID":  order.UserID,
		"orderID": order.ID,
		"status":  order.Status,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Order updated successfully"})
}

// DeleteOrder cancels one of the caller's own not-yet-admitted orders; its
// lines go with it.
func (h *OrderHandler) DeleteOrder(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var order models.Order
	err = h.DB.Where("id = ? AND user_id = ?", id, userID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if order.Status {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Order already admitted"})
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(&order).Error
	})
	if txErr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, txErr.Error())
	}

	h.publish(c, map[string]any{
		"type":    "order_deleted",
		"userID":  userID,
		"orderID": order.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Order deleted successfully"})
}

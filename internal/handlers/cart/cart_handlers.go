package cart

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	authmw "littlelemon/internal/middleware/auth"
	"littlelemon/internal/models"
	"littlelemon/internal/mykafka"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *CartHandler) ListCart(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	var lines []models.CartLine
	if err := h.DB.Preload("MenuItem").Where("user_id = ?", userID).Find(&lines).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, lines)
}

// AddToCart merges repeated adds of the same menu item into one line. The
// increment runs as a single UPDATE so concurrent adds for the same
// (user, item) pair serialize in the database instead of losing updates.
// The unit price snapshot taken at first add is never touched again.
func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		MenuItem *uint `json:"menuitem"`
		Quantity *int  `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	fieldErrs := echo.Map{}
	if req.MenuItem == nil {
		fieldErrs["menuitem"] = []string{"This field is required."}
	}
	if req.Quantity == nil {
		fieldErrs["quantity"] = []string{"This field is required."}
	} else if *req.Quantity < 1 {
		fieldErrs["quantity"] = []string{"Ensure this value is greater than or equal to 1."}
	}
	if len(fieldErrs) > 0 {
		return c.JSON(http.StatusBadRequest, fieldErrs)
	}

	var item models.MenuItem
	if err := h.DB.First(&item, *req.MenuItem).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Menu item not found"})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.mergeAdd(userID, &item, uint(*req.Quantity)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":     "cart_item_added",
		"userID":   userID,
		"itemID":   item.ID,
		"quantity": *req.Quantity,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Item added to cart"})
}

func (h *CartHandler) mergeAdd(userID uint, item *models.MenuItem, qty uint) error {
	// Both assignments read the pre-update row, so the new price is
	// (old quantity + qty) * unit_price in one statement.
	res := h.DB.Model(&models.CartLine{}).
		Where("user_id = ? AND menu_item_id = ?", userID, item.ID).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity + ?", qty),
			"price":    gorm.Expr("(quantity + ?) * unit_price", qty),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	line := models.CartLine{
		UserID:     userID,
		MenuItemID: item.ID,
		Quantity:   qty,
		UnitPrice:  item.Price,
		Price:      item.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
	if err := h.DB.Create(&line).Error; err == nil {
		return nil
	}

	// A concurrent first add won the unique index race; fold into its line.
	res = h.DB.Model(&models.CartLine{}).
		Where("user_id = ? AND menu_item_id = ?", userID, item.ID).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity + ?", qty),
			"price":    gorm.Expr("(quantity + ?) * unit_price", qty),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errors.New("cart line vanished during merge")
	}
	return nil
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		MenuItem *uint `json:"menuitem"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.MenuItem == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"menuitem": []string{"This field is required."},
		})
	}

	res := h.DB.Where("user_id = ? AND menu_item_id = ?", userID, *req.MenuItem).
		Delete(&models.CartLine{})
	if res.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Item not found in cart"})
	}

	h.publish(c, map[string]any{
		"type":   "cart_item_removed",
		"userID": userID,
		"itemID": *req.MenuItem,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Item removed from cart"})
}

func (h *CartHandler) GetCartLine(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	line, err := h.ownedLine(c, userID, id)
	if err != nil || line == nil {
		return err
	}
	return c.JSON(http.StatusOK, line)
}

// UpdateCartLine handles PUT and PATCH on a single owned line. PUT requires
// the quantity field, PATCH may omit it. The price is recomputed from the
// stored unit price snapshot, never from the current menu price.
func (h *CartHandler) UpdateCartLine(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Quantity == nil && c.Request().Method == http.MethodPut {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"quantity": []string{"This field is required."},
		})
	}
	if req.Quantity != nil && *req.Quantity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"quantity": []string{"Ensure this value is greater than or equal to 1."},
		})
	}

	line, err := h.ownedLine(c, userID, id)
	if err != nil || line == nil {
		return err
	}

	if req.Quantity != nil {
		line.Quantity = uint(*req.Quantity)
		line.Price = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		if err := h.DB.Save(line).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusOK, line)
}

func (h *CartHandler) DeleteCartLine(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	res := h.DB.Where("id = ? AND user_id = ?", id, userID).Delete(&models.CartLine{})
	if res.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
	}

	h.publish(c, map[string]any{
		"type":   "cart_line_deleted",
		"userID": userID,
		"lineID": id,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Item removed from cart"})
}

// ownedLine looks a line up by (id, owner) in one query so a foreign id is
// indistinguishable from a missing one. On a miss the 404 has already been
// written and both return values are nil.
func (h *CartHandler) ownedLine(c echo.Context, userID uint, id int) (*models.CartLine, error) {
	var line models.CartLine
	err := h.DB.Preload("MenuItem").
		Where("id = ? AND user_id = ?", id, userID).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return &line, nil
}

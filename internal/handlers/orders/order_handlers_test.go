package orders

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"littlelemon/internal/models"
	"littlelemon/internal/testutil"
)

type orderEnv struct {
	DB      *gorm.DB
	E       *echo.Echo
	Handler *OrderHandler
}

func newOrderEnv(t *testing.T) *orderEnv {
	db := testutil.OpenDB(t)
	return &orderEnv{
		DB:      db,
		E:       echo.New(),
		Handler: &OrderHandler{DB: db},
	}
}

func (env *orderEnv) seedMenuItem(t *testing.T, title, price string) *models.MenuItem {
	t.Helper()
	category := models.Category{Slug: "mains-" + title, Title: "Mains"}
	require.NoError(t, env.DB.Create(&category).Error)
	item := models.MenuItem{
		Title:      title,
		Price:      decimal.RequireFromString(price),
		CategoryID: category.ID,
	}
	require.NoError(t, env.DB.Create(&item).Error)
	return &item
}

func (env *orderEnv) seedCartLine(t *testing.T, user *models.User, item *models.MenuItem, qty int) *models.CartLine {
	t.Helper()
	line := models.CartLine{
		UserID:     user.ID,
		MenuItemID: item.ID,
		Quantity:   uint(qty),
		UnitPrice:  item.Price,
		Price:      item.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
	require.NoError(t, env.DB.Create(&line).Error)
	return &line
}

func (env *orderEnv) placeOrder(t *testing.T, user *models.User, date string) *httptest.ResponseRecorder {
	t.Helper()
	rec, c := testutil.JSONRequest(t, env.E, http.MethodPost, "/order", map[string]any{"date": date})
	testutil.ActAs(c, user)
	require.NoError(t, env.Handler.PlaceOrder(c))
	return rec
}

func TestPlaceOrderDrainsCart(t *testing.T) {
	env := newOrderEnv(t)
	user := testutil.NewUser(t, env.DB, "alice", false)
	burger := env.seedMenuItem(t, "Burger", "5.00")
	pizza := env.seedMenuItem(t, "Pizza", "8.00")
	env.seedCartLine(t, user, burger, 2)
	env.seedCartLine(t, user, pizza, 1)

	rec := env.placeOrder(t, user, "2024-01-01")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Order placed successfully")

	var cartCount int64
	require.NoError(t, env.DB.Model(&models.CartLine{}).Where("user_id = ?", user.ID).Count(&cartCount).Error)
	require.EqualValues(t, 0, cartCount)

	var order models.Order
	require.NoError(t, env.DB.Preload("Lines").Where("user_id = ?", user.ID).First(&order).Error)
	require.False(t, order.Status)
	require.Nil(t, order.DeliveryCrewID)
	require.Equal(t, "2024-01-01", order.Date)
	require.True(t, order.Total.Equal(decimal.RequireFromString("18.00")),
		"total %s", order.Total)
	require.Len(t, order.Lines, 2)

	byItem := map[uint]models.OrderLine{}
	for _, l := range order.Lines {
		byItem[l.MenuItemID] = l
	}
	require.Equal(t, uint(2), byItem[burger.ID].Quantity)
	require.True(t, byItem[burger.ID].UnitPrice.Equal(decimal.RequireFromString("5.00")))
	require.True(t, byItem[burger.ID].Price.Equal(decimal.RequireFromString("10.00")))
	require.Equal(t, uint(1), byItem[pizza.ID].Quantity)
	require.True(t, byItem[pizza.ID].Price.Equal(decimal.RequireFromString("8.00")))
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	env := newOrderEnv(t)
	user := testutil.NewUser(t, env.DB, "alice", false)

	rec := env.placeOrder(t, user, "2024-01-01")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Cart is empty")

	var count int64
	require.NoError(t, env.DB.Model(&models.Order{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestPlaceOrderDateValidation(t *testing.T) {
	env := newOrderEnv(t)
	user := testutil.NewUser(t, env.DB, "alice", false)
	burger := env.seedMenuItem(t, "Burger", "5.00")
	env.seedCartLine(t, user, burger, 1)

	rec := env.placeOrder(t, user, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.placeOrder(t, user, "01/01/2024")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderTotalFixedAfterMenuPriceChange(t *testing.T) {
	env := newOrderEnv(t)
	user := testutil.NewUser(t, env.DB, "alice", false)
	burger := env.seedMenuItem(t, "Burger", "5.00")
	env.seedCartLine(t, user, burger, 2)

	rec := env.placeOrder(t, user, "2024-01-01")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, env.DB.Model(burger).Update("price", decimal.RequireFromString("99.00")).Error)

	var order models.Order
	require.NoError(t, env.DB.Preload("Lines").Where("user_id = ?", user.ID).First(&order).Error)
	require.True(t, order.Total.Equal(decimal.RequireFromString("10.00")))
	require.True(t, order.Lines[0].UnitPrice.Equal(decimal.RequireFromString("5.00")))
}

func TestUpdateOrderAdmitsOnce(t *testing.T) {
	env := newOrderEnv(t)
	user := testutil.NewUser(t, env.DB, "alice", false)
	crew := testutil.NewUser(t, env.DB, "carol", false, models.GroupDeliveryCrew)
	manager := testutil.NewUser(t, env.DB, "mia", false, models.GroupManager)
	burger := env.seedMenuItem(t, "Burger", "5.00")
	env.seedCartLine(t, user, burger, 2)

	rec := env.placeOrder(t, user, "2024-01-01")
	require.Equal(t, http.StatusOK, rec.Code)

	var order models.Order
	require.NoError(t, env.DB.Where("user_id = ?", user.ID).First(&order).Error)

	patch := func(body map[string]any) *httptest.ResponseRecorder {
		rec, c := testutil.JSONRequest(t, env.E, http.MethodPatch,
			fmt.Sprintf("/order/%d", order.ID), body)
		testutil.ActAs(c, manager)
		c.SetParamNames("id")
		c.SetParamValues(fmt.Sprint(order.ID))
		require.NoError(t, env.Handler.UpdateOrder(c))
		return rec
	}

	rec2 := patch(map[string]any{"delivery_crew": crew.ID, "status": true})
	require.Equal(t, http.StatusOK, rec2.Code)

	require.NoError(t, env.DB.First(&order, order.ID).Error)
	require.True(t, order.Status)
	require.NotNil(t, order.DeliveryCrewID)
	require.Equal(t, crew.ID, *order.DeliveryCrewID)

	// Admitted orders are frozen, whatever the body says.
	rec3 := patch(map[string]any{"status": false})
	require.Equal(t, http.StatusBadRequest, rec3.Code)
	require.Contains(t, rec3.Body.String(), "Order already admitted")
}

func TestUpdateOrderRejectsNonCrewAssignee(t *testing.T) {
	env := newOrderEnv(t)
	user := testutil.NewUser(t, env.DB, "alice", false)
	notCrew := testutil.NewUser(t, env.DB, "dave", false)
	manager := testutil.NewUser(t, env.DB, "mia", false, models.GroupManager)
	burger := env.seedMenuItem(t, "Burger", "5.00")
	env.seedCartLine(t, user, burger, 1)
	env.placeOrder(t, user, "2024-01-01")

	var order models.Order
	require.NoError(t, env.DB.Where("user_id = ?", user.ID).First(&order).Error)

	rec, c := testutil.JSONRequest(t, env.E, http.MethodPatch,
		fmt.Sprintf("/order/%d", order.ID), map[string]any{"delivery_crew": notCrew.ID})
	testutil.ActAs(c, manager)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(order.ID))
	require.NoError(t, env.Handler.UpdateOrder(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutOrderRequiresAllFields(t *testing.T) {
	env := newOrderEnv(t)
	user := testutil.NewUser(t, env.DB, "alice", false)
	manager := testutil.NewUser(t, env.DB, "mia", false, models.GroupManager)
	burger := env.seedMenuItem(t, "Burger", "5.00")
	env.seedCartLine(t, user, burger, 1)
	env.placeOrder(t, user, "2024-01-01")

	var order models.Order
	require.NoError(t, env.DB.Where("user_id = ?", user.ID).First(&order).Error)

	rec, c := testutil.JSONRequest(t, env.E, http.MethodPut,
		fmt.Sprintf("/order/%d", order.ID), map[string]any{"status": true})
	testutil.ActAs(c, manager)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(order.ID))
	require.NoError(t, env.Handler.UpdateOrder(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var fieldErrs map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fieldErrs))
	require.Contains(t, fieldErrs, "delivery_crew")
}

func TestDeleteAdmittedOrderRejected(t *testing.T) {
	env := newOrderEnv(t)
	user := testutil.NewUser(t, env.DB, "alice", false)

	order := models.Order{
		UserID: user.ID,
		Status: true,
		Total:  decimal.RequireFromString("10.00"),
		Date:   "2024-01-01",
	}
	require.NoError(t, env.DB.Create(&order).Error)

	rec, c := testutil.JSONRequest(t, env.E, http.MethodDelete,
		fmt.Sprintf("/order/%d", order.ID), nil)
	testutil.ActAs(c, user)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(order.ID))
	require.NoError(t, env.Handler.DeleteOrder(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "Order already admitted")
}

func TestDeleteOrderCascadesLines(t *testing.T) {
	env := newOrderEnv(t)
	user := testutil.NewUser(t, env.DB, "alice", false)
	burger := env.seedMenuItem(t, "Burger", "5.00")
	env.seedCartLine(t, user, burger, 1)
	env.placeOrder(t, user, "2024-01-01")

	var order models.Order
	require.NoError(t, env.DB.Where("user_id = ?", user.ID).First(&order).Error)

	rec, c := testutil.JSONRequest(t, env.E, http.MethodDelete,
		fmt.Sprintf("/order/%d", order.ID), nil)
	testutil.ActAs(c, user)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(order.ID))
	require.NoError(t, env.Handler.DeleteOrder(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var lineCount int64
	require.NoError(t, env.DB.Model(&models.OrderLine{}).Where("order_id = ?", order.ID).Count(&lineCount).Error)
	require.EqualValues(t, 0, lineCount)
}

func TestOrderOwnershipScoping(t *testing.T) {
	env := newOrderEnv(t)
	alice := testutil.NewUser(t, env.DB, "alice", false)
	bob := testutil.NewUser(t, env.DB, "bob", false)
	burger := env.seedMenuItem(t, "Burger", "5.00")
	env.seedCartLine(t, alice, burger, 1)
	env.placeOrder(t, alice, "2024-01-01")

	var order models.Order
	require.NoError(t, env.DB.Where("user_id = ?", alice.ID).First(&order).Error)

	rec, c := testutil.JSONRequest(t, env.E, http.MethodGet,
		fmt.Sprintf("/order/%d", order.ID), nil)
	testutil.ActAs(c, bob)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(order.ID))
	require.NoError(t, env.Handler.GetOrder(c))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, c = testutil.JSONRequest(t, env.E, http.MethodDelete,
		fmt.Sprintf("/order/%d", order.ID), nil)
	testutil.ActAs(c, bob)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(order.ID))
	require.NoError(t, env.Handler.DeleteOrder(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrdersScopedToOwner(t *testing.T) {
	env := newOrderEnv(t)
	alice := testutil.NewUser(t, env.DB, "alice", false)
	bob := testutil.NewUser(t, env.DB, "bob", false)
	burger := env.seedMenuItem(t, "Burger", "5.00")

	env.seedCartLine(t, alice, burger, 1)
	env.placeOrder(t, alice, "2024-01-01")
	env.seedCartLine(t, bob, burger, 1)
	env.placeOrder(t, bob, "2024-01-02")

	rec, c := testutil.JSONRequest(t, env.E, http.MethodGet, "/order", nil)
	testutil.ActAs(c, alice)
	require.NoError(t, env.Handler.ListOrders(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var list []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, alice.ID, list[0].UserID)
}

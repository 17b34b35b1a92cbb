package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"littlelemon/internal/models"
	"littlelemon/internal/mykafka"
	"littlelemon/internal/util"
)

type MenuHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	Index    string
}

func (h *MenuHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "menu_events", fmt.Sprint(event["itemID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *MenuHandler) indexItem(c echo.Context, item *models.MenuItem) {
	if h.ES == nil {
		return
	}
	data, err := json.Marshal(item)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	res, err := h.ES.Index(h.Index, bytes.NewReader(data),
		h.ES.Index.WithDocumentID(strconv.Itoa(int(item.ID))),
		h.ES.Index.WithContext(ctx),
	)
	if err != nil {
		c.Logger().Errorf("ES index error: %v", err)
		return
	}
	res.Body.Close()
}

func (h *MenuHandler) deleteIndexed(c echo.Context, id int) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	res, err := h.ES.Delete(h.Index, strconv.Itoa(id), h.ES.Delete.WithContext(ctx))
	if err != nil {
		c.Logger().Errorf("ES delete error: %v", err)
		return
	}
	res.Body.Close()
}

func orderingClause(param string) (string, bool) {
	desc := false
	if len(param) > 0 && param[0] == '-' {
		desc = true
		param = param[1:]
	}
	var col string
	switch param {
	case "price":
		col = "price"
	case "category":
		col = "category_id"
	case "title":
		col = "title"
	default:
		return "", false
	}
	if desc {
		col += " DESC"
	}
	return col, true
}

func (h *MenuHandler) ListMenuItems(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.Model(&models.MenuItem{})
	if cat := c.QueryParam("category"); cat != "" {
		q = q.Where("category_id = ?", parseIntDefault(cat, 0))
	}
	if feat := c.QueryParam("featured"); feat != "" {
		q = q.Where("featured = ?", feat == "true")
	}

	order := "id ASC"
	if clause, ok := orderingClause(c.QueryParam("ordering")); ok {
		order = clause
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var items []models.MenuItem
	if err := q.Preload("Category").Order(order).Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":  page,
			"size":  limit,
			"total": total,
		},
	})
}

func (h *MenuHandler) GetMenuItem(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var item models.MenuItem
	if err := h.DB.Preload("Category").First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, item)
}

type menuItemRequest struct {
	Title      *string          `json:"title"`
	Price      *decimal.Decimal `json:"price"`
	Featured   *bool            `json:"featured"`
	CategoryID *uint            `json:"category_id"`
}

func (h *MenuHandler) CreateMenuItem(c echo.Context) error {
	var req menuItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	fieldErrs := echo.Map{}
	if req.Title == nil || *req.Title == "" {
		fieldErrs["title"] = []string{"This field is required."}
	}
	if req.Price == nil {
		fieldErrs["price"] = []string{"This field is required."}
	} else if !req.Price.IsPositive() {
		fieldErrs["price"] = []string{"Ensure this value is greater than 0."}
	}
	if req.CategoryID == nil {
		fieldErrs["category_id"] = []string{"This field is required."}
	}
	if len(fieldErrs) > 0 {
		return c.JSON(http.StatusBadRequest, fieldErrs)
	}

	var category models.Category
	if err := h.DB.First(&category, *req.CategoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"category_id": []string{"Category does not exist."},
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	item := models.MenuItem{
		Title:      *req.Title,
		Price:      *req.Price,
		CategoryID: category.ID,
	}
	if req.Featured != nil {
		item.Featured = *req.Featured
	}
	if err := h.DB.Create(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	item.Category = &category

	h.indexItem(c, &item)
	h.publish(c, map[string]any{
		"type":   "menu_item_created",
		"itemID": item.ID,
		"title":  item.Title,
	})

	return c.JSON(http.StatusCreated, item)
}

func (h *MenuHandler) PatchMenuItem(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req menuItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var item models.MenuItem
	if err := h.DB.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.Title != nil {
		item.Title = *req.Title
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"price": []string{"Ensure this value is greater than 0."},
			})
		}
		item.Price = *req.Price
	}
	if req.Featured != nil {
		item.Featured = *req.Featured
	}
	if req.CategoryID != nil {
		var category models.Category
		if err := h.DB.First(&category, *req.CategoryID).Error; err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"category_id": []string{"Category does not exist."},
			})
		}
		item.CategoryID = category.ID
	}

	if err := h.DB.Save(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.indexItem(c, &item)
	h.publish(c, map[string]any{
		"type":   "menu_item_updated",
		"itemID": item.ID,
		"title":  item.Title,
	})

	return c.JSON(http.StatusOK, item)
}

func (h *MenuHandler) DeleteMenuItem(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	res := h.DB.Delete(&models.MenuItem{}, id)
	if res.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
	}

	h.deleteIndexed(c, id)
	h.publish(c, map[string]any{
		"type":   "menu_item_deleted",
		"itemID": id,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Menu item deleted"})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

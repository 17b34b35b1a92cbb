package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"littlelemon/internal/models"
)

// GroupHandler administers the named role groups. Every route built from it
// is Admin-gated in the router.
type GroupHandler struct {
	DB *gorm.DB
}

type groupUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *GroupHandler) group(name string) (*models.Group, error) {
	var g models.Group
	if err := h.DB.Where("name = ?", name).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (h *GroupHandler) ListUsers(group string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var users []models.User
		err := h.DB.
			Joins("JOIN user_groups ON user_groups.user_id = users.id").
			Joins("JOIN groups ON groups.id = user_groups.group_id").
			Where("groups.name = ?", group).
			Find(&users).Error
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		out := make([]groupUser, len(users))
		for i, u := range users {
			out[i] = groupUser{ID: u.ID, Username: u.Username, Email: u.Email}
		}
		return c.JSON(http.StatusOK, out)
	}
}

func (h *GroupHandler) AddUser(group string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Username string `json:"username"`
		}
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		if req.Username == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"username": []string{"This field is required."},
			})
		}

		var user models.User
		if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"message": "User not found"})
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		g, err := h.group(group)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if err := h.DB.Model(&user).Association("Groups").Append(g); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusCreated, echo.Map{"message": "User added to group"})
	}
}

func (h *GroupHandler) RemoveUser(group string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}

		var user models.User
		if err := h.DB.Preload("Groups").First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"message": "User not found"})
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if !user.InGroup(group) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "User not found"})
		}

		g, err := h.group(group)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if err := h.DB.Model(&user).Association("Groups").Delete(g); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "User removed from group"})
	}
}

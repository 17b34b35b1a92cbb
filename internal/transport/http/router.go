package httpserver

import (
	"github.com/labstack/echo/v4"

	"littlelemon/internal/handlers"
	"littlelemon/internal/handlers/cart"
	"littlelemon/internal/handlers/orders"
	authmw "littlelemon/internal/middleware/auth"
	"littlelemon/internal/models"
)

type Deps struct {
	Auth            *authmw.Middleware
	AuthHandler     *handlers.AuthHandler
	MenuHandler     *handlers.MenuHandler
	CategoryHandler *handlers.CategoryHandler
	SearchHandler   *handlers.SearchHandler
	GroupHandler    *handlers.GroupHandler
	CartHandler     *cart.CartHandler
	OrderHandler    *orders.OrderHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	e.POST("/users", d.AuthHandler.Register)
	e.POST("/api-token-auth", d.AuthHandler.ObtainToken)
	e.GET("/users/me", d.AuthHandler.Me, d.Auth.RequireAuth)

	admin := d.Auth.RequireRoles(models.RoleAdmin)
	staff := d.Auth.RequireRoles(models.RoleAdmin, models.RoleManager)

	menu := e.Group("/menu-items")
	menu.GET("", d.MenuHandler.ListMenuItems)
	menu.GET("/search", d.SearchHandler.SearchMenuItems)
	menu.GET("/:id", d.MenuHandler.GetMenuItem)
	menu.POST("", d.MenuHandler.CreateMenuItem, d.Auth.RequireAuth, admin)
	menu.PATCH("/:id", d.MenuHandler.PatchMenuItem, d.Auth.RequireAuth, staff)
	menu.DELETE("/:id", d.MenuHandler.DeleteMenuItem, d.Auth.RequireAuth, staff)

	categories := e.Group("/category-items")
	categories.GET("", d.CategoryHandler.ListCategories)
	categories.GET("/:id", d.CategoryHandler.GetCategory)
	categories.POST("", d.CategoryHandler.CreateCategory, d.Auth.RequireAuth, admin)
	categories.PATCH("/:id", d.CategoryHandler.PatchCategory, d.Auth.RequireAuth, staff)
	categories.DELETE("/:id", d.CategoryHandler.DeleteCategory, d.Auth.RequireAuth, staff)

	cartGroup := e.Group("/cart/menu-items", d.Auth.RequireAuth)
	cartGroup.GET("", d.CartHandler.ListCart)
	cartGroup.POST("", d.CartHandler.AddToCart)
	cartGroup.DELETE("", d.CartHandler.RemoveFromCart)
	cartGroup.GET("/:id", d.CartHandler.GetCartLine)
	cartGroup.PUT("/:id", d.CartHandler.UpdateCartLine)
	cartGroup.PATCH("/:id", d.CartHandler.UpdateCartLine)
	cartGroup.DELETE("/:id", d.CartHandler.DeleteCartLine)

	order := e.Group("/order", d.Auth.RequireAuth)
	order.GET("", d.OrderHandler.ListOrders)
	order.POST("", d.OrderHandler.PlaceOrder)
	order.GET("/:id", d.OrderHandler.GetOrder)
	order.PUT("/:id", d.OrderHandler.UpdateOrder, staff)
	order.PATCH("/:id", d.OrderHandler.UpdateOrder, staff)
	order.DELETE("/:id", d.OrderHandler.DeleteOrder)

	groups := e.Group("/groups", d.Auth.RequireAuth, admin)
	groups.GET("/managers/users", d.GroupHandler.ListUsers(models.GroupManager))
	groups.POST("/managers/users", d.GroupHandler.AddUser(models.GroupManager))
	groups.DELETE("/managers/users/:id", d.GroupHandler.RemoveUser(models.GroupManager))
	groups.GET("/delivery-crew/users", d.GroupHandler.ListUsers(models.GroupDeliveryCrew))
	groups.POST("/delivery-crew/users", d.GroupHandler.AddUser(models.GroupDeliveryCrew))
	groups.DELETE("/delivery-crew/users/:id", d.GroupHandler.RemoveUser(models.GroupDeliveryCrew))
}

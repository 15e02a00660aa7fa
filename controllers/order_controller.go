package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/middlewares"
	"ecommerce-backend/models"
	"ecommerce-backend/saga"

	"github.com/gin-gonic/gin"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error)
	UpdateOrder(ctx context.Context, id int64, upd models.OrderUpdate) (*models.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// OrphanLister reports sagas whose compensation failed.
type OrphanLister interface {
	ListFailed(ctx context.Context) ([]saga.Entry, error)
}

type OrderController struct {
	orders  OrderService
	orphans OrphanLister
}

// NewOrderController builds the order handlers; orphans may be nil, in which
// case the orphaned-order report is not mounted.
func NewOrderController(orders OrderService, orphans OrphanLister) *OrderController {
	return &OrderController{orders: orders, orphans: orphans}
}

// Register 挂载订单路由，调用方负责认证中间件
func (oc *OrderController) Register(api *gin.RouterGroup) {
	admin := middlewares.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)

	api.POST("/orders", oc.CreateOrder)
	api.GET("/orders/mine", oc.GetUserOrders)
	if oc.orphans != nil {
		api.GET("/orders/orphaned", admin, oc.GetOrphanedOrders)
	}
	api.GET("/orders/:id", oc.GetOrderDetails)
	api.GET("/orders", admin, oc.GetAllOrders)
	api.PUT("/orders/:id", admin, oc.UpdateOrder)
	api.DELETE("/orders/:id", admin, oc.DeleteOrder)
}

func (oc *OrderController) CreateOrder(c *gin.Context) {
	userID, exists := c.Get(middlewares.ContextUserID)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	uid := userID.(int64)
	req.UserID = &uid
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	order, err := oc.orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (oc *OrderController) GetUserOrders(c *gin.Context) {
	userID, exists := c.Get(middlewares.ContextUserID)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	orders, err := oc.orders.ListOrdersByUser(c.Request.Context(), userID.(int64))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (oc *OrderController) GetAllOrders(c *gin.Context) {
	orders, err := oc.orders.ListOrders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrphanedOrders 列出补偿失败、需要人工修复的订单
func (oc *OrderController) GetOrphanedOrders(c *gin.Context) {
	entries, err := oc.orphans.ListFailed(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []saga.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}

// GetOrderDetails 管理员可查看任意订单，普通用户只能查看自己的订单
func (oc *OrderController) GetOrderDetails(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	order, err := oc.orders.GetOrderByID(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	if !isAdmin(c) {
		uid := c.GetInt64(middlewares.ContextUserID)
		if order.UserID == nil || *order.UserID != uid {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
	}
	c.JSON(http.StatusOK, order)
}

func (oc *OrderController) UpdateOrder(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	var upd models.OrderUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := oc.orders.UpdateOrder(c.Request.Context(), orderID, upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (oc *OrderController) DeleteOrder(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}

	if err := oc.orders.DeleteOrder(c.Request.Context(), orderID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted", "order_id": orderID})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return 0, false
	}
	return id, true
}

func isAdmin(c *gin.Context) bool {
	role := c.GetString(middlewares.ContextRole)
	return role == models.RoleAdmin || role == models.RoleSuperAdmin
}

func respondError(c *gin.Context, err error) {
	var stock *apperrors.InsufficientStockError
	if errors.As(err, &stock) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     err.Error(),
			"product":   stock.ProductName,
			"available": stock.Available,
			"requested": stock.Requested,
		})
		return
	}

	switch apperrors.Kind(err) {
	case "validation":
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case "not_found":
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case "negative_stock", "duplicate_invoice":
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

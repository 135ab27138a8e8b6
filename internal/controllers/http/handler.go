package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dinesync/internal/domain"
	"dinesync/internal/resource"
	"dinesync/internal/services"
)

type Handler struct {
	service *services.OrderService
	log     zerolog.Logger
}

func NewHandler(s *services.OrderService, log zerolog.Logger) *Handler {
	return &Handler{service: s, log: log.With().Str("component", "http").Logger()}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/orders", h.SubmitOrder)
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/:id", h.GetOrder)
	r.PATCH("/orders/:id/status", h.UpdateOrderStatus)
	r.PATCH("/orders/:id/items/:itemID", h.AmendItem)
	r.PATCH("/orders/:id/items/:itemID/status", h.UpdateItemStatus)
	r.GET("/sessions/:id", h.GetSession)
	r.POST("/sessions/:id/close", h.CloseSession)
	r.GET("/tables", h.ListTables)
	r.POST("/tables/:id/reset", h.ResetTable)
}

func (h *Handler) SubmitOrder(c *gin.Context) {
	var req SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	submit := services.SubmitOrder{
		SessionID: req.SessionID,
		TableID:   req.TableID,
		WaiterID:  req.WaiterID,
		DeviceID:  req.DeviceID,
		Discount:  req.Discount,
	}
	for _, line := range req.Items {
		submit.Lines = append(submit.Lines, domain.CartItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Notes:     line.Notes,
		})
	}

	order, session, err := h.service.Submit(c.Request.Context(), submit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"order": order, "session": session}})
}

func (h *Handler) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()

	if sid := c.Query("session_id"); sid != "" {
		id, err := strconv.ParseUint(sid, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid session_id"})
			return
		}
		orders, _, err := h.service.OrdersBySession(ctx, id)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": orders})
		return
	}

	orders, err := h.service.ActiveOrders(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.service.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	old, err := h.service.UpdateOrderStatus(c.Request.Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": StatusEchoResponse{OldStatus: string(old), NewStatus: req.Status}})
}

func (h *Handler) UpdateItemStatus(c *gin.Context) {
	orderID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.pathID(c, "itemID")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	old, err := h.service.UpdateItemStatus(c.Request.Context(), orderID, itemID, domain.ItemStatus(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": StatusEchoResponse{OldStatus: string(old), NewStatus: req.Status}})
}

func (h *Handler) AmendItem(c *gin.Context) {
	orderID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.pathID(c, "itemID")
	if !ok {
		return
	}
	var req AmendItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	order, err := h.service.AmendItem(c.Request.Context(), orderID, itemID, req.Quantity, req.Notes, req.DeviceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (h *Handler) GetSession(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	_, session, err := h.service.OrdersBySession(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": session})
}

func (h *Handler) CloseSession(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req CloseSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	session, err := h.service.CloseSession(c.Request.Context(), id, req.DeviceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": session})
}

func (h *Handler) ListTables(c *gin.Context) {
	tables, err := h.service.ListTables(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tables})
}

func (h *Handler) ResetTable(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	table, err := h.service.ResetTable(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": table})
}

func (h *Handler) pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid " + name})
		return 0, false
	}
	return id, true
}

// fail maps service errors onto the wire convention clients rely on. The
// device-lock conflict keeps its structured code so clients can tell a
// takeover from a generic 403.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDeviceLocked):
		c.JSON(http.StatusForbidden, gin.H{
			"code":    resource.CodeDeviceLocked,
			"message": services.ErrDeviceLocked.Error(),
		})
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrTableNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "message": err.Error()})
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "INVALID_TRANSITION", "message": err.Error()})
	case errors.Is(err, services.ErrSessionClosed):
		c.JSON(http.StatusConflict, gin.H{"code": "SESSION_CLOSED", "message": err.Error()})
	case errors.Is(err, services.ErrItemLocked):
		c.JSON(http.StatusConflict, gin.H{"code": "ITEM_LOCKED", "message": err.Error()})
	case errors.Is(err, services.ErrEmptyOrder):
		c.JSON(http.StatusBadRequest, gin.H{"code": "EMPTY_ORDER", "message": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
	}
}

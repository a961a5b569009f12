package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
	"github.com/mamadbah2/selfcheckout/internal/service/cart"
	"github.com/mamadbah2/selfcheckout/internal/service/checkout"
)

// CartHandler serves the customer kiosk endpoints.
type CartHandler struct {
	sessions *cart.SessionManager
	engine   *cart.Engine
	checkout *checkout.Service
	logger   *zap.Logger
}

// NewCartHandler constructs the HTTP handler adapter.
func NewCartHandler(sessions *cart.SessionManager, engine *cart.Engine, checkoutSvc *checkout.Service, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{sessions: sessions, engine: engine, checkout: checkoutSvc, logger: logger}
}

type addItemRequest struct {
	Barcode string `json:"barcode" binding:"required"`
}

type quantityRequest struct {
	Delta int `json:"delta"`
}

type checkoutResponse struct {
	Sale  models.SaleRecord `json:"sale"`
	Token models.ExitToken  `json:"token"`
}

// Create opens a new cart session.
func (h *CartHandler) Create(c *gin.Context) {
	ct := h.sessions.Create()
	c.JSON(http.StatusCreated, ct.View())
}

// Get returns the cart with its totals.
func (h *CartHandler) Get(c *gin.Context) {
	ct, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ct.View())
}

// Delete abandons the session.
func (h *CartHandler) Delete(c *gin.Context) {
	if _, ok := h.lookup(c); !ok {
		return
	}
	h.sessions.Delete(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// AddItem scans a barcode into the cart.
func (h *CartHandler) AddItem(c *gin.Context) {
	ct, ok := h.lookup(c)
	if !ok {
		return
	}

	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	if _, err := h.engine.AddItem(c.Request.Context(), ct, req.Barcode); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ct.View())
}

// RemoveItem drops a line; unknown lines are ignored.
func (h *CartHandler) RemoveItem(c *gin.Context) {
	ct, ok := h.lookup(c)
	if !ok {
		return
	}
	ct.RemoveItem(c.Param("itemId"))
	c.JSON(http.StatusOK, ct.View())
}

// UpdateQuantity applies a quantity delta to a line.
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	ct, ok := h.lookup(c)
	if !ok {
		return
	}

	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	if _, err := ct.SetQuantity(c.Param("itemId"), req.Delta); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ct.View())
}

// Checkout pays for the cart and returns the sale with its exit token.
func (h *CartHandler) Checkout(c *gin.Context) {
	ct, ok := h.lookup(c)
	if !ok {
		return
	}

	sale, token, err := h.checkout.Checkout(c.Request.Context(), ct)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, checkoutResponse{Sale: sale, Token: token})
}

func (h *CartHandler) lookup(c *gin.Context) (*cart.Cart, bool) {
	ct, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "cart not found"})
		return nil, false
	}
	return ct, true
}

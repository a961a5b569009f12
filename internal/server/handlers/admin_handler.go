package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
	"github.com/mamadbah2/selfcheckout/internal/service/inventory"
	"github.com/mamadbah2/selfcheckout/internal/service/reporting"
	"github.com/mamadbah2/selfcheckout/internal/service/verification"
)

const dateLayout = "2006-01-02"

// AdminHandler serves the staff endpoints.
type AdminHandler struct {
	verification *verification.Service
	inventory    *inventory.Service
	reporting    *reporting.Service
	logger       *zap.Logger
}

// NewAdminHandler constructs the HTTP handler adapter.
func NewAdminHandler(verificationSvc *verification.Service, inventorySvc *inventory.Service, reportingSvc *reporting.Service, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{verification: verificationSvc, inventory: inventorySvc, reporting: reportingSvc, logger: logger}
}

// verifyStatus gives each verification outcome a distinct status; the body always
// carries the Result.
var verifyStatus = map[string]int{
	verification.CodeVerified:    http.StatusOK,
	verification.CodeNotFound:    http.StatusNotFound,
	verification.CodeAlreadyUsed: http.StatusConflict,
	verification.CodeExpired:     http.StatusGone,
}

// VerifyToken consumes an exit token.
func (h *AdminHandler) VerifyToken(c *gin.Context) {
	result, err := h.verification.Verify(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(verifyStatus[result.Code], result)
}

// ActiveTokens lists tokens still awaiting verification.
func (h *AdminHandler) ActiveTokens(c *gin.Context) {
	tokens, err := h.verification.ListActiveTokens(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// ListProducts returns the catalog.
func (h *AdminHandler) ListProducts(c *gin.Context) {
	products, err := h.inventory.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// CreateProduct adds a catalog entry.
func (h *AdminHandler) CreateProduct(c *gin.Context) {
	var req models.Product
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	created, err := h.inventory.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateProduct overwrites a catalog entry.
func (h *AdminHandler) UpdateProduct(c *gin.Context) {
	var req models.Product
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	updated, err := h.inventory.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteProduct removes a catalog entry.
func (h *AdminHandler) DeleteProduct(c *gin.Context) {
	if err := h.inventory.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListSales returns the sales log newest first, or one day's sales with ?date=.
func (h *AdminHandler) ListSales(c *gin.Context) {
	var (
		sales []models.SaleRecord
		err   error
	)
	if raw := c.Query("date"); raw != "" {
		day, parseErr := time.ParseInLocation(dateLayout, raw, h.reporting.Location())
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		sales, err = h.reporting.SalesOn(c.Request.Context(), day)
	} else {
		sales, err = h.reporting.ListSales(c.Request.Context())
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

// Dashboard returns the staff overview.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	dash, err := h.reporting.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// Summary returns the natural-language summary of today's sales.
func (h *AdminHandler) Summary(c *gin.Context) {
	sales, err := h.reporting.Today(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sales_count": len(sales),
		"summary":     h.reporting.Summary(c.Request.Context(), sales),
	})
}

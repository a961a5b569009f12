package router

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/selfcheckout/internal/metrics"
	"github.com/mamadbah2/selfcheckout/internal/server/handlers"
)

// AdminPINHeader carries the staff PIN on /admin routes.
const AdminPINHeader = "X-Admin-PIN"

// Options configures the engine.
type Options struct {
	AdminPIN     string
	AllowOrigins []string
	Metrics      *metrics.Metrics
}

// New wires the Gin engine with required routes and middlewares.
func New(cartHandler *handlers.CartHandler, adminHandler *handlers.AdminHandler, opts Options, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))
	r.Use(metricsMiddleware(opts.Metrics))
	r.Use(cors.New(corsConfig(opts.AllowOrigins)))

	carts := r.Group("/carts")
	carts.POST("", cartHandler.Create)
	carts.GET("/:id", cartHandler.Get)
	carts.DELETE("/:id", cartHandler.Delete)
	carts.POST("/:id/items", cartHandler.AddItem)
	carts.DELETE("/:id/items/:itemId", cartHandler.RemoveItem)
	carts.PATCH("/:id/items/:itemId", cartHandler.UpdateQuantity)
	carts.POST("/:id/checkout", cartHandler.Checkout)

	admin := r.Group("/admin", adminPINMiddleware(opts.AdminPIN, logger))
	admin.POST("/tokens/:id/verify", adminHandler.VerifyToken)
	admin.GET("/tokens/active", adminHandler.ActiveTokens)
	admin.GET("/products", adminHandler.ListProducts)
	admin.POST("/products", adminHandler.CreateProduct)
	admin.PUT("/products/:id", adminHandler.UpdateProduct)
	admin.DELETE("/products/:id", adminHandler.DeleteProduct)
	admin.GET("/sales", adminHandler.ListSales)
	admin.GET("/dashboard", adminHandler.Dashboard)
	admin.GET("/summary", adminHandler.Summary)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", AdminPINHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func adminPINMiddleware(pin string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		got := c.GetHeader(AdminPINHeader)
		if pin == "" || subtle.ConstantTimeCompare([]byte(got), []byte(pin)) != 1 {
			logger.Warn("admin pin rejected", zap.String("path", c.Request.URL.Path), zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing admin PIN"})
			return
		}
		c.Next()
	}
}

func metricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, c.Writer.Status(), time.Since(start))
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

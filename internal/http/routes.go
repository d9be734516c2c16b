package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"movie-membership/internal/database"
	"movie-membership/internal/http/middleware"
)

type RouterConfig struct {
	CORSOrigin string
	JWTSecret  string
}

type Handlers struct {
	Momo  *MomoHandler
	User  *UserHandler
	Plans *PlanHandler
}

func NewRouter(cfg RouterConfig, h Handlers, db database.Service, gatherer prometheus.Gatherer, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		stats := db.Health(c.Request.Context())
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, stats)
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/plans", h.Plans.List)

	// gateway-facing endpoints are authenticated by signature, not by token
	momo := api.Group("/momo")
	momo.POST("/ipn", h.Momo.IPN)
	momo.GET("/return", h.Momo.Return)

	auth := api.Group("/")
	auth.Use(middleware.Auth(cfg.JWTSecret))
	auth.POST("/momo/create", h.Momo.CreateOrder)
	auth.GET("/momo/orders/:orderId", h.Momo.GetOwnOrder)
	auth.GET("/user/subscription", h.User.Subscription)
	auth.GET("/user/payments", h.User.Payments)

	admin := auth.Group("/momo/payment")
	admin.Use(middleware.RequireRole(middleware.RoleAdmin))
	admin.GET("/:orderId", h.Momo.AdminGetOrder)
	admin.PUT("/:orderId", h.Momo.AdminOverrideStatus)

	return r
}

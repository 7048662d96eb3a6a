package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lpr-dashboard/internal/config"
	"lpr-dashboard/internal/http/middleware"
)

// ReadinessCheck is one dependency probed by /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func NewRouter(handler *Handler, cfg *config.Config, log zerolog.Logger, checks ...ReadinessCheck) (*gin.Engine, error) {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	tmpl, err := parseTemplates(cfg.Backend.PublicURL)
	if err != nil {
		return nil, err
	}
	proxy, err := newBackendProxy(cfg.Backend.URL, log)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{"Content-Type", "Content-Disposition", middleware.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))

	router.SetHTMLTemplate(tmpl)
	router.StaticFS("/static", http.FS(staticFiles()))

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		for _, check := range checks {
			if err := check.Check(ctx); err != nil {
				log.Warn().Err(err).Str("check", check.Name).Msg("readiness check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "check": check.Name})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler.Register(router)
	proxy.register(router)

	return router, nil
}

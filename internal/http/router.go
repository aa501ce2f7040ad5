package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nurpe/cnc-service/internal/config"
	"github.com/nurpe/cnc-service/internal/http/middleware"
)

func NewRouter(handler *Handler, authMiddleware gin.HandlerFunc, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.HTTP.AllowedOrigins) == 1 && cfg.HTTP.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.HTTP.AllowedOrigins
	}
	router.Use(cors.New(corsCfg))

	handler.Register(router, authMiddleware)
	return router
}

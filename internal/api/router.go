package api

import (
	"github.com/gin-gonic/gin"

	"flight-alert-service/internal/config"
	"flight-alert-service/internal/logging"
)

func NewRouter(logger *logging.Logger, cfg config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		// Alerts
		api.GET("/alerts/user/:user_id", h.ListAlerts)
		api.GET("/alerts/user/:user_id/dashboard", h.Dashboard)
		api.GET("/alerts/:id", h.GetAlert)
		api.PATCH("/alerts/:id", h.UpdateAlert)

		// Notifications
		api.GET("/notifications/user/:user_id", h.ListNotifications)

		// In-app live push
		api.GET("/ws/:user_id", h.WebSocket)
	}
	return r
}

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"flight-alert-service/internal/db"
	"flight-alert-service/internal/logging"
	"flight-alert-service/internal/models"
	"flight-alert-service/internal/ws"
)

// Auth lives in front of this service; handlers trust the user_id they are
// given.
type Handler struct {
	db       *db.DB
	logger   *logging.Logger
	ws       *ws.Manager
	upgrader websocket.Upgrader
}

func NewHandler(db *db.DB, logger *logging.Logger, wsManager *ws.Manager) *Handler {
	return &Handler{
		db:     db,
		logger: logger,
		ws:     wsManager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ListAlerts(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	alerts, total, err := h.db.ListAlertsByUser(c.Request.Context(), userID,
		c.Query("status"), c.Query("kind"), perPage, (page-1)*perPage)
	if err != nil {
		h.logger.Errorf("Failed to list alerts for user_id %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get alerts"})
		return
	}

	totalPages := (total + perPage - 1) / perPage
	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"meta": gin.H{
			"current_page": page,
			"total_pages":  totalPages,
			"total_count":  total,
			"per_page":     perPage,
		},
	})
}

func (h *Handler) GetAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	alert, err := h.db.GetAlert(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		h.logger.Errorf("Failed to get alert %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get alert"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

type alertActionRequest struct {
	ActionType string `json:"action_type" binding:"required"`
	UserID     int64  `json:"user_id"`
}

// UpdateAlert is the acknowledge/dismiss entry point. Both transitions are
// status-precondition guarded: acting on a non-active alert returns a
// conflict, and a successful acknowledge cancels any scheduled escalation
// for the chain.
func (h *Handler) UpdateAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	var req alertActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	switch req.ActionType {
	case "acknowledge":
		if req.UserID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required to acknowledge"})
			return
		}
		err = h.db.AcknowledgeAlert(c.Request.Context(), id, req.UserID)
	case "dismiss":
		err = h.db.DismissAlert(c.Request.Context(), id)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action type"})
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	case errors.Is(err, models.ErrNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": "Alert is no longer active"})
		return
	default:
		h.logger.Errorf("Failed to %s alert %s: %v", req.ActionType, id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
		return
	}

	alert, err := h.db.GetAlert(c.Request.Context(), id)
	if err != nil {
		h.logger.Errorf("Failed to reload alert %s: %v", id, err)
		c.JSON(http.StatusOK, gin.H{"message": "Alert updated successfully"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert updated successfully", "alert": alert})
}

func (h *Handler) Dashboard(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	summary, err := h.db.DashboardCounts(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorf("Failed to build dashboard for user_id %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build dashboard"})
		return
	}

	recent, _, err := h.db.ListAlertsByUser(c.Request.Context(), userID, "", "", 10, 0)
	if err != nil {
		h.logger.Errorf("Failed to list recent alerts for user_id %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build dashboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary":       summary,
		"recent_alerts": recent,
	})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	notifications, err := h.db.ListNotificationsByUser(c.Request.Context(), userID, perPage, (page-1)*perPage)
	if err != nil {
		h.logger.Errorf("Failed to list notifications for user_id %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// WebSocket attaches a live session for in-app pushes.
func (h *Handler) WebSocket(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("Websocket upgrade failed for user %d: %v", userID, err)
		return
	}

	h.ws.AddConnection(userID, conn)
	go func() {
		defer func() {
			h.ws.RemoveConnection(userID, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

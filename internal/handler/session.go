package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/devcluster/backend/internal/service"
	"github.com/devcluster/backend/internal/service/orchestrator"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

type SessionHandler struct {
	service *service.SessionService
}

func NewSessionHandler(service *service.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Collaborate 创建协作会话并提交后台分析
func (h *SessionHandler) Collaborate(c *gin.Context) {
	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_description is required"})
		return
	}

	session, err := h.service.Create(req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingDescription):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, orchestrator.ErrOrchestratorStopped):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service shutting down"})
		default:
			klog.Errorf("创建会话失败: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id":      session.ID,
		"meeting_id":      session.MeetingID,
		"meeting_room_id": session.MeetingRoomID,
		"meeting_url":     session.MeetingURL,
		"status":          session.Status,
		"created_at":      session.CreatedAt,
	})
}

func (h *SessionHandler) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	sessions, err := h.service.List(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) GetLog(c *gin.Context) {
	logs, err := h.service.GetLog(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("id"), "log": logs})
}

// Delete 删除会话及其日志
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Param("id")); err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, service.ErrSessionActive):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// Export 以项目文档形式导出会话成果
func (h *SessionHandler) Export(c *gin.Context) {
	data, err := h.service.Export(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, data)
}

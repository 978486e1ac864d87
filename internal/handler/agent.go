package handler

import (
	"net/http"

	"github.com/devcluster/backend/internal/service"
	"github.com/gin-gonic/gin"
)

type AgentHandler struct {
	service *service.SessionService
}

func NewAgentHandler(service *service.SessionService) *AgentHandler {
	return &AgentHandler{service: service}
}

// List 返回智能体团队名册
func (h *AgentHandler) List(c *gin.Context) {
	agentList := h.service.Agents()

	items := make([]gin.H, 0, len(agentList))
	for _, agent := range agentList {
		items = append(items, gin.H{
			"name":           agent.Name,
			"role":           agent.Role,
			"specialization": agent.Specialization,
			"avatar":         agent.Avatar,
			"status":         agent.Status(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"agents": items, "count": len(items)})
}

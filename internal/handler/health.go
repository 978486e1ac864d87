package handler

import (
	"net/http"

	"github.com/devcluster/backend/internal/service"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	service *service.SessionService
}

func NewHealthHandler(service *service.SessionService) *HealthHandler {
	return &HealthHandler{service: service}
}

// Check 健康检查，凭据缺失只降级不报错
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Health())
}

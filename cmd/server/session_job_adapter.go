package main

import (
	"time"

	"github.com/devcluster/backend/internal/service/orchestrator"
)

// sessionJobAdapter 将编排器适配为 service.JobEnqueuer 接口
// 避免 service 和 orchestrator 之间的循环依赖
type sessionJobAdapter struct {
	orchestrator *orchestrator.Orchestrator
}

// EnqueueJob 提交会话分析任务
func (a *sessionJobAdapter) EnqueueJob(sessionID string, timeout time.Duration) error {
	return a.orchestrator.EnqueueJob(orchestrator.NewSessionJob(sessionID, timeout))
}

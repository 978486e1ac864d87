package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/devcluster/backend/config"
	"github.com/devcluster/backend/internal/eventbus"
	"github.com/devcluster/backend/internal/handler"
	"github.com/devcluster/backend/internal/pkg/agents"
	"github.com/devcluster/backend/internal/pkg/database"
	"github.com/devcluster/backend/internal/pkg/llm"
	"github.com/devcluster/backend/internal/pkg/meeting"
	"github.com/devcluster/backend/internal/repository"
	"github.com/devcluster/backend/internal/router"
	"github.com/devcluster/backend/internal/service"
	"github.com/devcluster/backend/internal/service/orchestrator"
	"github.com/devcluster/backend/internal/subscriber"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()

	if cfg.Database.Type == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 初始化 Repository
	sessionRepo := repository.NewSessionRepository(db)
	logRepo := repository.NewSessionLogRepository(db)

	// 会话事件总线：执行过程事件由订阅方写入会话日志
	bus := eventbus.NewSessionEventBus()
	subscriber.NewSessionEventSubscriber(logRepo).Register(bus)

	// 初始化 Service
	registry := agents.NewRegistry()
	llmClient := llm.NewClient(cfg)
	meetingClient := meeting.NewClient(cfg)
	sessionService := service.NewSessionService(cfg, sessionRepo, logRepo, registry, llmClient, meetingClient, bus)

	// 初始化全局会话编排器
	// maxWorkers 控制同时分析的会话数，避免打爆 LLM 配额
	if err := orchestrator.InitGlobalOrchestrator(cfg.Session.MaxWorkers, sessionService); err != nil {
		log.Fatalf("Failed to initialize orchestrator: %v", err)
	}
	sessionService.SetEnqueuer(&sessionJobAdapter{orchestrator.GetGlobalOrchestrator()})
	defer orchestrator.ShutdownGlobalOrchestrator()

	// 初始化 Handler
	sessionHandler := handler.NewSessionHandler(sessionService)
	agentHandler := handler.NewAgentHandler(sessionService)
	healthHandler := handler.NewHealthHandler(sessionService)

	// 启动时清理卡住的会话
	cleanupStuckSessions(sessionService, cfg)

	// 设置路由
	r := router.Setup(cfg, sessionHandler, agentHandler, healthHandler)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// cleanupStuckSessions 清理启动前卡住的会话
func cleanupStuckSessions(sessionService *service.SessionService, cfg *config.Config) {
	affected, err := sessionService.CleanupStuckSessions(cfg.Session.StuckTimeout)
	if err != nil {
		klog.V(6).Infof("清理卡住会话失败: %v", err)
		return
	}

	if affected > 0 {
		klog.V(6).Infof("启动时清理了 %d 个卡住的会话", affected)
	}
}

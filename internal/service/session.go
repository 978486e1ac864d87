package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devcluster/backend/config"
	"github.com/devcluster/backend/internal/eventbus"
	"github.com/devcluster/backend/internal/model"
	"github.com/devcluster/backend/internal/pkg/agents"
	"github.com/devcluster/backend/internal/pkg/meeting"
	"github.com/devcluster/backend/internal/repository"
	"github.com/devcluster/backend/internal/service/statemachine"
	"github.com/google/uuid"
	"k8s.io/klog/v2"
)

var (
	ErrMissingDescription = errors.New("project description is required")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionActive      = errors.New("cannot delete session while analysis is running")
)

// TextGenerator 文本生成能力
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Configured() bool
	Providers() []string
}

// RoomCreator 会议房间创建能力（可选依赖）
type RoomCreator interface {
	CreateRoom(ctx context.Context) (*meeting.Room, error)
	Configured() bool
}

// JobEnqueuer 后台会话任务入队能力
type JobEnqueuer interface {
	EnqueueJob(sessionID string, timeout time.Duration) error
}

// SessionService 协作会话服务
// 会话运行期间由其执行方独占修改，终态后只读
type SessionService struct {
	cfg         *config.Config
	sessionRepo repository.SessionRepository
	logRepo     repository.SessionLogRepository
	registry    *agents.Registry
	generator   TextGenerator
	rooms       RoomCreator
	bus         *eventbus.SessionEventBus
	sm          *statemachine.SessionStateMachine
	enqueuer    JobEnqueuer
}

// NewSessionService 创建会话服务
func NewSessionService(
	cfg *config.Config,
	sessionRepo repository.SessionRepository,
	logRepo repository.SessionLogRepository,
	registry *agents.Registry,
	generator TextGenerator,
	rooms RoomCreator,
	bus *eventbus.SessionEventBus,
) *SessionService {
	return &SessionService{
		cfg:         cfg,
		sessionRepo: sessionRepo,
		logRepo:     logRepo,
		registry:    registry,
		generator:   generator,
		rooms:       rooms,
		bus:         bus,
		sm:          statemachine.NewSessionStateMachine(),
	}
}

// SetEnqueuer 注入编排器，避免构造期循环依赖
func (s *SessionService) SetEnqueuer(enqueuer JobEnqueuer) {
	s.enqueuer = enqueuer
}

// CreateSessionRequest 创建协作会话请求
type CreateSessionRequest struct {
	ProjectDescription string `json:"project_description" binding:"required"`
	UserID             string `json:"user_id"`
}

func newID(prefix string) string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return prefix + "_" + hex[:12]
}

// Create 创建会话并提交后台分析
// 会话先以 pending 落库，保证分析完成前即可按 id 查询
func (s *SessionService) Create(req CreateSessionRequest) (*model.Session, error) {
	if strings.TrimSpace(req.ProjectDescription) == "" {
		return nil, ErrMissingDescription
	}

	sessionID := newID("session")

	// 会议房间为可选能力，失败降级为本地房间标识
	roomID := meeting.FallbackRoomID()
	meetingURL := ""
	if s.rooms != nil && s.rooms.Configured() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		room, err := s.rooms.CreateRoom(ctx)
		cancel()
		if err != nil {
			klog.Warningf("会议房间创建失败，使用降级房间: sessionID=%s, err=%v", sessionID, err)
		} else {
			roomID = room.RoomID
			meetingURL = room.MeetingURL
		}
	}

	participants := []string{}
	if req.UserID != "" {
		participants = append(participants, req.UserID)
	}

	session := &model.Session{
		ID:                 sessionID,
		ProjectDescription: req.ProjectDescription,
		MeetingID:          sessionID,
		MeetingRoomID:      roomID,
		MeetingURL:         meetingURL,
		Status:             string(statemachine.SessionStatusPending),
		Participants:       participants,
		Requirements:       []model.Requirement{},
		Artifacts:          []model.CodeArtifact{},
		Analyses:           []model.AgentAnalysis{},
	}

	if err := s.sessionRepo.Save(session); err != nil {
		return nil, fmt.Errorf("保存会话失败: %w", err)
	}

	if err := s.enqueuer.EnqueueJob(sessionID, s.cfg.Session.StuckTimeout); err != nil {
		now := time.Now()
		if updateErr := s.sessionRepo.UpdateStatus(sessionID, string(statemachine.SessionStatusFailed),
			"failed to enqueue analysis", &now); updateErr != nil {
			klog.Errorf("会话入队失败后标记失败也失败: sessionID=%s, err=%v", sessionID, updateErr)
		}
		return nil, err
	}

	klog.V(6).Infof("会话创建成功: sessionID=%s", sessionID)
	return session, nil
}

// agentResult 单个智能体的分析结果，按注册顺序收集
type agentResult struct {
	agent   *agents.Agent
	payload agents.AnalysisPayload
	err     error
}

// ExecuteSession 执行一次会话分析，实现 orchestrator.SessionExecutor
// 状态机：pending -> analyzing -> completed/failed
func (s *SessionService) ExecuteSession(ctx context.Context, sessionID string) error {
	session, err := s.sessionRepo.GetBasic(sessionID)
	if err != nil {
		return fmt.Errorf("加载会话失败: %w", err)
	}

	from := statemachine.SessionStatus(session.Status)
	if err := s.sm.Transition(from, statemachine.SessionStatusAnalyzing, sessionID); err != nil {
		return err
	}
	if err := s.sessionRepo.UpdateStatus(sessionID, string(statemachine.SessionStatusAnalyzing), "", nil); err != nil {
		return s.failSession(sessionID, fmt.Sprintf("进入分析状态失败: %v", err))
	}
	session.Status = string(statemachine.SessionStatusAnalyzing)

	s.publish(ctx, eventbus.SessionEventPhaseStarted, eventbus.SessionEvent{
		SessionID: sessionID,
		Agent:     "system",
		Title:     "Phase 1: AI Analysis Starting",
		Content:   "All agents analyzing project",
	})

	results := s.runAnalysisPhase(ctx, sessionID, session.ProjectDescription)

	if ctx.Err() != nil {
		return s.failSession(sessionID, "analysis canceled before completion")
	}

	s.mergeResults(session, results)

	if s.cfg.Session.CollaborationPhase {
		s.runCollaborationPhase(ctx, sessionID, session.ProjectDescription, results)
	}
	if s.cfg.Session.CodeSharingPhase {
		s.runCodeSharingPhase(ctx, sessionID, results)
	}

	for _, result := range results {
		result.agent.SetStatus(agents.StatusCompleted)
	}

	// 零成功的合并依然是合法的空合并，会话照常完成
	now := time.Now()
	session.Status = string(statemachine.SessionStatusCompleted)
	session.CompletedAt = &now
	if err := s.sessionRepo.Save(session); err != nil {
		return s.failSession(sessionID, fmt.Sprintf("保存分析结果失败: %v", err))
	}

	s.publish(ctx, eventbus.SessionEventStatusChanged, eventbus.SessionEvent{
		SessionID: sessionID,
		Agent:     "system",
		Title:     "Analysis Completed",
		Content: fmt.Sprintf("requirements=%d artifacts=%d",
			len(session.Requirements), len(session.Artifacts)),
	})
	return nil
}

// runAnalysisPhase 并发分析，等待全部结束
// 单个智能体失败只记录在自己的结果里，不影响其他智能体
func (s *SessionService) runAnalysisPhase(ctx context.Context, sessionID, description string) []*agentResult {
	agentList := s.registry.List()
	results := make([]*agentResult, len(agentList))

	var wg sync.WaitGroup
	for i, agent := range agentList {
		wg.Add(1)
		go func(i int, agent *agents.Agent) {
			defer wg.Done()
			agent.SetStatus(agents.StatusAnalyzing)

			result := &agentResult{agent: agent}
			raw, err := s.generator.Generate(ctx, agent.SystemPrompt,
				agents.BuildAnalysisPrompt(agent, description))
			if err != nil {
				result.err = err
			} else {
				result.payload = agents.ParseAnalysis(raw)
			}
			results[i] = result
		}(i, agent)
	}
	wg.Wait()

	for _, result := range results {
		if result.err != nil {
			klog.Errorf("智能体分析失败: sessionID=%s, agent=%s, err=%v",
				sessionID, result.agent.Name, result.err)
			s.publish(ctx, eventbus.SessionEventAgentError, eventbus.SessionEvent{
				SessionID: sessionID,
				Agent:     result.agent.Name,
				Title:     "Analysis Error",
				Content:   result.err.Error(),
			})
			continue
		}
		s.publish(ctx, eventbus.SessionEventAgentAnalysis, eventbus.SessionEvent{
			SessionID: sessionID,
			Agent:     result.agent.Name,
			Title:     "AI Analysis",
			Content:   summarize(result.payload.Analysis),
		})
	}
	return results
}

// mergeResults 按注册顺序合并结果，保证确定性
// 字段不合法的条目直接丢弃，不报错
func (s *SessionService) mergeResults(session *model.Session, results []*agentResult) {
	now := time.Now()
	for _, result := range results {
		analysis := model.AgentAnalysis{
			SessionID: session.ID,
			AgentName: result.agent.Name,
			AgentRole: result.agent.Role,
			CreatedAt: now,
		}

		if result.err != nil {
			analysis.Success = false
			analysis.ErrorMsg = result.err.Error()
			analysis.Recommendations = []string{}
			analysis.Concerns = []string{}
			analysis.NextSteps = []string{}
			session.Analyses = append(session.Analyses, analysis)
			continue
		}

		payload := result.payload
		analysis.Success = true
		analysis.Analysis = payload.Analysis
		analysis.Recommendations = payload.Recommendations
		analysis.Concerns = payload.Concerns
		analysis.NextSteps = payload.NextSteps
		session.Analyses = append(session.Analyses, analysis)

		for _, req := range payload.Requirements {
			if req.Title == "" {
				continue
			}
			dependencies := req.Dependencies
			if dependencies == nil {
				dependencies = []string{}
			}
			session.Requirements = append(session.Requirements, model.Requirement{
				ID:             newID("req"),
				SessionID:      session.ID,
				Title:          req.Title,
				Description:    req.Description,
				Priority:       defaultString(req.Priority, "medium"),
				Category:       result.agent.Role,
				EstimatedHours: req.EstimatedHours,
				Dependencies:   dependencies,
				AssignedAgents: []string{result.agent.Name},
				CreatedAt:      now,
			})
		}

		for _, artifact := range payload.CodeArtifacts {
			if artifact.Filename == "" {
				continue
			}
			dependencies := artifact.Dependencies
			if dependencies == nil {
				dependencies = []string{}
			}
			session.Artifacts = append(session.Artifacts, model.CodeArtifact{
				ID:            newID("artifact"),
				SessionID:     session.ID,
				AgentName:     result.agent.Name,
				Filename:      artifact.Filename,
				Language:      artifact.Language,
				Code:          artifact.Code,
				Description:   artifact.Description,
				Dependencies:  dependencies,
				Tests:         artifact.Tests,
				Documentation: artifact.Documentation,
				CreatedAt:     now,
			})
		}
	}
}

// runCollaborationPhase 固定搭档间的两两协作，结果只追加日志
func (s *SessionService) runCollaborationPhase(ctx context.Context, sessionID, description string, results []*agentResult) {
	if ctx.Err() != nil {
		return
	}

	s.publish(ctx, eventbus.SessionEventPhaseStarted, eventbus.SessionEvent{
		SessionID: sessionID,
		Agent:     "system",
		Title:     "Phase 2: AI Collaboration",
		Content:   "Agents collaborating on analyses",
	})

	byKind := make(map[agents.Kind]*agentResult, len(results))
	for _, result := range results {
		byKind[result.agent.Kind] = result
	}

	for _, pair := range agents.CollaborationPairs() {
		first, ok := byKind[pair.First]
		if !ok {
			continue
		}
		second, ok := byKind[pair.Second]
		if !ok || second.err != nil {
			continue
		}

		first.agent.SetStatus(agents.StatusCollaborating)
		prompt := agents.BuildCollaborationPrompt(first.agent, second.agent,
			peerAnalysisJSON(second), description)

		response, err := s.generator.Generate(ctx, first.agent.SystemPrompt, prompt)
		if err != nil {
			response = fmt.Sprintf("Collaboration error: %v", err)
		}

		s.publish(ctx, eventbus.SessionEventCollaboration, eventbus.SessionEvent{
			SessionID: sessionID,
			Agent:     first.agent.Name,
			Title:     fmt.Sprintf("Collaboration with %s", second.agent.Name),
			Content:   strings.TrimSpace(response),
		})
	}
}

// runCodeSharingPhase 将分析中附带的代码片段分享到会话日志
func (s *SessionService) runCodeSharingPhase(ctx context.Context, sessionID string, results []*agentResult) {
	if ctx.Err() != nil {
		return
	}

	s.publish(ctx, eventbus.SessionEventPhaseStarted, eventbus.SessionEvent{
		SessionID: sessionID,
		Agent:     "system",
		Title:     "Phase 3: Code Sharing",
		Content:   "Sharing code examples from analyses",
	})

	for _, result := range results {
		if result.err != nil || result.payload.CodeExample == nil || result.payload.CodeExample.Code == "" {
			continue
		}
		result.agent.SetStatus(agents.StatusSharingCode)
		example := result.payload.CodeExample
		s.publish(ctx, eventbus.SessionEventCodeShare, eventbus.SessionEvent{
			SessionID: sessionID,
			Agent:     result.agent.Name,
			Title:     "Code Share",
			Content:   fmt.Sprintf("Shared %s - %s", defaultString(example.Language, "code"), example.Description),
		})
	}
}

// failSession 标记会话失败，返回原因
func (s *SessionService) failSession(sessionID, reason string) error {
	now := time.Now()
	if err := s.sessionRepo.UpdateStatus(sessionID, string(statemachine.SessionStatusFailed), reason, &now); err != nil {
		klog.Errorf("标记会话失败时出错: sessionID=%s, err=%v", sessionID, err)
	}
	s.publish(context.Background(), eventbus.SessionEventStatusChanged, eventbus.SessionEvent{
		SessionID: sessionID,
		Agent:     "system",
		Title:     "Analysis Failed",
		Content:   reason,
	})
	return errors.New(reason)
}

func (s *SessionService) publish(ctx context.Context, eventType eventbus.SessionEventType, event eventbus.SessionEvent) {
	if s.bus == nil {
		return
	}
	event.Type = eventType
	if err := s.bus.Publish(ctx, eventType, event); err != nil {
		klog.Errorf("发布会话事件失败: sessionID=%s, type=%s, err=%v", event.SessionID, eventType, err)
	}
}

// Get 读取完整会话
func (s *SessionService) Get(id string) (*model.Session, error) {
	session, err := s.sessionRepo.Get(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// List 按创建时间倒序列出会话主记录
func (s *SessionService) List(limit int) ([]model.Session, error) {
	return s.sessionRepo.List(limit)
}

// GetLog 读取会话日志
func (s *SessionService) GetLog(id string) ([]model.SessionLog, error) {
	if _, err := s.sessionRepo.GetBasic(id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s.logRepo.GetBySession(id)
}

// ExportData 会话导出结构
type ExportData struct {
	ProjectInfo  map[string]any       `json:"project_info"`
	Requirements []model.Requirement  `json:"requirements"`
	CodeFiles    []model.CodeArtifact `json:"code_files"`
	Deployment   map[string]any       `json:"deployment_info"`
}

// Export 导出会话为项目文档
func (s *SessionService) Export(id string) (*ExportData, error) {
	session, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	return &ExportData{
		ProjectInfo: map[string]any{
			"name":        fmt.Sprintf("Generated Project %s", session.ID),
			"description": session.ProjectDescription,
			"created_at":  session.CreatedAt,
			"session_id":  session.ID,
		},
		Requirements: session.Requirements,
		CodeFiles:    session.Artifacts,
		Deployment: map[string]any{
			"meeting_room_id": session.MeetingRoomID,
			"meeting_url":     session.MeetingURL,
		},
	}, nil
}

// HealthInfo 健康检查数据
type HealthInfo struct {
	Status          string   `json:"status"`
	AgentsAvailable int      `json:"agents_available"`
	ActiveSessions  int64    `json:"active_sessions"`
	Providers       []string `json:"providers"`
	MeetingEnabled  bool     `json:"meeting_enabled"`
}

// Health 汇总健康状态
// 缺失的提供方凭据只降级功能，不影响服务存活
func (s *SessionService) Health() *HealthInfo {
	active, err := s.sessionRepo.CountActive()
	if err != nil {
		klog.Errorf("统计活跃会话失败: %v", err)
	}
	providers := s.generator.Providers()
	if providers == nil {
		providers = []string{}
	}
	return &HealthInfo{
		Status:          "healthy",
		AgentsAvailable: s.registry.Len(),
		ActiveSessions:  active,
		Providers:       providers,
		MeetingEnabled:  s.rooms != nil && s.rooms.Configured(),
	}
}

// Delete 删除会话、子记录和日志
// 分析中的会话不可删除，先取消再删
func (s *SessionService) Delete(id string) error {
	session, err := s.sessionRepo.GetBasic(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	if session.Status == string(statemachine.SessionStatusAnalyzing) {
		return ErrSessionActive
	}

	if err := s.logRepo.DeleteBySession(id); err != nil {
		return fmt.Errorf("删除会话日志失败: %w", err)
	}
	if err := s.sessionRepo.Delete(id); err != nil {
		return fmt.Errorf("删除会话失败: %w", err)
	}
	klog.V(6).Infof("会话已删除: sessionID=%s", id)
	return nil
}

// CleanupStuckSessions 清理卡住的会话
func (s *SessionService) CleanupStuckSessions(timeout time.Duration) (int64, error) {
	return s.sessionRepo.CleanupStuckSessions(timeout)
}

// Agents 返回注册表
func (s *SessionService) Agents() []*agents.Agent {
	return s.registry.List()
}

func summarize(text string) string {
	const maxLen = 100
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxLen {
		return string(runes)
	}
	return string(runes[:maxLen]) + "..."
}

func toIndentedJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		klog.Errorf("JSON序列化失败: %v", err)
		return "{}"
	}
	return string(data)
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// peerAnalysisJSON 搭档分析的 JSON 文本，供协作提示词引用
func peerAnalysisJSON(result *agentResult) string {
	data := map[string]any{
		"analysis":        result.payload.Analysis,
		"recommendations": result.payload.Recommendations,
		"concerns":        result.payload.Concerns,
		"next_steps":      result.payload.NextSteps,
	}
	return toIndentedJSON(data)
}

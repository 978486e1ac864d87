package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/devcluster/backend/config"
	"github.com/devcluster/backend/internal/eventbus"
	"github.com/devcluster/backend/internal/model"
	"github.com/devcluster/backend/internal/pkg/agents"
	"github.com/devcluster/backend/internal/pkg/llm"
	"github.com/devcluster/backend/internal/pkg/meeting"
	"github.com/devcluster/backend/internal/repository"
)

type memSessionRepo struct {
	sessions    map[string]*model.Session
	statusTrail map[string][]string
	saveErr     error
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{
		sessions:    make(map[string]*model.Session),
		statusTrail: make(map[string][]string),
	}
}

func (m *memSessionRepo) Save(session *model.Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *session
	m.sessions[session.ID] = &copied
	m.statusTrail[session.ID] = append(m.statusTrail[session.ID], session.Status)
	return nil
}

func (m *memSessionRepo) Get(id string) (*model.Session, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return session, nil
}

func (m *memSessionRepo) GetBasic(id string) (*model.Session, error) {
	return m.Get(id)
}

func (m *memSessionRepo) List(limit int) ([]model.Session, error) {
	var sessions []model.Session
	for _, s := range m.sessions {
		sessions = append(sessions, *s)
	}
	return sessions, nil
}

func (m *memSessionRepo) UpdateStatus(id, status, errorMsg string, completedAt *time.Time) error {
	session, ok := m.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	session.Status = status
	session.ErrorMsg = errorMsg
	if completedAt != nil {
		session.CompletedAt = completedAt
	}
	m.statusTrail[id] = append(m.statusTrail[id], status)
	return nil
}

func (m *memSessionRepo) CountActive() (int64, error) {
	var count int64
	for _, s := range m.sessions {
		if s.Status == "pending" || s.Status == "analyzing" {
			count++
		}
	}
	return count, nil
}

func (m *memSessionRepo) CleanupStuckSessions(timeout time.Duration) (int64, error) {
	return 0, nil
}

func (m *memSessionRepo) Delete(id string) error {
	delete(m.sessions, id)
	return nil
}

type memLogRepo struct {
	entries         []model.SessionLog
	deletedSessions []string
}

func (m *memLogRepo) Append(entry *model.SessionLog) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memLogRepo) GetBySession(sessionID string) ([]model.SessionLog, error) {
	var logs []model.SessionLog
	for _, entry := range m.entries {
		if entry.SessionID == sessionID {
			logs = append(logs, entry)
		}
	}
	return logs, nil
}

func (m *memLogRepo) DeleteBySession(sessionID string) error {
	kept := m.entries[:0]
	for _, entry := range m.entries {
		if entry.SessionID != sessionID {
			kept = append(kept, entry)
		}
	}
	m.entries = kept
	m.deletedSessions = append(m.deletedSessions, sessionID)
	return nil
}

// fakeGenerator 按智能体系统提示词决定返回结果
type fakeGenerator struct {
	generateFunc func(systemPrompt, userPrompt string) (string, error)
	providers    []string
}

func (f *fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.generateFunc(systemPrompt, userPrompt)
}

func (f *fakeGenerator) Configured() bool {
	return len(f.providers) > 0
}

func (f *fakeGenerator) Providers() []string {
	return f.providers
}

type fakeRooms struct {
	room *meeting.Room
	err  error
}

func (f *fakeRooms) CreateRoom(ctx context.Context) (*meeting.Room, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.room, nil
}

func (f *fakeRooms) Configured() bool {
	return true
}

type fakeEnqueuer struct {
	enqueued []string
	err      error
}

func (f *fakeEnqueuer) EnqueueJob(sessionID string, timeout time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, sessionID)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Session: config.SessionConfig{
			MaxWorkers:   2,
			StuckTimeout: 10 * time.Minute,
		},
	}
}

func newTestService(repo *memSessionRepo, logRepo *memLogRepo, generator *fakeGenerator, cfg *config.Config) *SessionService {
	bus := eventbus.NewSessionEventBus()
	bus.Subscribe(eventbus.SessionEventPhaseStarted, logSink(logRepo))
	bus.Subscribe(eventbus.SessionEventAgentAnalysis, logSink(logRepo))
	bus.Subscribe(eventbus.SessionEventAgentError, logSink(logRepo))
	bus.Subscribe(eventbus.SessionEventCollaboration, logSink(logRepo))
	bus.Subscribe(eventbus.SessionEventCodeShare, logSink(logRepo))
	bus.Subscribe(eventbus.SessionEventStatusChanged, logSink(logRepo))

	svc := NewSessionService(cfg, repo, logRepo, agents.NewRegistry(), generator, nil, bus)
	svc.SetEnqueuer(&fakeEnqueuer{})
	return svc
}

func logSink(logRepo *memLogRepo) eventbus.SessionEventHandler {
	return func(ctx context.Context, event eventbus.SessionEvent) error {
		return logRepo.Append(&model.SessionLog{
			SessionID: event.SessionID,
			Agent:     event.Agent,
			EventType: string(event.Type),
			Content:   event.Content,
		})
	}
}

func validAnalysisJSON(title string) string {
	return `{
		"analysis": "detailed analysis",
		"requirements": [{"title": "` + title + `", "description": "d", "priority": "high", "estimated_hours": 4, "dependencies": []}],
		"code_artifacts": [{"filename": "` + title + `.go", "language": "go", "description": "d", "code": "package main"}],
		"recommendations": ["r1"],
		"concerns": [],
		"next_steps": ["n1"],
		"code_example": {"language": "go", "code": "func main() {}", "description": "entry"}
	}`
}

func TestCreateMissingDescription(t *testing.T) {
	repo := newMemSessionRepo()
	svc := newTestService(repo, &memLogRepo{}, &fakeGenerator{}, testConfig())

	_, err := svc.Create(CreateSessionRequest{ProjectDescription: "   "})
	if !errors.Is(err, ErrMissingDescription) {
		t.Fatalf("expected ErrMissingDescription, got %v", err)
	}
	if len(repo.sessions) != 0 {
		t.Fatalf("no session should be created")
	}
}

func TestCreatePersistsPendingAndEnqueues(t *testing.T) {
	repo := newMemSessionRepo()
	svc := newTestService(repo, &memLogRepo{}, &fakeGenerator{}, testConfig())
	enqueuer := &fakeEnqueuer{}
	svc.SetEnqueuer(enqueuer)

	session, err := svc.Create(CreateSessionRequest{ProjectDescription: "Build a todo app", UserID: "u1"})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if session.Status != "pending" {
		t.Fatalf("expected pending status, got %s", session.Status)
	}
	stored, ok := repo.sessions[session.ID]
	if !ok {
		t.Fatalf("session not persisted before analysis")
	}
	if stored.Status != "pending" {
		t.Fatalf("persisted status must be pending, got %s", stored.Status)
	}
	if len(enqueuer.enqueued) != 1 || enqueuer.enqueued[0] != session.ID {
		t.Fatalf("session not enqueued: %v", enqueuer.enqueued)
	}
	if len(session.Participants) != 1 || session.Participants[0] != "u1" {
		t.Fatalf("unexpected participants: %v", session.Participants)
	}
}

func TestCreateFailsWhenEnqueueFails(t *testing.T) {
	repo := newMemSessionRepo()
	svc := newTestService(repo, &memLogRepo{}, &fakeGenerator{}, testConfig())
	svc.SetEnqueuer(&fakeEnqueuer{err: errors.New("stopped")})

	_, err := svc.Create(CreateSessionRequest{ProjectDescription: "Build a todo app"})
	if err == nil {
		t.Fatalf("expected error")
	}
	// 已落库的会话被标记失败，而不是永远停在 pending
	for _, s := range repo.sessions {
		if s.Status != "failed" {
			t.Fatalf("expected failed session, got %s", s.Status)
		}
	}
}

// TestExecuteSessionZeroProviders 无任何提供方时全部参与者失败，会话仍然完成
func TestExecuteSessionZeroProviders(t *testing.T) {
	repo := newMemSessionRepo()
	generator := &fakeGenerator{
		generateFunc: func(systemPrompt, userPrompt string) (string, error) {
			return "", llm.ErrNoProviderConfigured
		},
	}
	svc := newTestService(repo, &memLogRepo{}, generator, testConfig())

	session, err := svc.Create(CreateSessionRequest{ProjectDescription: "Build a todo app"})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	if err := svc.ExecuteSession(context.Background(), session.ID); err != nil {
		t.Fatalf("execute error: %v", err)
	}

	got := repo.sessions[session.ID]
	if got.Status != "completed" {
		t.Fatalf("zero-provider session must still complete, got %s", got.Status)
	}
	if len(got.Analyses) != 8 {
		t.Fatalf("expected 8 analyses, got %d", len(got.Analyses))
	}
	for _, analysis := range got.Analyses {
		if analysis.Success {
			t.Fatalf("analysis for %s should have failed", analysis.AgentName)
		}
		if !strings.Contains(analysis.ErrorMsg, "no AI provider configured") {
			t.Fatalf("unexpected error message: %s", analysis.ErrorMsg)
		}
	}
	if len(got.Requirements) != 0 || len(got.Artifacts) != 0 {
		t.Fatalf("empty merge expected")
	}
}

// TestExecuteSessionFailureIsolation 单个智能体失败不影响其他智能体的成败
func TestExecuteSessionFailureIsolation(t *testing.T) {
	repo := newMemSessionRepo()
	generator := &fakeGenerator{
		providers: []string{"openrouter"},
		generateFunc: func(systemPrompt, userPrompt string) (string, error) {
			if strings.Contains(systemPrompt, "You are Dev,") {
				return "", &llm.ProviderError{Provider: "openrouter", StatusCode: 500, Body: "boom"}
			}
			return validAnalysisJSON("feature"), nil
		},
	}
	svc := newTestService(repo, &memLogRepo{}, generator, testConfig())

	session, _ := svc.Create(CreateSessionRequest{ProjectDescription: "Build a todo app"})
	if err := svc.ExecuteSession(context.Background(), session.ID); err != nil {
		t.Fatalf("execute error: %v", err)
	}

	got := repo.sessions[session.ID]
	if got.Status != "completed" {
		t.Fatalf("expected completed, got %s", got.Status)
	}

	failed := 0
	for _, analysis := range got.Analyses {
		if analysis.AgentName == "Dev" {
			if analysis.Success {
				t.Fatalf("Dev analysis should fail")
			}
			failed++
			continue
		}
		if !analysis.Success {
			t.Fatalf("analysis for %s should succeed", analysis.AgentName)
		}
	}
	if failed != 1 {
		t.Fatalf("expected exactly one failed analysis")
	}
	// 七个成功者各贡献一条需求和一个工件
	if len(got.Requirements) != 7 || len(got.Artifacts) != 7 {
		t.Fatalf("unexpected merge counts: reqs=%d artifacts=%d", len(got.Requirements), len(got.Artifacts))
	}
}

// TestMergeFollowsRegistrationOrder 合并顺序按注册顺序而非完成顺序
func TestMergeFollowsRegistrationOrder(t *testing.T) {
	repo := newMemSessionRepo()
	generator := &fakeGenerator{
		providers: []string{"openrouter"},
		generateFunc: func(systemPrompt, userPrompt string) (string, error) {
			// 注册表靠前的智能体响应更慢，打乱完成顺序
			if strings.Contains(systemPrompt, "You are Alex,") {
				time.Sleep(30 * time.Millisecond)
			}
			return validAnalysisJSON("feature"), nil
		},
	}
	svc := newTestService(repo, &memLogRepo{}, generator, testConfig())

	session, _ := svc.Create(CreateSessionRequest{ProjectDescription: "Build a todo app"})
	if err := svc.ExecuteSession(context.Background(), session.ID); err != nil {
		t.Fatalf("execute error: %v", err)
	}

	got := repo.sessions[session.ID]
	registry := agents.NewRegistry()
	for i, analysis := range got.Analyses {
		if analysis.AgentName != registry.List()[i].Name {
			t.Fatalf("analysis order differs at %d: got %s want %s",
				i, analysis.AgentName, registry.List()[i].Name)
		}
	}
	for i, req := range got.Requirements {
		if req.AssignedAgents[0] != registry.List()[i].Name {
			t.Fatalf("requirement order differs at %d: %s", i, req.AssignedAgents[0])
		}
	}
}

// TestStatusTransitionsMonotonic 状态只能前进：pending -> analyzing -> completed
func TestStatusTransitionsMonotonic(t *testing.T) {
	repo := newMemSessionRepo()
	generator := &fakeGenerator{
		providers: []string{"openrouter"},
		generateFunc: func(systemPrompt, userPrompt string) (string, error) {
			return validAnalysisJSON("feature"), nil
		},
	}
	svc := newTestService(repo, &memLogRepo{}, generator, testConfig())

	session, _ := svc.Create(CreateSessionRequest{ProjectDescription: "Build a todo app"})
	if err := svc.ExecuteSession(context.Background(), session.ID); err != nil {
		t.Fatalf("execute error: %v", err)
	}

	trail := repo.statusTrail[session.ID]
	want := []string{"pending", "analyzing", "completed"}
	if len(trail) != len(want) {
		t.Fatalf("unexpected status trail: %v", trail)
	}
	for i, status := range want {
		if trail[i] != status {
			t.Fatalf("status trail differs at %d: %v", i, trail)
		}
	}

	// 终态会话不允许再次执行
	if err := svc.ExecuteSession(context.Background(), session.ID); err == nil {
		t.Fatalf("expected rejection of completed session")
	}
}

func TestExecuteSessionCanceled(t *testing.T) {
	repo := newMemSessionRepo()
	generator := &fakeGenerator{
		providers: []string{"openrouter"},
		generateFunc: func(systemPrompt, userPrompt string) (string, error) {
			return validAnalysisJSON("feature"), nil
		},
	}
	svc := newTestService(repo, &memLogRepo{}, generator, testConfig())

	session, _ := svc.Create(CreateSessionRequest{ProjectDescription: "Build a todo app"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.ExecuteSession(ctx, session.ID); err == nil {
		t.Fatalf("expected error for canceled run")
	}

	got := repo.sessions[session.ID]
	if got.Status != "failed" {
		t.Fatalf("canceled session must be failed, got %s", got.Status)
	}
}

// TestCollaborationAndCodeSharingPhases 附加阶段只追加日志，不影响会话状态
func TestCollaborationAndCodeSharingPhases(t *testing.T) {
	repo := newMemSessionRepo()
	logRepo := &memLogRepo{}
	generator := &fakeGenerator{
		providers: []string{"openrouter"},
		generateFunc: func(systemPrompt, userPrompt string) (string, error) {
			if strings.Contains(userPrompt, "Your colleague") {
				return "We should align on the deployment pipeline.", nil
			}
			return validAnalysisJSON("feature"), nil
		},
	}
	cfg := testConfig()
	cfg.Session.CollaborationPhase = true
	cfg.Session.CodeSharingPhase = true
	svc := newTestService(repo, logRepo, generator, cfg)

	session, _ := svc.Create(CreateSessionRequest{ProjectDescription: "Build a todo app"})
	if err := svc.ExecuteSession(context.Background(), session.ID); err != nil {
		t.Fatalf("execute error: %v", err)
	}

	collaborations := 0
	codeShares := 0
	for _, entry := range logRepo.entries {
		switch entry.EventType {
		case string(eventbus.SessionEventCollaboration):
			collaborations++
		case string(eventbus.SessionEventCodeShare):
			codeShares++
		}
	}
	if collaborations != 4 {
		t.Fatalf("expected 4 collaboration entries, got %d", collaborations)
	}
	if codeShares != 8 {
		t.Fatalf("expected 8 code share entries, got %d", codeShares)
	}
	if repo.sessions[session.ID].Status != "completed" {
		t.Fatalf("phases must not change terminal status")
	}
}

// TestCreateWithMeetingRoom 房间创建成功时使用真实房间，失败时降级
func TestCreateWithMeetingRoom(t *testing.T) {
	repo := newMemSessionRepo()
	cfg := testConfig()
	bus := eventbus.NewSessionEventBus()

	rooms := &fakeRooms{room: &meeting.Room{RoomID: "room-123", MeetingURL: "https://meet.example/room-123"}}
	svc := NewSessionService(cfg, repo, &memLogRepo{}, agents.NewRegistry(), &fakeGenerator{}, rooms, bus)
	svc.SetEnqueuer(&fakeEnqueuer{})

	session, err := svc.Create(CreateSessionRequest{ProjectDescription: "Build a todo app"})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if session.MeetingRoomID != "room-123" || session.MeetingURL != "https://meet.example/room-123" {
		t.Fatalf("room not applied: %s %s", session.MeetingRoomID, session.MeetingURL)
	}

	rooms.err = errors.New("videosdk unavailable")
	session, err = svc.Create(CreateSessionRequest{ProjectDescription: "Build a todo app"})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if !strings.HasPrefix(session.MeetingRoomID, "fallback_room_") {
		t.Fatalf("expected fallback room, got %s", session.MeetingRoomID)
	}
}

func TestDeleteSession(t *testing.T) {
	repo := newMemSessionRepo()
	logRepo := &memLogRepo{}
	svc := newTestService(repo, logRepo, &fakeGenerator{}, testConfig())

	session, err := svc.Create(CreateSessionRequest{ProjectDescription: "Build a todo app"})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	if err := svc.Delete(session.ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if _, ok := repo.sessions[session.ID]; ok {
		t.Fatalf("session still present after delete")
	}
	if len(logRepo.deletedSessions) != 1 || logRepo.deletedSessions[0] != session.ID {
		t.Fatalf("session logs not deleted: %v", logRepo.deletedSessions)
	}

	if err := svc.Delete("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteActiveSessionRejected(t *testing.T) {
	repo := newMemSessionRepo()
	svc := newTestService(repo, &memLogRepo{}, &fakeGenerator{}, testConfig())

	session, _ := svc.Create(CreateSessionRequest{ProjectDescription: "Build a todo app"})
	repo.sessions[session.ID].Status = "analyzing"

	if err := svc.Delete(session.ID); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
	if _, ok := repo.sessions[session.ID]; !ok {
		t.Fatalf("active session must not be deleted")
	}
}

func TestGetNotFound(t *testing.T) {
	svc := newTestService(newMemSessionRepo(), &memLogRepo{}, &fakeGenerator{}, testConfig())

	if _, err := svc.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.GetLog("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Export("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	repo := newMemSessionRepo()
	svc := newTestService(repo, &memLogRepo{}, &fakeGenerator{}, testConfig())

	session, _ := svc.Create(CreateSessionRequest{ProjectDescription: "Build a todo app"})
	_ = session

	health := svc.Health()
	if health.Status != "healthy" {
		t.Fatalf("unexpected status: %s", health.Status)
	}
	if health.AgentsAvailable != 8 {
		t.Fatalf("expected 8 agents, got %d", health.AgentsAvailable)
	}
	if health.ActiveSessions != 1 {
		t.Fatalf("expected 1 active session, got %d", health.ActiveSessions)
	}
	if health.Providers == nil {
		t.Fatalf("providers must not be nil")
	}
}

package subscriber

import (
	"context"
	"fmt"

	"github.com/devcluster/backend/internal/eventbus"
	"github.com/devcluster/backend/internal/model"
	"k8s.io/klog/v2"
)

// SessionEventSubscriber 把会话事件落库为日志
type SessionEventSubscriber struct {
	logRepo sessionLogStore
}

type sessionLogStore interface {
	Append(entry *model.SessionLog) error
}

func NewSessionEventSubscriber(logRepo sessionLogStore) *SessionEventSubscriber {
	return &SessionEventSubscriber{logRepo: logRepo}
}

func (s *SessionEventSubscriber) Register(bus *eventbus.SessionEventBus) {
	if bus == nil {
		return
	}
	types := []eventbus.SessionEventType{
		eventbus.SessionEventPhaseStarted,
		eventbus.SessionEventAgentAnalysis,
		eventbus.SessionEventAgentError,
		eventbus.SessionEventCollaboration,
		eventbus.SessionEventCodeShare,
		eventbus.SessionEventStatusChanged,
	}
	for _, eventType := range types {
		bus.Subscribe(eventType, s.handleEvent)
	}
}

func (s *SessionEventSubscriber) handleEvent(ctx context.Context, event eventbus.SessionEvent) error {
	if event.SessionID == "" {
		return fmt.Errorf("会话ID为空")
	}

	entry := &model.SessionLog{
		SessionID: event.SessionID,
		Agent:     event.Agent,
		EventType: string(event.Type),
		Content:   formatContent(event),
	}
	if err := s.logRepo.Append(entry); err != nil {
		klog.Errorf("会话日志写入失败: sessionID=%s, type=%s, err=%v", event.SessionID, event.Type, err)
		return err
	}
	return nil
}

func formatContent(event eventbus.SessionEvent) string {
	if event.Title == "" {
		return event.Content
	}
	if event.Content == "" {
		return event.Title
	}
	return event.Title + ": " + event.Content
}

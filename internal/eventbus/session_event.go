package eventbus

type SessionEventType string

const (
	SessionEventPhaseStarted  SessionEventType = "PhaseStarted"
	SessionEventAgentAnalysis SessionEventType = "AgentAnalysis"
	SessionEventAgentError    SessionEventType = "AgentError"
	SessionEventCollaboration SessionEventType = "Collaboration"
	SessionEventCodeShare     SessionEventType = "CodeShare"
	SessionEventStatusChanged SessionEventType = "StatusChanged"
)

// SessionEvent 会话过程事件，由订阅方落库为日志
type SessionEvent struct {
	Type      SessionEventType
	SessionID string
	Agent     string
	Title     string
	Content   string
}

type SessionEventHandler = Handler[SessionEvent]
type SessionEventBus = Bus[SessionEventType, SessionEvent]

func NewSessionEventBus() *SessionEventBus {
	return NewBus[SessionEventType, SessionEvent]()
}

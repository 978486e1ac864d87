package statemachine

import (
	"fmt"

	"k8s.io/klog/v2"
)

// SessionStatus 定义会话的所有可能状态
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"   // 已创建，等待分析
	SessionStatusAnalyzing SessionStatus = "analyzing" // 智能体分析进行中
	SessionStatusCompleted SessionStatus = "completed" // 分析完成
	SessionStatusFailed    SessionStatus = "failed"    // 编排故障或超时
)

// SessionTransition 定义会话状态迁移
type SessionTransition struct {
	From SessionStatus
	To   SessionStatus
}

// SessionStateMachine 会话状态机
// 状态只能单向推进：pending -> analyzing -> completed/failed
type SessionStateMachine struct {
	allowedTransitions map[SessionTransition]bool
}

// NewSessionStateMachine 创建会话状态机
func NewSessionStateMachine() *SessionStateMachine {
	sm := &SessionStateMachine{
		allowedTransitions: make(map[SessionTransition]bool),
	}

	transitions := []SessionTransition{
		{SessionStatusPending, SessionStatusAnalyzing},
		{SessionStatusAnalyzing, SessionStatusCompleted},
		{SessionStatusAnalyzing, SessionStatusFailed},
		// 分析启动前的编排故障直接失败
		{SessionStatusPending, SessionStatusFailed},
	}

	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}

	return sm
}

// CanTransition 检查状态迁移是否合法
func (sm *SessionStateMachine) CanTransition(from, to SessionStatus) bool {
	if from == to {
		return false // 不允许状态不变
	}
	return sm.allowedTransitions[SessionTransition{From: from, To: to}]
}

// ValidateTransition 验证状态迁移并返回错误
func (sm *SessionStateMachine) ValidateTransition(from, to SessionStatus) error {
	if !sm.CanTransition(from, to) {
		return &InvalidStateTransitionError{
			From: string(from),
			To:   string(to),
		}
	}
	return nil
}

// Transition 执行状态迁移（带日志）
func (sm *SessionStateMachine) Transition(from, to SessionStatus, sessionID string) error {
	if err := sm.ValidateTransition(from, to); err != nil {
		klog.V(6).Infof("会话状态迁移被拒绝: sessionID=%s, %s -> %s, error=%v",
			sessionID, from, to, err)
		return err
	}

	klog.V(6).Infof("会话状态迁移成功: sessionID=%s, %s -> %s", sessionID, from, to)
	return nil
}

// IsTerminal 是否已到终态
func IsTerminal(status SessionStatus) bool {
	return status == SessionStatusCompleted || status == SessionStatusFailed
}

// InvalidStateTransitionError 无效的状态迁移错误
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid session state transition: %s -> %s", e.From, e.To)
}

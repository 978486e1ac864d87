package agents

import (
	"sync"

	"k8s.io/klog/v2"
)

// Kind 智能体类型，封闭枚举
type Kind string

const (
	KindArchitect      Kind = "architect"
	KindDeveloper      Kind = "developer"
	KindDesigner       Kind = "designer"
	KindQAEngineer     Kind = "qa-engineer"
	KindProductManager Kind = "product-manager"
	KindSecurity       Kind = "security-engineer"
	KindDevOps         Kind = "devops-engineer"
	KindTechLead       Kind = "tech-lead"
)

// 智能体展示状态，仅用于 UI，不参与正确性判断
const (
	StatusStandby       = "standby"
	StatusAnalyzing     = "analyzing"
	StatusCollaborating = "collaborating"
	StatusSharingCode   = "sharing_code"
	StatusCompleted     = "completed"
)

// Agent 一个固定角色的智能体
// 除 status 外构造后不再变化
type Agent struct {
	Kind           Kind   `json:"kind"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Specialization string `json:"specialization"`
	Avatar         string `json:"avatar"`
	SystemPrompt   string `json:"-"`

	mu     sync.RWMutex
	status string
}

// SetStatus 更新展示状态
func (a *Agent) SetStatus(status string) {
	a.mu.Lock()
	a.status = status
	a.mu.Unlock()
	klog.V(6).Infof("Agent %s status: %s", a.Name, status)
}

// Status 读取展示状态
func (a *Agent) Status() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// AnalysisPayload 大模型分析响应的结构化字段
type AnalysisPayload struct {
	Analysis        string            `json:"analysis"`
	Requirements    []RequirementSpec `json:"requirements"`
	CodeArtifacts   []ArtifactSpec    `json:"code_artifacts"`
	Recommendations []string          `json:"recommendations"`
	Concerns        []string          `json:"concerns"`
	NextSteps       []string          `json:"next_steps"`
	CodeExample     *CodeExample      `json:"code_example"`
	ParseDegraded   bool              `json:"-"`
}

// RequirementSpec 智能体提出的需求条目
type RequirementSpec struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       string   `json:"priority"`
	Category       string   `json:"category"`
	EstimatedHours int      `json:"estimated_hours"`
	Dependencies   []string `json:"dependencies"`
}

// ArtifactSpec 智能体提出的代码文件
type ArtifactSpec struct {
	Filename      string   `json:"filename"`
	Language      string   `json:"language"`
	Description   string   `json:"description"`
	Code          string   `json:"code"`
	Dependencies  []string `json:"dependencies"`
	Tests         string   `json:"tests"`
	Documentation string   `json:"documentation"`
}

// CodeExample 协作阶段分享的代码片段
type CodeExample struct {
	Language    string `json:"language"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

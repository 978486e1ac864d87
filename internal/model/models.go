package model

import (
	"time"
)

// Session 协作会话
// 一次协作请求对应一个会话，终态后不再修改
type Session struct {
	ID                 string          `json:"id" gorm:"primaryKey;size:64"`
	ProjectDescription string          `json:"project_description" gorm:"type:text;not null"`
	MeetingID          string          `json:"meeting_id" gorm:"size:64"`
	MeetingRoomID      string          `json:"meeting_room_id" gorm:"size:128"`
	MeetingURL         string          `json:"meeting_url" gorm:"size:500"`
	Status             string          `json:"status" gorm:"size:50;default:pending"` // pending, analyzing, completed, failed
	ErrorMsg           string          `json:"error_msg" gorm:"size:1000"`
	Participants       []string        `json:"participants" gorm:"serializer:json"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	CompletedAt        *time.Time      `json:"completed_at"`
	Requirements       []Requirement   `json:"requirements" gorm:"foreignKey:SessionID;references:ID"`
	Artifacts          []CodeArtifact  `json:"artifacts" gorm:"foreignKey:SessionID;references:ID"`
	Analyses           []AgentAnalysis `json:"analyses" gorm:"foreignKey:SessionID;references:ID"`
}

// Requirement 从各智能体分析中合并出的项目需求
type Requirement struct {
	ID             string    `json:"id" gorm:"primaryKey;size:64"`
	SessionID      string    `json:"session_id" gorm:"index;size:64;not null"`
	Title          string    `json:"title" gorm:"size:255;not null"`
	Description    string    `json:"description" gorm:"type:text"`
	Priority       string    `json:"priority" gorm:"size:50"` // high, medium, low
	Category       string    `json:"category" gorm:"size:100"`
	EstimatedHours int       `json:"estimated_hours" gorm:"default:0"`
	Dependencies   []string  `json:"dependencies" gorm:"serializer:json"`
	AssignedAgents []string  `json:"assigned_agents" gorm:"serializer:json"`
	Position       int       `json:"-" gorm:"not null;default:0"` // 合并顺序，读取时按此排序
	CreatedAt      time.Time `json:"created_at"`
}

// CodeArtifact 智能体产出的代码工件
type CodeArtifact struct {
	ID            string    `json:"id" gorm:"primaryKey;size:64"`
	SessionID     string    `json:"session_id" gorm:"index;size:64;not null"`
	AgentName     string    `json:"agent_name" gorm:"size:100"`
	Filename      string    `json:"filename" gorm:"size:255"`
	Language      string    `json:"language" gorm:"size:50"`
	Code          string    `json:"code" gorm:"type:text"`
	Description   string    `json:"description" gorm:"type:text"`
	Dependencies  []string  `json:"dependencies" gorm:"serializer:json"`
	Tests         string    `json:"tests" gorm:"type:text"`
	Documentation string    `json:"documentation" gorm:"type:text"`
	Position      int       `json:"-" gorm:"not null;default:0"` // 合并顺序，读取时按此排序
	CreatedAt     time.Time `json:"created_at"`
}

// AgentAnalysis 单个智能体的一次分析结果
// Success=false 时 ErrorMsg 记录失败原因，其余字段为空
type AgentAnalysis struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	SessionID       string    `json:"session_id" gorm:"index;size:64;not null"`
	AgentName       string    `json:"agent_name" gorm:"size:100;not null"`
	AgentRole       string    `json:"agent_role" gorm:"size:100"`
	Analysis        string    `json:"analysis" gorm:"type:text"`
	Recommendations []string  `json:"recommendations" gorm:"serializer:json"`
	Concerns        []string  `json:"concerns" gorm:"serializer:json"`
	NextSteps       []string  `json:"next_steps" gorm:"serializer:json"`
	Success         bool      `json:"success" gorm:"default:false"`
	ErrorMsg        string    `json:"error_msg" gorm:"size:2000"`
	CreatedAt       time.Time `json:"created_at"`
}

// SessionLog 会话事件日志，仅追加
type SessionLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	SessionID string    `json:"session_id" gorm:"index;size:64;not null"`
	Agent     string    `json:"agent" gorm:"size:100"`
	EventType string    `json:"event_type" gorm:"size:100"`
	Content   string    `json:"content" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

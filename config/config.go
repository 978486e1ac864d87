package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Meeting  MeetingConfig  `yaml:"meeting"`
	Session  SessionConfig  `yaml:"session"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

// LLMConfig 大模型提供方配置
// 优先使用 OpenRouter，其次 Gemini；两者都未配置时分析降级为失败结果
type LLMConfig struct {
	OpenRouterAPIKey string        `yaml:"openrouter_api_key"`
	OpenRouterURL    string        `yaml:"openrouter_url"`
	OpenRouterModel  string        `yaml:"openrouter_model"`
	GeminiAPIKey     string        `yaml:"gemini_api_key"`
	GeminiURL        string        `yaml:"gemini_url"`
	MaxTokens        int           `yaml:"max_tokens"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
}

// MeetingConfig 会议房间服务配置（可选）
type MeetingConfig struct {
	AuthToken string `yaml:"auth_token"`
	APIBase   string `yaml:"api_base"`
}

// SessionConfig 协作会话配置
type SessionConfig struct {
	MaxWorkers         int           `yaml:"max_workers"`         // 同时运行的会话数
	StuckTimeout       time.Duration `yaml:"stuck_timeout"`       // analyzing 超时清理阈值
	CollaborationPhase bool          `yaml:"collaboration_phase"` // 是否执行两两协作阶段
	CodeSharingPhase   bool          `yaml:"code_sharing_phase"`  // 是否执行代码分享阶段
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

func loadConfig() *Config {
	config := &Config{
		Server: ServerConfig{
			Port: "8000",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/collaborative_sessions.db",
		},
		LLM: LLMConfig{
			OpenRouterURL:   "https://openrouter.ai/api/v1",
			OpenRouterModel: "anthropic/claude-3.5-sonnet",
			GeminiURL:       "https://generativelanguage.googleapis.com/v1beta",
			MaxTokens:       4000,
			CallTimeout:     2 * time.Minute,
		},
		Meeting: MeetingConfig{
			APIBase: "https://api.videosdk.live/v2",
		},
		Session: SessionConfig{
			MaxWorkers:         2,
			StuckTimeout:       10 * time.Minute,
			CollaborationPhase: true,
			CodeSharingPhase:   true,
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	// 环境变量优先级高于配置文件
	if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey != "" {
		config.LLM.OpenRouterAPIKey = apiKey
	}
	if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.LLM.GeminiAPIKey = apiKey
	}
	if model := os.Getenv("OPENROUTER_MODEL"); model != "" {
		config.LLM.OpenRouterModel = model
	}
	if token := os.Getenv("VIDEOSDK_AUTH_TOKEN"); token != "" {
		config.Meeting.AuthToken = token
	}

	// 数据库环境变量
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		config.Server.Port = port
	}

	return config
}

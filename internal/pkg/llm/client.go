package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/devcluster/backend/config"
	"k8s.io/klog/v2"
)

// Client 文本生成客户端
// 按静态优先级选择提供方：OpenRouter 优先，其次 Gemini
// 每次调用只尝试一次，不做重试
type Client struct {
	OpenRouterURL    string
	OpenRouterAPIKey string
	OpenRouterModel  string
	GeminiURL        string
	GeminiAPIKey     string
	MaxTokens        int
	CallTimeout      time.Duration
	Client           *http.Client
}

// NewClient 创建文本生成客户端
func NewClient(cfg *config.Config) *Client {
	timeout := cfg.LLM.CallTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		OpenRouterURL:    cfg.LLM.OpenRouterURL,
		OpenRouterAPIKey: cfg.LLM.OpenRouterAPIKey,
		OpenRouterModel:  cfg.LLM.OpenRouterModel,
		GeminiURL:        cfg.LLM.GeminiURL,
		GeminiAPIKey:     cfg.LLM.GeminiAPIKey,
		MaxTokens:        cfg.LLM.MaxTokens,
		CallTimeout:      timeout,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured 是否至少配置了一个提供方
func (c *Client) Configured() bool {
	return c.OpenRouterAPIKey != "" || c.GeminiAPIKey != ""
}

// Providers 当前可用的提供方列表，按优先级排列
func (c *Client) Providers() []string {
	var providers []string
	if c.OpenRouterAPIKey != "" {
		providers = append(providers, "openrouter")
	}
	if c.GeminiAPIKey != "" {
		providers = append(providers, "gemini")
	}
	return providers
}

// Generate 发送一次生成请求，返回原始文本
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.CallTimeout)
	defer cancel()

	switch {
	case c.OpenRouterAPIKey != "":
		return c.callOpenRouter(ctx, systemPrompt, userPrompt)
	case c.GeminiAPIKey != "":
		return c.callGemini(ctx, systemPrompt, userPrompt)
	default:
		return "", ErrNoProviderConfigured
	}
}

// callOpenRouter 调用 OpenRouter（OpenAI 兼容接口）
func (c *Client) callOpenRouter(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	klog.V(6).Infof("OpenRouter 请求: model=%s", c.OpenRouterModel)

	reqBody := ChatRequest{
		Model: c.OpenRouterModel,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.7,
		MaxTokens:   c.MaxTokens,
	}

	body, err := c.postJSON(ctx, "openrouter", c.OpenRouterURL+"/chat/completions", reqBody, map[string]string{
		"Authorization": "Bearer " + c.OpenRouterAPIKey,
	})
	if err != nil {
		return "", err
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// callGemini 调用 Gemini generateContent 接口
// Gemini 没有独立的 system 角色，系统提示拼接在正文之前
func (c *Client) callGemini(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	klog.V(6).Infof("Gemini 请求")

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: systemPrompt + "\n\n" + userPrompt}}},
		},
		GenerationConfig: geminiGenConfig{
			Temperature:     0.7,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: c.MaxTokens,
		},
	}

	url := fmt.Sprintf("%s/models/gemini-pro:generateContent?key=%s", c.GeminiURL, c.GeminiAPIKey)
	body, err := c.postJSON(ctx, "gemini", url, reqBody, nil)
	if err != nil {
		return "", err
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

// postJSON 发送 JSON 请求，非 2xx 返回 *ProviderError
func (c *Client) postJSON(ctx context.Context, provider, url string, reqBody any, headers map[string]string) ([]byte, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	return body, nil
}

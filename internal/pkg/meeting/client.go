package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/devcluster/backend/config"
	"k8s.io/klog/v2"
)

// ErrNoAuthToken 未配置会议服务令牌
var ErrNoAuthToken = errors.New("meeting auth token not configured")

// Room 会议房间
type Room struct {
	RoomID     string `json:"room_id"`
	MeetingURL string `json:"meeting_url"`
}

// Client 会议房间服务客户端
// 服务为可选依赖，调用失败由上层降级处理
type Client struct {
	AuthToken string
	APIBase   string
	Client    *http.Client
}

// NewClient 创建会议服务客户端
func NewClient(cfg *config.Config) *Client {
	return &Client{
		AuthToken: cfg.Meeting.AuthToken,
		APIBase:   cfg.Meeting.APIBase,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured 是否配置了令牌
func (c *Client) Configured() bool {
	return c.AuthToken != ""
}

// CreateRoom 创建会议房间
func (c *Client) CreateRoom(ctx context.Context) (*Room, error) {
	if c.AuthToken == "" {
		return nil, ErrNoAuthToken
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.APIBase+"/rooms", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.AuthToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("meeting API error %d: %s", resp.StatusCode, string(body))
	}

	var data struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	klog.V(6).Infof("会议房间创建成功: roomID=%s", data.RoomID)
	return &Room{
		RoomID:     data.RoomID,
		MeetingURL: "https://app.videosdk.live/meeting/" + data.RoomID,
	}, nil
}

// FallbackRoomID 服务不可用时的降级房间标识
func FallbackRoomID() string {
	return fmt.Sprintf("fallback_room_%d", time.Now().Unix())
}

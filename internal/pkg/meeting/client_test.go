package meeting

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCreateRoomWithoutToken(t *testing.T) {
	client := &Client{APIBase: "http://unused", Client: http.DefaultClient}

	_, err := client.CreateRoom(context.Background())
	if !errors.Is(err, ErrNoAuthToken) {
		t.Fatalf("expected ErrNoAuthToken, got %v", err)
	}
}

func TestCreateRoom(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token-123" {
			t.Errorf("missing auth header")
		}
		w.Write([]byte(`{"roomId":"room-abc"}`))
	}))
	defer server.Close()

	client := &Client{
		AuthToken: "token-123",
		APIBase:   server.URL,
		Client:    &http.Client{Timeout: 5 * time.Second},
	}

	room, err := client.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if room.RoomID != "room-abc" {
		t.Fatalf("unexpected room id: %s", room.RoomID)
	}
	if !strings.HasSuffix(room.MeetingURL, "room-abc") {
		t.Fatalf("unexpected meeting url: %s", room.MeetingURL)
	}
}

func TestCreateRoomAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad token"))
	}))
	defer server.Close()

	client := &Client{
		AuthToken: "bad",
		APIBase:   server.URL,
		Client:    &http.Client{Timeout: 5 * time.Second},
	}

	if _, err := client.CreateRoom(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFallbackRoomID(t *testing.T) {
	if !strings.HasPrefix(FallbackRoomID(), "fallback_room_") {
		t.Fatalf("unexpected fallback id")
	}
}

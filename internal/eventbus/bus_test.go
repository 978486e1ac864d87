package eventbus

import (
	"context"
	"errors"
	"testing"
)

func TestBusPublishBroadcast(t *testing.T) {
	bus := NewSessionEventBus()
	calledA := false
	calledB := false

	bus.Subscribe(SessionEventAgentAnalysis, func(ctx context.Context, event SessionEvent) error {
		calledA = true
		return nil
	})
	bus.Subscribe(SessionEventAgentAnalysis, func(ctx context.Context, event SessionEvent) error {
		calledB = true
		return nil
	})

	if err := bus.Publish(context.Background(), SessionEventAgentAnalysis, SessionEvent{SessionID: "s1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !calledA || !calledB {
		t.Fatalf("expected handlers to be called")
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewSessionEventBus()
	called := false
	unsubscribe := bus.Subscribe(SessionEventCodeShare, func(ctx context.Context, event SessionEvent) error {
		called = true
		return nil
	})
	unsubscribe()

	if err := bus.Publish(context.Background(), SessionEventCodeShare, SessionEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("expected handler to be unsubscribed")
	}
}

func TestBusPublishJoinErrors(t *testing.T) {
	bus := NewSessionEventBus()
	bus.Subscribe(SessionEventAgentError, func(ctx context.Context, event SessionEvent) error {
		return errors.New("err-a")
	})
	bus.Subscribe(SessionEventAgentError, func(ctx context.Context, event SessionEvent) error {
		return errors.New("err-b")
	})

	if err := bus.Publish(context.Background(), SessionEventAgentError, SessionEvent{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBusTypeIsolation(t *testing.T) {
	bus := NewSessionEventBus()
	called := false
	bus.Subscribe(SessionEventCollaboration, func(ctx context.Context, event SessionEvent) error {
		called = true
		return nil
	})

	if err := bus.Publish(context.Background(), SessionEventCodeShare, SessionEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("handler for another event type should not be called")
	}
}

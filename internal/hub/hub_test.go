package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-live/live-service/internal/config"
)

func TestWaitTracksRegisteredClients(t *testing.T) {
	h := NewHub(config.WebSocketConfig{SendBuffer: 4})
	c := NewClient("c1", h, nil)

	if err := h.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if n := h.Count(); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait with a registered client = %v, want deadline exceeded", err)
	}

	h.Unregister(c)
	h.Unregister(c)

	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait after Unregister = %v", err)
	}
}

func TestRegisterAfterStop(t *testing.T) {
	h := NewHub(config.WebSocketConfig{})
	h.Stop()
	h.Stop()

	if err := h.Register(NewClient("late", h, nil)); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("Register after Stop = %v, want ErrHubStopped", err)
	}
	if n := h.Count(); n != 0 {
		t.Fatalf("Count = %d, want 0", n)
	}
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait on empty hub = %v", err)
	}
}

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newProfileServer(t *testing.T, hits *int32, release <-chan struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if release != nil {
			<-release
		}
		switch r.URL.Path {
		case "/api/v1/users/u1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success":true,"data":{"id":"u1","username":"alice","display_name":"Alice"}}`))
		case "/api/v1/users/u2":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success":true,"data":{"id":"u2","username":"bob"}}`))
		case "/api/v1/users/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetProfile(t *testing.T) {
	var hits int32
	srv := newProfileServer(t, &hits, nil)
	c := NewProfileClient(srv.URL+"/", time.Second, time.Minute)
	ctx := context.Background()

	p, err := c.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Name() != "Alice" {
		t.Fatalf("Name() = %q, want Alice", p.Name())
	}

	if _, err := c.GetProfile(ctx, "u1"); err != nil {
		t.Fatalf("cached GetProfile: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("server hits = %d, want 1 (second call cached)", n)
	}

	p, err = c.GetProfile(ctx, "u2")
	if err != nil {
		t.Fatalf("GetProfile(u2): %v", err)
	}
	if p.Name() != "bob" {
		t.Fatalf("Name() = %q, want username fallback", p.Name())
	}
}

func TestGetProfileErrors(t *testing.T) {
	var hits int32
	srv := newProfileServer(t, &hits, nil)
	c := NewProfileClient(srv.URL, time.Second, time.Minute)

	if _, err := c.GetProfile(context.Background(), "missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("err = %v, want ErrProfileNotFound", err)
	}
	if _, err := c.GetProfile(context.Background(), "broken"); err == nil || errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("err = %v, want status error", err)
	}
}

func TestGetProfileCacheExpiry(t *testing.T) {
	var hits int32
	srv := newProfileServer(t, &hits, nil)
	c := NewProfileClient(srv.URL, time.Second, time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.GetProfile(context.Background(), "u1")
	now = now.Add(2 * time.Minute)
	c.GetProfile(context.Background(), "u1")

	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("server hits = %d, want 2 after expiry", n)
	}
}

func TestGetProfileSharesConcurrentLookups(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	srv := newProfileServer(t, &hits, release)
	c := NewProfileClient(srv.URL, 5*time.Second, 0)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetProfile(context.Background(), "u1")
			errs <- err
		}()
	}

	// wait until the first request is in flight, then give the rest time to join it
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&hits) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("GetProfile: %v", err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("server hits = %d, want 1 shared request", n)
	}
}

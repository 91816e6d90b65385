package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	if err := s.Write(ctx, "reports/2026-10-19/a.json", strings.NewReader(`{"a":1}`), -1, "application/json"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(ctx, "reports/2026-10-20/b.json", strings.NewReader(`{"b":2}`), -1, "application/json"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rc, err := s.Read(ctx, "reports/2026-10-19/a.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != `{"a":1}` {
		t.Fatalf("Read = %q", data)
	}

	files, err := s.List(ctx, "reports/2026-10-19/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 1 || files[0].Key != "reports/2026-10-19/a.json" {
		t.Fatalf("List = %+v", files)
	}

	all, err := s.List(ctx, "reports/")
	if err != nil || len(all) != 2 {
		t.Fatalf("List all = %+v, %v", all, err)
	}

	url, err := s.GetURL(ctx, "reports/2026-10-19/a.json", 0)
	if err != nil || url != "/reports/2026-10-19/a.json" {
		t.Fatalf("GetURL = %q, %v", url, err)
	}

	if err := s.Delete(ctx, "reports/2026-10-19/a.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := s.Exists(ctx, "reports/2026-10-19/a.json"); ok {
		t.Fatal("object still exists after Delete")
	}
	if _, err := s.Read(ctx, "reports/2026-10-19/a.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read after delete err = %v, want ErrNotFound", err)
	}
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	base := t.TempDir()
	s, err := NewLocalStorage(LocalConfig{BasePath: base})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	got := s.fullPath("../../etc/passwd")
	if !strings.HasPrefix(got, s.BasePath()) {
		t.Fatalf("fullPath escaped base: %s", got)
	}
}

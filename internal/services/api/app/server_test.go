package server

import (
	"context"
	"testing"
	"time"
)

func TestNewServerRequiresAddr(t *testing.T) {
	if _, err := NewServer(Config{}, newTestRegistry(t, waitDecider{})); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestNewServerRequiresRegistry(t *testing.T) {
	if _, err := NewServer(Config{HTTPAddr: "127.0.0.1:0"}, nil); err == nil {
		t.Fatal("expected error for nil registry")
	}
}

func TestListenAndServeNilServer(t *testing.T) {
	var s *Server
	if err := s.ListenAndServe(context.Background()); err == nil {
		t.Fatal("expected error for nil server")
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	server, err := NewServer(Config{HTTPAddr: "127.0.0.1:0"}, newTestRegistry(t, waitDecider{}))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never stopped")
	}
}

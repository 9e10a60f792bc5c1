// RepAtlas - Marketing Operations Dashboard and Representative Map
// Copyright 2026 RepAtlas contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/repatlas/repatlas

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// mockServer implements HTTPServer with controllable lifecycle.
type mockServer struct {
	serveErr   chan error
	shutdowns  chan struct{}
	shutdownFn func(ctx context.Context) error
}

func newMockServer() *mockServer {
	return &mockServer{
		serveErr:  make(chan error, 1),
		shutdowns: make(chan struct{}, 1),
	}
}

func (m *mockServer) ListenAndServe() error {
	return <-m.serveErr
}

func (m *mockServer) Shutdown(ctx context.Context) error {
	m.shutdowns <- struct{}{}
	// Unblock ListenAndServe the way net/http does.
	m.serveErr <- http.ErrServerClosed
	if m.shutdownFn != nil {
		return m.shutdownFn(ctx)
	}
	return nil
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	server := newMockServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Give the serve goroutine a moment to start, then request shutdown.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	select {
	case <-server.shutdowns:
	default:
		t.Error("expected Shutdown to be called")
	}
}

func TestHTTPServerServicePropagatesServerError(t *testing.T) {
	server := newMockServer()
	svc := NewHTTPServerService(server, time.Second)

	boom := errors.New("listen tcp: address already in use")
	server.serveErr <- boom

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, boom) {
		t.Errorf("Serve returned %v, want wrapped listen error", err)
	}
}

func TestHTTPServerServiceShutdownError(t *testing.T) {
	server := newMockServer()
	shutdownErr := errors.New("connections still draining")
	server.shutdownFn = func(context.Context) error { return shutdownErr }

	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, shutdownErr) {
			t.Errorf("Serve returned %v, want wrapped shutdown error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestHTTPServerServiceDefaultTimeout(t *testing.T) {
	svc := NewHTTPServerService(newMockServer(), 0)
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v, want 10s default", svc.shutdownTimeout)
	}
}

func TestHTTPServerServiceString(t *testing.T) {
	svc := NewHTTPServerService(newMockServer(), time.Second)
	if svc.String() != "http-server" {
		t.Errorf("String() = %q", svc.String())
	}
}

package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"
)

// startTestServer serves mux on a random port and returns its address plus a
// channel closed once Serve returns.
func startTestServer(t *testing.T, mux *http.ServeMux) (*http.Server, string, <-chan struct{}) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			t.Errorf("server error: %v", err)
		}
		close(stopped)
	}()
	return server, ln.Addr().String(), stopped
}

// TestGracefulShutdown verifies Shutdown drains the listener and Serve
// returns ErrServerClosed.
func TestGracefulShutdown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server, addr, stopped := startTestServer(t, mux)

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health returned %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("shutdown error: %v", err)
	}

	select {
	case <-stopped:
	case <-time.After(15 * time.Second):
		t.Fatal("server failed to stop in time")
	}
}

// TestGracefulShutdown_InFlightRequests verifies a request already being
// handled finishes before shutdown completes.
func TestGracefulShutdown_InFlightRequests(t *testing.T) {
	handlerStarted := make(chan struct{})
	handlerContinue := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(handlerStarted)
		<-handlerContinue
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("done"))
	})
	server, addr, stopped := startTestServer(t, mux)

	type result struct {
		body []byte
		err  error
	}
	requestDone := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + addr + "/slow")
		if err != nil {
			requestDone <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		requestDone <- result{body: body, err: err}
	}()

	select {
	case <-handlerStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not start in time")
	}

	shutdownDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownDone <- server.Shutdown(ctx)
	}()

	// Shutdown is underway; let the in-flight handler finish.
	time.Sleep(50 * time.Millisecond)
	close(handlerContinue)

	select {
	case res := <-requestDone:
		if res.err != nil {
			t.Fatalf("in-flight request failed: %v", res.err)
		}
		if string(res.body) != "done" {
			t.Errorf("in-flight response = %q, want %q", res.body, "done")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request did not complete")
	}

	if err := <-shutdownDone; err != nil {
		t.Errorf("shutdown error: %v", err)
	}
	select {
	case <-stopped:
	case <-time.After(15 * time.Second):
		t.Fatal("server failed to stop in time")
	}
}

// TestSignalNotify verifies the signal plumbing the server's shutdown path
// relies on.
func TestSignalNotify(t *testing.T) {
	for _, sig := range []syscall.Signal{syscall.SIGINT, syscall.SIGTERM} {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			time.Sleep(50 * time.Millisecond)
			syscall.Kill(syscall.Getpid(), sig)
		}()

		select {
		case got := <-quit:
			if got != sig {
				t.Errorf("received %v, want %v", got, sig)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("did not receive %v in time", sig)
		}
		signal.Stop(quit)
	}
}

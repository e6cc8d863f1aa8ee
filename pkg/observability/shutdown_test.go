package observability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestNewShutdownManager_DefaultTimeout(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, 0)

	if sm.shutdownTimeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", sm.shutdownTimeout)
	}
}

func TestShutdownManager_RunsRegisteredFuncs(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	var dispatcherStopped, cronStopped atomic.Bool
	sm.RegisterShutdownFunc("dispatcher", func(ctx context.Context) error {
		dispatcherStopped.Store(true)
		return nil
	})
	sm.RegisterShutdownFunc("cron", func(ctx context.Context) error {
		cronStopped.Store(true)
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- sm.WaitForShutdown()
	}()

	// Give WaitForShutdown time to install its signal handler
	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Failed to send SIGTERM: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown did not complete in time")
	}

	if !dispatcherStopped.Load() {
		t.Error("Expected dispatcher shutdown func to run")
	}
	if !cronStopped.Load() {
		t.Error("Expected cron shutdown func to run")
	}
}

func TestShutdownManager_ReportsFuncErrors(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, 5*time.Second)

	sm.RegisterShutdownFunc("flaky", func(ctx context.Context) error {
		return errors.New("close failed")
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- sm.WaitForShutdown()
	}()

	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Failed to send SIGTERM: %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Expected error from failing shutdown func")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown did not complete in time")
	}
}

func TestShutdownManager_TimesOut(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, 200*time.Millisecond)

	sm.RegisterShutdownFunc("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(2 * time.Second)
		return ctx.Err()
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- sm.WaitForShutdown()
	}()

	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Failed to send SIGTERM: %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Expected timeout error")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown did not return after timeout")
	}
}

func TestShutdownManager_StopsHTTPServer(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})

	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})}

	listenErr := make(chan error, 1)
	go func() {
		err := server.ListenAndServe()
		listenErr <- err
	}()

	sm := NewShutdownManager(logger, server, 5*time.Second)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sm.WaitForShutdown()
	}()

	time.Sleep(100 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Failed to send SIGTERM: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown did not complete in time")
	}

	select {
	case err := <-listenErr:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Expected ErrServerClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Server did not stop")
	}
}

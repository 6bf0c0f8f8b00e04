package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNotifier_SendsMessage(t *testing.T) {
	var gotPath string
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n, err := New(srv.URL, "tok123", time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Notify(context.Background(), "chat-9", "kami 42 stopped"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if gotPath != "/bottok123/sendMessage" {
		t.Fatalf("path=%q", gotPath)
	}
	if got.ChatID != "chat-9" || got.Text != "kami 42 stopped" {
		t.Fatalf("body=%+v", got)
	}
}

func TestNotifier_APIRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	n, _ := New(srv.URL, "tok123", time.Second)
	err := n.Notify(context.Background(), "chat-9", "x")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err=%v want chat not found", err)
	}
}

func TestNotifier_TokenNotLeakedOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	n, _ := New(url, "secret-token", 200*time.Millisecond)
	err := n.Notify(context.Background(), "chat-9", "x")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Fatalf("error leaks token: %v", err)
	}
}

func TestNotifier_DisabledWithoutToken(t *testing.T) {
	n, _ := New("", "", 0)
	if err := n.Notify(context.Background(), "chat", "x"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err=%v want ErrDisabled", err)
	}
}

func TestNotifier_HonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()
	defer close(release)

	n, _ := New(srv.URL, "tok123", 10*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	started := time.Now()
	if err := n.Notify(ctx, "chat-9", "x"); err == nil {
		t.Fatalf("expected error once the context deadline passed")
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("Notify took %s, want it bounded by the context deadline", elapsed)
	}
}

func TestNotifier_ExpiredContext(t *testing.T) {
	n, _ := New("http://127.0.0.1:1", "tok123", time.Second)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if err := n.Notify(ctx, "chat-9", "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v want context.DeadlineExceeded", err)
	}
}

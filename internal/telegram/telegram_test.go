package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nikizi1234-ship-it/Ai-Post/internal/retry"
)

func testClient(apiBase string) *Client {
	c := New("token", "-100500")
	c.apiBase = apiBase
	c.retry = retry.Config{MaxAttempts: 3, Delay: time.Millisecond}
	return c
}

func TestSendPayload(t *testing.T) {
	t.Parallel()

	var gotPath string
	var payload map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if err := c.Send(context.Background(), "<b>hello</b>", true); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/bottoken/sendMessage" {
		t.Errorf("request path = %q", gotPath)
	}
	if payload["parse_mode"] != "HTML" {
		t.Errorf("parse_mode = %v, want HTML", payload["parse_mode"])
	}
	if payload["disable_web_page_preview"] != false {
		t.Errorf("preview should be allowed, got disable=%v", payload["disable_web_page_preview"])
	}
	if payload["chat_id"] != "-100500" {
		t.Errorf("chat_id = %v", payload["chat_id"])
	}
}

func TestSendRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if err := c.Send(context.Background(), "retry me", false); err != nil {
		t.Fatalf("Send after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("API called %d times, want 3", calls.Load())
	}
}

func TestSendGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if err := c.Send(context.Background(), "doomed", false); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if calls.Load() != 3 {
		t.Errorf("API called %d times, want 3", calls.Load())
	}
}

func TestSendRejectsOversizeAndEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API must not be called for invalid input")
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if err := c.Send(context.Background(), strings.Repeat("x", MaxMessageLen+1), false); err == nil {
		t.Error("expected error for oversize message")
	}
	if err := c.Send(context.Background(), "", false); err == nil {
		t.Error("expected error for empty message")
	}
}

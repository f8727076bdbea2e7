package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWhatsAppClient_Send_Success(t *testing.T) {
	t.Parallel()

	type gotReq struct {
		Method        string
		ContentType   string
		Authorization string
		Body          []byte
	}

	var captured gotReq

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.ContentType = r.Header.Get("Content-Type")
		captured.Authorization = r.Header.Get("Authorization")

		b, _ := ioReadAll(r)
		captured.Body = b

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.abc-123"}]}`))
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.URL, "secret", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msgID, err := c.Send(ctx, "+5511999999999", "hello")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if msgID != "wamid.abc-123" {
		t.Fatalf("expected message id %q, got %q", "wamid.abc-123", msgID)
	}

	if captured.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %q", captured.Method)
	}
	if captured.ContentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", captured.ContentType)
	}
	if captured.Authorization != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", captured.Authorization)
	}

	var req whatsAppRequest
	if err := json.Unmarshal(captured.Body, &req); err != nil {
		t.Fatalf("failed to decode request json: %v body=%q", err, string(captured.Body))
	}
	if req.To != "+5511999999999" {
		t.Fatalf("expected to %q, got %q", "+5511999999999", req.To)
	}
	if req.Text.Body != "hello" || req.Type != "text" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestWhatsAppClient_Send_NotConfigured(t *testing.T) {
	t.Parallel()

	c := NewWhatsAppClient("  ", "", 0)

	_, err := c.Send(context.Background(), "+55", "hi")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestWhatsAppClient_Send_Non2xx_ReturnsErrorWithBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid number"))
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.URL, "", time.Second)

	_, err := c.Send(context.Background(), "+55", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	msg := err.Error()
	if !strings.Contains(msg, "unexpected status code: 400") {
		t.Fatalf("expected error to mention status code, got: %v", err)
	}
	if !strings.Contains(msg, `body="invalid number"`) {
		t.Fatalf("expected error to include body, got: %v", err)
	}
}

func TestWhatsAppClient_Send_InvalidJSON_ReturnsErrorWithBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("THIS IS NOT JSON"))
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.URL, "", time.Second)

	_, err := c.Send(context.Background(), "+55", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	msg := err.Error()
	if !strings.Contains(msg, "failed to decode json") {
		t.Fatalf("expected decode error, got: %v", err)
	}
	if !strings.Contains(msg, `body="THIS IS NOT JSON"`) {
		t.Fatalf("expected error to include body, got: %v", err)
	}
}

func TestWhatsAppClient_Send_MissingMessageId_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[]}`))
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.URL, "", time.Second)

	_, err := c.Send(context.Background(), "+55", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "missing message id") {
		t.Fatalf("expected missing message id error, got: %v", err)
	}
}

func TestWhatsAppClient_Send_ContextCanceled(t *testing.T) {
	t.Parallel()

	// Server that intentionally blocks longer than our context deadline.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"abc"}]}`))
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.URL, "", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Send(ctx, "+55", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	if !strings.Contains(strings.ToLower(err.Error()), "context") &&
		!strings.Contains(strings.ToLower(err.Error()), "deadline") {
		t.Fatalf("expected context/deadline error, got: %v", err)
	}
}

func ioReadAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

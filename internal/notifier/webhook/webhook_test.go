package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/reversion/internal/journal"
	"github.com/newthinker/reversion/internal/notifier"
)

func TestWebhook_ImplementsNotifier(t *testing.T) {
	var _ notifier.Notifier = (*Webhook)(nil)
}

func TestWebhook_Name(t *testing.T) {
	w := New("http://example.com/hook", nil)
	if w.Name() != "webhook" {
		t.Errorf("expected 'webhook', got %s", w.Name())
	}
}

func TestWebhook_Init_RequiresURL(t *testing.T) {
	w := &Webhook{}
	err := w.Init(notifier.Config{Params: map[string]any{}})
	if err == nil {
		t.Error("expected error for missing URL")
	}
}

func TestWebhook_Init_WithURL(t *testing.T) {
	w := &Webhook{}
	err := w.Init(notifier.Config{
		Params: map[string]any{
			"url":     "http://example.com/hook",
			"headers": map[string]any{"X-Token": "abc"},
		},
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if w.url != "http://example.com/hook" {
		t.Errorf("expected url, got %s", w.url)
	}
	if w.headers["X-Token"] != "abc" {
		t.Errorf("expected header from config, got %v", w.headers)
	}
}

func TestWebhook_Send(t *testing.T) {
	var receivedPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&receivedPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := New(server.URL, nil)

	d := journal.Decision{
		Symbol:   "EURUSD",
		Decision: "buy",
		Reason:   "close re-entered lower band from below",
		Detail:   "SL: 1.08390, TP: 1.11000",
		Time:     time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	}

	err := w.Send(context.Background(), d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedPayload["symbol"] != "EURUSD" {
		t.Errorf("expected symbol EURUSD, got %v", receivedPayload["symbol"])
	}
	if receivedPayload["decision"] != "buy" {
		t.Errorf("expected decision buy, got %v", receivedPayload["decision"])
	}
	if receivedPayload["detail"] != "SL: 1.08390, TP: 1.11000" {
		t.Errorf("unexpected detail %v", receivedPayload["detail"])
	}
	if receivedPayload["time"] != "2024-03-04T10:00:00Z" {
		t.Errorf("unexpected time %v", receivedPayload["time"])
	}
}

func TestWebhook_SendBatch(t *testing.T) {
	var receivedPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&receivedPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w := New(server.URL, nil)

	ds := []journal.Decision{
		{Symbol: "EURUSD", Decision: "buy", Time: time.Now()},
		{Symbol: "GBPUSD", Decision: "sell", Time: time.Now()},
	}

	err := w.SendBatch(context.Background(), ds)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedPayload["type"] != "batch" {
		t.Errorf("expected type batch, got %v", receivedPayload["type"])
	}
	if receivedPayload["count"].(float64) != 2 {
		t.Errorf("expected count 2, got %v", receivedPayload["count"])
	}
}

func TestWebhook_SendBatch_Empty(t *testing.T) {
	w := New("http://example.com/hook", nil)
	err := w.SendBatch(context.Background(), []journal.Decision{})
	if err != nil {
		t.Errorf("empty batch should not error: %v", err)
	}
}

func TestWebhook_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w := New(server.URL, nil)

	err := w.Send(context.Background(), journal.Decision{Symbol: "TEST", Time: time.Now()})
	if err == nil {
		t.Error("expected error for server error response")
	}
}

func TestWebhook_CustomHeaders(t *testing.T) {
	var receivedHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	headers := map[string]string{
		"Authorization": "Bearer test-token",
		"X-Custom":      "value",
	}
	w := New(server.URL, headers)

	w.Send(context.Background(), journal.Decision{Symbol: "TEST", Time: time.Now()})

	if receivedHeaders.Get("Authorization") != "Bearer test-token" {
		t.Error("expected Authorization header")
	}
	if receivedHeaders.Get("X-Custom") != "value" {
		t.Error("expected X-Custom header")
	}
}

package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTelegramSender_Send(t *testing.T) {
	t.Run("posts sendMessage with HTML parse mode", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/botTOKEN/sendMessage" {
				t.Errorf("expected /botTOKEN/sendMessage, got %s", r.URL.Path)
			}
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body["chat_id"] != float64(42) {
				t.Errorf("expected chat_id 42, got %v", body["chat_id"])
			}
			if body["text"] != "hello" || body["parse_mode"] != "HTML" {
				t.Errorf("unexpected body: %v", body)
			}
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		sender := NewTelegramSender(server.URL, "TOKEN", server.Client())
		if err := sender.Send(context.Background(), 42, Message{Text: "hello"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("uses sendPhoto with caption for photos", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, "/sendPhoto") {
				t.Errorf("expected sendPhoto, got %s", r.URL.Path)
			}
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["photo"] != "file-1" || body["caption"] != "new in" {
				t.Errorf("unexpected body: %v", body)
			}
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		sender := NewTelegramSender(server.URL, "TOKEN", server.Client())
		if err := sender.Send(context.Background(), 42, Message{Text: "new in", PhotoID: "file-1"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("returns the API description when rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Forbidden: bot was blocked by the user"}`))
		}))
		defer server.Close()

		sender := NewTelegramSender(server.URL, "TOKEN", server.Client())
		err := sender.Send(context.Background(), 42, Message{Text: "hello"})
		if err == nil || !strings.Contains(err.Error(), "blocked") {
			t.Errorf("expected blocked error, got %v", err)
		}
	})

	t.Run("keeps the token out of transport errors", func(t *testing.T) {
		sender := NewTelegramSender("http://localhost:99999", "SECRET", &http.Client{})
		err := sender.Send(context.Background(), 42, Message{Text: "hello"})
		if err == nil {
			t.Fatal("expected error")
		}
		if strings.Contains(err.Error(), "SECRET") {
			t.Errorf("error leaks the token: %v", err)
		}
	})
}

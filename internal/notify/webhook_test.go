package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/park285/chess-review/pkg/reviewdto"
)

func TestWebhook_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	var got reviewdto.ReviewNotification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL,
		WithBackoff(time.Millisecond),
		WithHeaderProvider(func() map[string]string { return map[string]string{"Authorization": "Bearer secret"} }))
	err := hook.NotifyReview(context.Background(), reviewdto.ReviewNotification{ID: "job-1", Status: "done"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits = %d, want 3", hits.Load())
	}
	if got.ID != "job-1" || got.Status != "done" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestWebhook_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, WithBackoff(time.Millisecond)).NotifyReview(context.Background(), reviewdto.ReviewNotification{ID: "x"})
	if !errors.Is(err, ErrWebhookStatus) {
		t.Fatalf("err = %v, want ErrWebhookStatus", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d, want 1", hits.Load())
	}
}

func TestWebhook_EmptyURLIsNoop(t *testing.T) {
	if err := NewWebhook("").NotifyReview(context.Background(), reviewdto.ReviewNotification{}); err != nil {
		t.Fatalf("notify: %v", err)
	}
}

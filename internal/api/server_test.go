package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/oriys/mqs/internal/cache"
	"github.com/oriys/mqs/internal/engine"
	"github.com/oriys/mqs/internal/mqs"
	"github.com/oriys/mqs/internal/queue"
	"github.com/oriys/mqs/internal/store"
)

func newTestServer(t *testing.T, maxMessageSize int64) (http.Handler, store.Repository) {
	t.Helper()
	repo := store.NewFakeStore()
	qc := cache.NewQueueCache()
	registry := queue.NewRegistry()
	me := engine.NewMessageEngine(repo, qc, registry, engine.NewRegistrySignaler(registry), nil)
	qe := engine.NewQueueEngine(repo)
	handler := NewRouter(ServerConfig{
		Repo: repo, QueueEngine: qe, MessageEngine: me, MaxMessageSize: maxMessageSize,
	})
	return handler, repo
}

func putQueue(t *testing.T, h http.Handler, name string, cfg mqs.QueueConfig) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(cfg)
	req := httptest.NewRequest(http.MethodPut, "/queues/"+name, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreatePublishReceiveDelete(t *testing.T) {
	h, _ := newTestServer(t, 0)

	rec := putQueue(t, h, "q1", mqs.QueueConfig{RetentionTimeout: 3600, VisibilityTimeout: 30})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create queue: status=%d body=%s", rec.Code, rec.Body.String())
	}

	pubReq := httptest.NewRequest(http.MethodPost, "/messages/q1", bytes.NewBufferString("hello"))
	pubReq.Header.Set("Content-Type", "text/plain")
	pubRec := httptest.NewRecorder()
	h.ServeHTTP(pubRec, pubReq)
	if pubRec.Code != http.StatusCreated {
		t.Fatalf("publish: status=%d body=%s", pubRec.Code, pubRec.Body.String())
	}

	recvReq := httptest.NewRequest(http.MethodGet, "/messages/q1", nil)
	recvRec := httptest.NewRecorder()
	h.ServeHTTP(recvRec, recvReq)
	if recvRec.Code != http.StatusOK {
		t.Fatalf("receive: status=%d body=%s", recvRec.Code, recvRec.Body.String())
	}
	if recvRec.Body.String() != "hello" {
		t.Fatalf("unexpected receive body: %q", recvRec.Body.String())
	}
	if recvRec.Header().Get("X-MQS-MESSAGE-RECEIVES") != "1" {
		t.Fatalf("expected receives=1, got %q", recvRec.Header().Get("X-MQS-MESSAGE-RECEIVES"))
	}
	id := recvRec.Header().Get("X-MQS-MESSAGE-ID")

	delReq := httptest.NewRequest(http.MethodDelete, "/messages/"+id, nil)
	delRec := httptest.NewRecorder()
	h.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete: status=%d body=%s", delRec.Code, delRec.Body.String())
	}

	recvReq2 := httptest.NewRequest(http.MethodGet, "/messages/q1", nil)
	recvRec2 := httptest.NewRecorder()
	h.ServeHTTP(recvRec2, recvReq2)
	if recvRec2.Code != http.StatusNoContent {
		t.Fatalf("expected 204 after delete, got %d", recvRec2.Code)
	}
}

func TestDeduplication(t *testing.T) {
	h, _ := newTestServer(t, 0)
	putQueue(t, h, "q2", mqs.QueueConfig{RetentionTimeout: 3600, VisibilityTimeout: 30, MessageDeduplication: true})

	first := httptest.NewRequest(http.MethodPost, "/messages/q2", bytes.NewBufferString("dup"))
	firstRec := httptest.NewRecorder()
	h.ServeHTTP(firstRec, first)
	if firstRec.Code != http.StatusCreated {
		t.Fatalf("first publish: status=%d", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/messages/q2", bytes.NewBufferString("dup"))
	secondRec := httptest.NewRecorder()
	h.ServeHTTP(secondRec, second)
	if secondRec.Code != http.StatusOK {
		t.Fatalf("duplicate publish: status=%d", secondRec.Code)
	}

	descReq := httptest.NewRequest(http.MethodGet, "/queues/q2", nil)
	descRec := httptest.NewRecorder()
	h.ServeHTTP(descRec, descReq)
	var desc mqs.QueueDescription
	if err := json.Unmarshal(descRec.Body.Bytes(), &desc); err != nil {
		t.Fatalf("decode describe response: %v", err)
	}
	if desc.Status.Messages != 1 {
		t.Fatalf("expected 1 message after dedup, got %d", desc.Status.Messages)
	}
}

func TestOversizeBodyRejected(t *testing.T) {
	h, _ := newTestServer(t, 1024)
	putQueue(t, h, "q3", mqs.QueueConfig{RetentionTimeout: 3600, VisibilityTimeout: 30})

	oversize := bytes.Repeat([]byte("a"), 1025)
	req := httptest.NewRequest(http.MethodPost, "/messages/q3", bytes.NewReader(oversize))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestReceiveMaxMessagesOutOfRange(t *testing.T) {
	h, _ := newTestServer(t, 0)
	putQueue(t, h, "q4", mqs.QueueConfig{RetentionTimeout: 3600, VisibilityTimeout: 30})

	req := httptest.NewRequest(http.MethodGet, "/messages/q4", nil)
	req.Header.Set("X-MQS-MAX-MESSAGES", "1000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateDuplicateQueueConflict(t *testing.T) {
	h, _ := newTestServer(t, 0)
	putQueue(t, h, "q5", mqs.QueueConfig{})
	rec := putQueue(t, h, "q5", mqs.QueueConfig{})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestServer(t, 0)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "green" {
		t.Fatalf("expected 200 green, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestListQueuesPagination(t *testing.T) {
	h, _ := newTestServer(t, 0)
	for i := 0; i < 3; i++ {
		putQueue(t, h, "q"+strconv.Itoa(i), mqs.QueueConfig{})
	}

	req := httptest.NewRequest(http.MethodGet, "/queues?limit=2", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp mqs.QueuesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 3 || len(resp.Queues) != 2 {
		t.Fatalf("unexpected list response: %+v", resp)
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatguard/internal/database"
	"chatguard/internal/models"
	"chatguard/internal/service"
	"chatguard/internal/ws"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	messages []models.ChatMessage
	listErr  error
	clearErr error
	ready    bool
}

func (f *fakeStore) InsertMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	out := *msg
	f.messages = append(f.messages, out)
	return &out, nil
}

func (f *fakeStore) ListMessages(ctx context.Context) ([]models.ChatMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.messages, nil
}

func (f *fakeStore) ClearMessages(ctx context.Context) (int64, error) {
	if f.clearErr != nil {
		return 0, f.clearErr
	}
	cleared := int64(len(f.messages))
	f.messages = nil
	return cleared, nil
}

func (f *fakeStore) Ready() bool {
	return f.ready
}

func setupTestServer(t *testing.T, store *fakeStore) *httptest.Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	history := service.NewHistoryService(store, logger)
	hub := ws.NewHub(nil, []string{"*"}, logger)
	srv := NewServer(history, hub, store, logger)

	testServer := httptest.NewServer(srv.router)
	t.Cleanup(testServer.Close)
	return testServer
}

func TestListMessagesEndpoint(t *testing.T) {
	store := &fakeStore{
		ready: true,
		messages: []models.ChatMessage{
			{ID: "msg-1", User: "alice", Message: "first", Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
			{ID: "msg-2", User: "bob", Message: "second", Timestamp: time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC), IsSpam: true},
		},
	}
	server := setupTestServer(t, store)

	resp, err := http.Get(server.URL + "/messages")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var messages []models.ChatMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "msg-1", messages[0].ID)
	assert.Equal(t, "msg-2", messages[1].ID)
	assert.True(t, messages[1].IsSpam)
}

func TestListMessagesEndpointStoreFailure(t *testing.T) {
	store := &fakeStore{listErr: database.ErrStoreUnavailable}
	server := setupTestServer(t, store)

	resp, err := http.Get(server.URL + "/messages")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["error"])
}

func TestClearMessagesEndpoint(t *testing.T) {
	store := &fakeStore{
		ready: true,
		messages: []models.ChatMessage{
			{ID: "msg-1", User: "alice", Message: "first"},
			{ID: "msg-2", User: "bob", Message: "second"},
		},
	}
	server := setupTestServer(t, store)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/messages", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Chat cleared successfully", body["message"])
	assert.Equal(t, float64(2), body["cleared"])
	assert.Empty(t, store.messages)
}

func TestClearMessagesEndpointStoreFailure(t *testing.T) {
	store := &fakeStore{clearErr: errors.New("disk I/O error")}
	server := setupTestServer(t, store)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/messages", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	store := &fakeStore{ready: true}
	server := setupTestServer(t, store)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["store_ready"])
}

func TestHealthEndpointDegradedWhileStoreDown(t *testing.T) {
	store := &fakeStore{ready: false}
	server := setupTestServer(t, store)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["store_ready"])
}

func TestMetricsEndpoint(t *testing.T) {
	store := &fakeStore{ready: true}
	server := setupTestServer(t, store)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "counters")
	assert.Contains(t, body, "timers")
	assert.Contains(t, body, "gauges")
	assert.Contains(t, body, "uptime_ms")
}

func TestMethodNotAllowed(t *testing.T) {
	store := &fakeStore{ready: true}
	server := setupTestServer(t, store)

	resp, err := http.Post(server.URL+"/messages", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

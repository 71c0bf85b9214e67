package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"chatguard/internal/migrations"
	"chatguard/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestMigrations creates test migration files
func setupTestMigrations(t *testing.T, tmpDir string) string {
	migrationsPath := filepath.Join(tmpDir, "migrations")
	err := os.MkdirAll(migrationsPath, 0755)
	require.NoError(t, err)

	schemaContent := `CREATE TABLE IF NOT EXISTS messages (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    user TEXT NOT NULL,
    message TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    is_phishing BOOLEAN NOT NULL DEFAULT 0,
    is_spam BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);`

	err = os.WriteFile(filepath.Join(migrationsPath, "001_initial_schema.sql"), []byte(schemaContent), 0644)
	require.NoError(t, err)

	return migrationsPath
}

func setupTestStore(t *testing.T) *Store {
	tmpDir := t.TempDir()

	originalMigrationsDir := migrations.MigrationsDir
	migrations.MigrationsDir = setupTestMigrations(t, tmpDir)
	t.Cleanup(func() {
		migrations.MigrationsDir = originalMigrationsDir
	})

	store, err := New(filepath.Join(tmpDir, "test.db"), 10*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestInsertMessageAssignsIDAndTimestamp(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	msg := &models.ChatMessage{User: "alice", Message: "hello"}
	before := time.Now().UTC()

	canonical, err := store.InsertMessage(ctx, msg)
	require.NoError(t, err)

	assert.NotEmpty(t, canonical.ID)
	assert.False(t, canonical.Timestamp.IsZero())
	assert.WithinDuration(t, before, canonical.Timestamp, 5*time.Second)
	assert.Equal(t, "alice", canonical.User)
	assert.Equal(t, "hello", canonical.Message)

	// The caller's message is never mutated
	assert.Empty(t, msg.ID)
	assert.True(t, msg.Timestamp.IsZero())
}

func TestInsertMessagePreservesCallerTimestamp(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	supplied := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	canonical, err := store.InsertMessage(ctx, &models.ChatMessage{
		User:      "bob",
		Message:   "backdated",
		Timestamp: supplied,
	})
	require.NoError(t, err)
	assert.True(t, canonical.Timestamp.Equal(supplied))
}

func TestListMessagesAscendingOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	timestamps := []time.Time{
		base.Add(2 * time.Minute),
		base,
		base.Add(1 * time.Minute),
	}

	for i, ts := range timestamps {
		_, err := store.InsertMessage(ctx, &models.ChatMessage{
			User:      "alice",
			Message:   fmt.Sprintf("message %d", i),
			Timestamp: ts,
		})
		require.NoError(t, err)
	}

	messages, err := store.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].Timestamp.Before(messages[i-1].Timestamp),
			"messages must be in non-decreasing timestamp order")
	}
	assert.Equal(t, "message 1", messages[0].Message)
	assert.Equal(t, "message 2", messages[1].Message)
	assert.Equal(t, "message 0", messages[2].Message)
}

func TestListMessagesTimestampTieBrokenByInsertionOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := store.InsertMessage(ctx, &models.ChatMessage{
			User:      "alice",
			Message:   fmt.Sprintf("tied %d", i),
			Timestamp: ts,
		})
		require.NoError(t, err)
	}

	messages, err := store.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 5)

	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("tied %d", i), messages[i].Message)
	}
}

func TestClearMessages(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.InsertMessage(ctx, &models.ChatMessage{User: "alice", Message: "x"})
		require.NoError(t, err)
	}

	cleared, err := store.ClearMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cleared)

	messages, err := store.ListMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestOperationsFailWhileDisconnected(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	store.markDisconnected()

	_, err := store.InsertMessage(ctx, &models.ChatMessage{User: "alice", Message: "x"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = store.ListMessages(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = store.ClearMessages(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestReconnectSupervisorRestoresService(t *testing.T) {
	store := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store.markDisconnected()
	assert.False(t, store.Ready())

	store.StartReconnectSupervisor(ctx)

	require.Eventually(t, store.Ready, 5*time.Second, 10*time.Millisecond,
		"store should reconnect without operator intervention")

	canonical, err := store.InsertMessage(ctx, &models.ChatMessage{User: "alice", Message: "after outage"})
	require.NoError(t, err)
	assert.NotEmpty(t, canonical.ID)

	messages, err := store.ListMessages(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "after outage", messages[0].Message)
}

func TestConcurrentInsertsProduceUniqueIDs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	const inserts = 20
	ids := make(chan string, inserts)

	var wg sync.WaitGroup
	for i := 0; i < inserts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			canonical, err := store.InsertMessage(ctx, &models.ChatMessage{
				User:    "alice",
				Message: fmt.Sprintf("concurrent %d", i),
			})
			assert.NoError(t, err)
			if err == nil {
				ids <- canonical.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, inserts)

	messages, err := store.ListMessages(ctx)
	require.NoError(t, err)
	assert.Len(t, messages, inserts)
}

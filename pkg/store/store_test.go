package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateUser_GetOrCreate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateUser(ctx, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	// Same name returns the same id.
	again, err := s.CreateUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	found, err := s.GetUserByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, found)

	missing, err := s.GetUserByName(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, missing)

	_, err = s.CreateUser(ctx, "")
	assert.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	userID, err := s.CreateUser(ctx, "alice")
	require.NoError(t, err)

	first, err := s.CreateSession(ctx, userID, "kubernetes prep")
	require.NoError(t, err)
	second, err := s.CreateSession(ctx, userID, "")
	require.NoError(t, err)

	sessions, err := s.ListSessions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	byID := map[string]SessionInfo{}
	for _, info := range sessions {
		byID[info.ID] = info
	}
	assert.Equal(t, "kubernetes prep", byID[first].SessionName)
	// Blank names get a timestamped default.
	assert.Contains(t, byID[second].SessionName, "Chat ")

	require.NoError(t, s.RenameSession(ctx, first, "renamed"))
	sessions, err = s.ListSessions(ctx, userID)
	require.NoError(t, err)
	for _, info := range sessions {
		if info.ID == first {
			assert.Equal(t, "renamed", info.SessionName)
		}
	}

	require.NoError(t, s.DeleteSession(ctx, second))
	sessions, err = s.ListSessions(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	assert.ErrorIs(t, s.DeleteSession(ctx, second), ErrSessionNotFound)
	assert.ErrorIs(t, s.RenameSession(ctx, "ghost", "x"), ErrSessionNotFound)
}

func TestContext_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	turns := []Turn{
		{UserQuery: "what is etcd?", AgentResponse: "a kv store", ToolResponse: `["doc"]`},
		{UserQuery: "and kubelet?", AgentResponse: "the node agent", ToolResponse: ""},
	}
	require.NoError(t, s.PutContext(ctx, "session-1", turns))

	got, err := s.GetContext(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, turns, got)

	// Replacement, not append.
	require.NoError(t, s.PutContext(ctx, "session-1", turns[:1]))
	got, err = s.GetContext(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, turns[:1], got)
}

func TestGetContext_UnknownSessionIsEmpty(t *testing.T) {
	s := openTestStore(t)

	turns, err := s.GetContext(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.NotNil(t, turns)
	assert.Empty(t, turns)
}

func TestPutContext_CreatesUnknownSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutContext(ctx, "fresh", []Turn{{UserQuery: "hi", AgentResponse: "hello"}}))

	got, err := s.GetContext(ctx, "fresh")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].UserQuery)
}

func TestPutContext_NilTurnsStoredAsEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutContext(ctx, "s", nil))

	got, err := s.GetContext(ctx, "s")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Error(t, s.PutContext(ctx, "", nil))
}

func TestPurgeIdleSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	userID, err := s.CreateUser(ctx, "alice")
	require.NoError(t, err)

	stale, err := s.CreateSession(ctx, userID, "stale")
	require.NoError(t, err)
	fresh, err := s.CreateSession(ctx, userID, "fresh")
	require.NoError(t, err)

	// Age the stale session beyond the retention window.
	old := time.Now().UTC().Add(-48 * time.Hour)
	_, err = s.db.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, old, stale)
	require.NoError(t, err)

	purged, err := s.PurgeIdleSessions(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	sessions, err := s.ListSessions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, fresh, sessions[0].ID)
}

func TestCleaner_DisabledWithoutRetention(t *testing.T) {
	s := openTestStore(t)

	cleaner := NewCleaner(s, 0, "@hourly", zerolog.Nop())
	require.NoError(t, cleaner.Start())
	cleaner.Stop()
}

func TestCleaner_RejectsBadSchedule(t *testing.T) {
	s := openTestStore(t)

	cleaner := NewCleaner(s, time.Hour, "not a schedule", zerolog.Nop())
	assert.Error(t, cleaner.Start())
}

package workspace

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sociofi/internal/models"
	"sociofi/internal/session"
)

func countingFetcher(calls *atomic.Int32, err error) RosterFetcher {
	return func(ctx context.Context, token string) ([]models.User, error) {
		calls.Add(1)
		if err != nil {
			return nil, err
		}
		return []models.User{{ID: "1", FirstName: "Ada", Email: "ada@sociofi.test"}}, nil
	}
}

func TestRosterFetchedOncePerSession(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(countingFetcher(&calls, nil), time.Hour, nil)
	sess := &session.Session{ID: "s1", Token: "tok"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			roster, err := reg.Roster(context.Background(), sess)
			assert.NoError(t, err)
			assert.Len(t, roster, 1)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, calls.Load())

	reg.Drop("s1")
	_, err := reg.Roster(context.Background(), sess)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load(), "a new session fetches again")
}

func TestRosterFailureNotCached(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(countingFetcher(&calls, errors.New("backend down")), time.Hour, nil)
	sess := &session.Session{ID: "s1", Token: "tok"}

	_, err := reg.Roster(context.Background(), sess)
	require.Error(t, err)
	_, err = reg.Roster(context.Background(), sess)
	require.Error(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestChatStatePerChat(t *testing.T) {
	reg := NewRegistry(nil, time.Hour, nil)
	ws := reg.Get("s1")
	a := ws.Chat(1)
	assert.Same(t, a, ws.Chat(1))
	assert.NotSame(t, a, ws.Chat(2))
}

func TestEnsureLoadedOnlyOnce(t *testing.T) {
	reg := NewRegistry(nil, time.Hour, nil)
	ch := reg.Get("s1").Chat(5)
	calls := 0
	fetch := func(ctx context.Context, chatID int64) ([]models.Message, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("timeout")
		}
		return []models.Message{{Role: models.RoleUser, Content: "hi"}}, nil
	}

	require.Error(t, ch.EnsureLoaded(context.Background(), 5, fetch))
	require.NoError(t, ch.EnsureLoaded(context.Background(), 5, fetch))
	require.NoError(t, ch.EnsureLoaded(context.Background(), 5, fetch))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, ch.Transcript.Len())
}

func TestEvictIdle(t *testing.T) {
	reg := NewRegistry(nil, time.Minute, nil)
	base := time.Now()
	reg.now = func() time.Time { return base }
	reg.Get("old")
	reg.now = func() time.Time { return base.Add(2 * time.Minute) }
	reg.Get("fresh")

	assert.Equal(t, 1, reg.evictIdle())
	assert.Equal(t, 1, reg.Len())
}

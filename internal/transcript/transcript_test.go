package transcript

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sociofi/internal/models"
)

func TestPendingTransitions(t *testing.T) {
	tr := New()
	ok := tr.Append(Entry{Role: models.RoleUser, Content: "hi", State: StatePending})
	bad := tr.Append(Entry{Role: models.RoleUser, Content: "lost", State: StatePending})

	require.NoError(t, tr.Confirm(ok.ID))
	require.NoError(t, tr.Fail(bad.ID, "backend unavailable"))

	entries := tr.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, StateConfirmed, entries[0].State)
	assert.Equal(t, StateFailed, entries[1].State)
	assert.Equal(t, "backend unavailable", entries[1].FailureReason)
}

func TestIllegalTransitions(t *testing.T) {
	tr := New()
	e := tr.Append(Entry{Role: models.RoleUser, Content: "x", State: StatePending})
	require.NoError(t, tr.Fail(e.ID, "boom"))

	assert.ErrorIs(t, tr.Confirm(e.ID), ErrInvalidTransition)
	assert.ErrorIs(t, tr.Fail(e.ID, "again"), ErrInvalidTransition)

	confirmed := tr.Append(Entry{Role: models.RoleAssistant, Content: "y"})
	assert.Equal(t, StateConfirmed, confirmed.State)
	assert.ErrorIs(t, tr.Confirm(confirmed.ID), ErrInvalidTransition)

	assert.ErrorIs(t, tr.Confirm("missing"), ErrEntryNotFound)
}

func TestAppendMessagesKeepsOrderAndFields(t *testing.T) {
	tr := New()
	got := tr.AppendMessages([]models.Message{
		{Role: models.RoleUser, Content: "@assign @bob@x.io fix it"},
		{Role: models.RoleTask, Content: "task", AssignedTo: "bob@x.io", TaskTitle: "Fix it", TaskDetails: "fix it"},
		{Role: models.RoleAssistant, Content: "Task created", CreatedAt: "2024-05-01T10:00:00.123456"},
	})
	require.Len(t, got, 3)
	entries := tr.Entries()
	assert.Equal(t, models.RoleUser, entries[0].Role)
	assert.Equal(t, "bob@x.io", entries[1].AssignedTo)
	assert.Equal(t, "Fix it", entries[1].TaskTitle)
	assert.Equal(t, 2024, entries[2].CreatedAt.Year())
	for _, e := range entries {
		assert.Equal(t, StateConfirmed, e.State)
		assert.NotEmpty(t, e.ID)
	}
}

func TestLoadReplacesEntries(t *testing.T) {
	tr := New()
	old := tr.Append(Entry{Role: models.RoleUser, Content: "stale", State: StatePending})
	tr.Load([]models.Message{{Role: models.RoleAssistant, Content: "fresh"}})

	entries := tr.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].Content)
	assert.ErrorIs(t, tr.Confirm(old.ID), ErrEntryNotFound)
}

func TestFromMessageFallsBackToNow(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	e := FromMessage(models.Message{Role: models.RoleUser, CreatedAt: "yesterday"}, now)
	assert.Equal(t, now, e.CreatedAt)
}

func TestConcurrentAppend(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := tr.Append(Entry{Role: models.RoleUser, State: StatePending})
			_ = tr.Confirm(e.ID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, tr.Len())
	for _, e := range tr.Entries() {
		assert.Equal(t, StateConfirmed, e.State)
	}
}

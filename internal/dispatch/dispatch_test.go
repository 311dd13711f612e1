package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sociofi/internal/composer"
	"sociofi/internal/models"
	"sociofi/internal/session"
	"sociofi/internal/transcript"
)

type fakeBackend struct {
	mu            sync.Mutex
	sent          []string
	tasks         []models.CreateTaskRequest
	announcements []models.CreateAnnouncementRequest

	replyErr error
	gate     chan struct{}
	entered  chan struct{}
	result   []models.Message
}

func (f *fakeBackend) SendMessage(ctx context.Context, token string, chatID int64, content string) (*models.Reply, error) {
	f.mu.Lock()
	f.sent = append(f.sent, content)
	f.mu.Unlock()
	if f.entered != nil {
		close(f.entered)
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	return &models.Reply{Content: "echo: " + content}, nil
}

func (f *fakeBackend) CreateTask(ctx context.Context, token string, chatID int64, req models.CreateTaskRequest) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, req)
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	return f.result, nil
}

func (f *fakeBackend) CreateAnnouncement(ctx context.Context, token string, chatID int64, req models.CreateAnnouncementRequest) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announcements = append(f.announcements, req)
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	return f.result, nil
}

var (
	testSession = &session.Session{ID: "s1", Token: "tok", User: models.User{ID: "1", Email: "lead@sociofi.test", Role: "CTO"}}
	testRoster  = []models.User{
		{ID: "2", FirstName: "Jane", LastName: "Doe", Email: "jane@sociofi.test"},
		{ID: "3", FirstName: "Omar", LastName: "Rahman", Email: "omar@sociofi.test"},
	}
)

func TestSubmitIgnoresBlankDraft(t *testing.T) {
	fb := &fakeBackend{}
	d := New(fb, zap.NewNop())
	comp := composer.New()
	comp.Update("   ", testRoster)
	tr := transcript.New()

	out := d.Submit(context.Background(), testSession, 7, comp, tr, "")
	assert.True(t, out.Ignored)
	assert.Zero(t, tr.Len())
	assert.Empty(t, fb.sent)
}

func TestSubmitPlainPendingThenConfirmed(t *testing.T) {
	fb := &fakeBackend{gate: make(chan struct{}), entered: make(chan struct{})}
	d := New(fb, zap.NewNop())
	comp := composer.New()
	tr := transcript.New()

	done := make(chan Outcome, 1)
	go func() {
		done <- d.Submit(context.Background(), testSession, 7, comp, tr, "hello team")
	}()

	select {
	case <-fb.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("backend was never called")
	}
	entries := tr.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.RoleUser, entries[0].Role)
	assert.Equal(t, transcript.StatePending, entries[0].State)
	assert.Empty(t, comp.State().Draft)

	close(fb.gate)
	out := <-done
	require.Empty(t, out.Error)
	require.Len(t, out.Appended, 2)

	entries = tr.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, transcript.StateConfirmed, entries[0].State)
	assert.Equal(t, models.RoleAssistant, entries[1].Role)
	assert.Equal(t, "echo: hello team", entries[1].Content)
}

func TestSubmitPlainFailureMarksEntry(t *testing.T) {
	fb := &fakeBackend{replyErr: errors.New("backend down")}
	d := New(fb, zap.NewNop())
	comp := composer.New()
	tr := transcript.New()

	out := d.Submit(context.Background(), testSession, 7, comp, tr, "hi")
	assert.Equal(t, "Failed to send message", out.Error)
	assert.Error(t, out.Err)

	entries := tr.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, transcript.StateFailed, entries[0].State)
	assert.Equal(t, "backend down", entries[0].FailureReason)
	assert.Len(t, fb.sent, 1, "no retry")
}

func TestSubmitTask(t *testing.T) {
	fb := &fakeBackend{result: []models.Message{
		{Role: models.RoleUser, Content: "@assign @jane@sociofi.test prepare the q3 report for the board"},
		{Role: models.RoleTask, Content: "Task assigned", AssignedTo: "jane@sociofi.test", TaskTitle: "Prepare the q3 report for"},
	}}
	d := New(fb, zap.NewNop())
	comp := composer.New()
	comp.Update("@assign ja", testRoster)
	_, err := comp.Select(testRoster[0])
	require.NoError(t, err)
	st := comp.Update(comp.State().Draft+"prepare the q3 report for the board ", testRoster)
	require.Equal(t, composer.PromptTask, st.Prompt)

	tr := transcript.New()
	out := d.Submit(context.Background(), testSession, 7, comp, tr, "")
	require.Empty(t, out.Error)
	assert.Equal(t, KindTask, out.Kind)

	require.Len(t, fb.tasks, 1)
	req := fb.tasks[0]
	assert.Equal(t, "jane@sociofi.test", req.AssignedTo)
	assert.Equal(t, models.TaskPlanning, req.Status)
	assert.Equal(t, "@assign @jane@sociofi.test prepare the q3 report for the board", req.Details)
	assert.Equal(t, "@assign @jane@sociofi.test prepare the q3", req.Title)

	require.Equal(t, 2, tr.Len())
	assert.Equal(t, models.RoleTask, tr.Entries()[1].Role)
	assert.Empty(t, comp.State().Draft)
	assert.Nil(t, comp.State().Assignee)
}

func TestSubmitAnnouncement(t *testing.T) {
	fb := &fakeBackend{result: []models.Message{
		{Role: models.RoleAnnouncement, Content: "office closed friday", AnnouncementTitle: "Office closed friday"},
	}}
	d := New(fb, zap.NewNop())
	d.now = func() time.Time { return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) }
	comp := composer.New()
	tr := transcript.New()

	out := d.Submit(context.Background(), testSession, 42, comp, tr, "@announce office closed friday")
	require.Empty(t, out.Error)
	assert.Equal(t, KindAnnouncement, out.Kind)

	require.Len(t, fb.announcements, 1)
	req := fb.announcements[0]
	assert.Equal(t, "office closed friday", req.Content)
	assert.Equal(t, "Office closed friday", req.Title)
	assert.Equal(t, "42", req.ChatID)
	assert.Equal(t, "2026-03-02T09:30:00.000Z", req.Date)
	require.Len(t, out.Appended, 1)
	assert.Equal(t, "Office closed friday", out.Appended[0].AnnouncementTitle)
	assert.Equal(t, composer.PromptNone, comp.State().Prompt)
}

func TestSubmitTaskFailureResetsComposer(t *testing.T) {
	fb := &fakeBackend{replyErr: errors.New("boom")}
	d := New(fb, zap.NewNop())
	comp := composer.New()
	comp.Update("@assign om", testRoster)
	_, err := comp.Select(testRoster[1])
	require.NoError(t, err)
	tr := transcript.New()

	out := d.Submit(context.Background(), testSession, 7, comp, tr, "")
	assert.Equal(t, "Failed to create task", out.Error)
	assert.Zero(t, tr.Len())
	assert.Equal(t, composer.PromptNone, comp.State().Prompt)
}

func TestResolveFallsBackToPlainWithoutAssignee(t *testing.T) {
	action, ok := Resolve(composer.State{Draft: "@assign nobody", Prompt: composer.PromptTask})
	require.True(t, ok)
	assert.Equal(t, KindPlain, action.Kind)
}

func TestSubmitKeepsRosterForMentions(t *testing.T) {
	fb := &fakeBackend{}
	d := New(fb, zap.NewNop())
	comp := composer.New()
	comp.Update("@", testRoster)
	tr := transcript.New()

	out := d.Submit(context.Background(), testSession, 7, comp, tr, "hello")
	require.Empty(t, out.Error)

	st, err := comp.PickCommand(composer.CommandMention)
	require.NoError(t, err)
	assert.Len(t, st.Classification.Candidates, len(testRoster))
}

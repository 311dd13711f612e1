package dispatch

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"sociofi/internal/composer"
	"sociofi/internal/models"
	"sociofi/internal/session"
	"sociofi/internal/transcript"
)

// Backend is the set of chat side effects a submit can trigger.
type Backend interface {
	SendMessage(ctx context.Context, token string, chatID int64, content string) (*models.Reply, error)
	CreateTask(ctx context.Context, token string, chatID int64, req models.CreateTaskRequest) ([]models.Message, error)
	CreateAnnouncement(ctx context.Context, token string, chatID int64, req models.CreateAnnouncementRequest) ([]models.Message, error)
}

// Kind names the request a submit resolves to.
type Kind string

const (
	KindPlain        Kind = "plain"
	KindTask         Kind = "task"
	KindAnnouncement Kind = "announcement"
)

// Action is the request body about to be sent. It only lives for one submit.
type Action struct {
	Kind     Kind
	Text     string
	Assignee string
	Title    string
	Details  string
	Content  string
}

// Resolve turns composer state into an action. Blank drafts resolve to nothing.
func Resolve(st composer.State) (Action, bool) {
	if strings.TrimSpace(st.Draft) == "" {
		return Action{}, false
	}
	switch {
	case st.Prompt == composer.PromptTask && st.Assignee != nil:
		details := strings.TrimSpace(st.Draft)
		return Action{
			Kind:     KindTask,
			Assignee: st.Assignee.Email,
			Title:    composer.DeriveTitle(details),
			Details:  details,
		}, true
	case st.Prompt == composer.PromptAnnouncement:
		content := composer.StripAnnounce(st.Draft)
		return Action{
			Kind:    KindAnnouncement,
			Title:   composer.DeriveTitle(content),
			Content: content,
		}, true
	default:
		return Action{Kind: KindPlain, Text: st.Draft}, true
	}
}

// Outcome reports what a submit did to the transcript. Failures are carried
// inline; Submit never returns an error.
type Outcome struct {
	Kind     Kind               `json:"kind,omitempty"`
	Ignored  bool               `json:"ignored,omitempty"`
	Appended []transcript.Entry `json:"appended"`
	Error    string             `json:"error,omitempty"`
	Err      error              `json:"-"`
}

// Dispatcher sends finalized drafts to the backend.
type Dispatcher struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
}

func New(b Backend, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{backend: b, logger: logger, now: time.Now}
}

// Submit sends the composer's draft for chatID and records the result in tr.
// A non-empty text replaces the draft first. The composer is reset before the
// backend is called, whatever the result.
func (d *Dispatcher) Submit(ctx context.Context, sess *session.Session, chatID int64, comp *composer.Composer, tr *transcript.Transcript, text string) Outcome {
	if text != "" {
		comp.SetDraft(text)
	}
	action, ok := Resolve(comp.State())
	if !ok {
		return Outcome{Ignored: true, Appended: []transcript.Entry{}}
	}
	comp.Reset()

	switch action.Kind {
	case KindTask:
		return d.submitTask(ctx, sess, chatID, action, tr)
	case KindAnnouncement:
		return d.submitAnnouncement(ctx, sess, chatID, action, tr)
	default:
		return d.submitPlain(ctx, sess, chatID, action, tr)
	}
}

func (d *Dispatcher) submitPlain(ctx context.Context, sess *session.Session, chatID int64, action Action, tr *transcript.Transcript) Outcome {
	pending := tr.Append(transcript.Entry{
		Role:    models.RoleUser,
		Content: action.Text,
		State:   transcript.StatePending,
	})

	reply, err := d.backend.SendMessage(ctx, sess.Token, chatID, action.Text)
	if err != nil {
		if ferr := tr.Fail(pending.ID, err.Error()); ferr != nil {
			d.logger.Warn("mark message failed", zap.String("entry_id", pending.ID), zap.Error(ferr))
		}
		pending.State = transcript.StateFailed
		pending.FailureReason = err.Error()
		return d.failed(KindPlain, chatID, err, pending)
	}
	if err := tr.Confirm(pending.ID); err != nil {
		d.logger.Warn("confirm message failed", zap.String("entry_id", pending.ID), zap.Error(err))
	}
	pending.State = transcript.StateConfirmed
	assistant := tr.Append(transcript.Entry{Role: models.RoleAssistant, Content: reply.Content})
	return Outcome{Kind: KindPlain, Appended: []transcript.Entry{pending, assistant}}
}

func (d *Dispatcher) submitTask(ctx context.Context, sess *session.Session, chatID int64, action Action, tr *transcript.Transcript) Outcome {
	msgs, err := d.backend.CreateTask(ctx, sess.Token, chatID, models.CreateTaskRequest{
		AssignedTo: action.Assignee,
		Title:      action.Title,
		Details:    action.Details,
		Status:     models.TaskPlanning,
	})
	if err != nil {
		return d.failed(KindTask, chatID, err)
	}
	return Outcome{Kind: KindTask, Appended: tr.AppendMessages(msgs)}
}

func (d *Dispatcher) submitAnnouncement(ctx context.Context, sess *session.Session, chatID int64, action Action, tr *transcript.Transcript) Outcome {
	msgs, err := d.backend.CreateAnnouncement(ctx, sess.Token, chatID, models.CreateAnnouncementRequest{
		Title:   action.Title,
		Content: action.Content,
		ChatID:  strconv.FormatInt(chatID, 10),
		Date:    d.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return d.failed(KindAnnouncement, chatID, err)
	}
	return Outcome{Kind: KindAnnouncement, Appended: tr.AppendMessages(msgs)}
}

func (d *Dispatcher) failed(kind Kind, chatID int64, err error, appended ...transcript.Entry) Outcome {
	d.logger.Warn("submit failed",
		zap.String("kind", string(kind)),
		zap.Int64("chat_id", chatID),
		zap.Error(err))
	if appended == nil {
		appended = []transcript.Entry{}
	}
	return Outcome{Kind: kind, Appended: appended, Error: userMessage(kind), Err: err}
}

func userMessage(kind Kind) string {
	switch kind {
	case KindTask:
		return "Failed to create task"
	case KindAnnouncement:
		return "Failed to create announcement"
	default:
		return "Failed to send message"
	}
}

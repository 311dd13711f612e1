package transcript

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sociofi/internal/models"
)

// State tracks whether an entry has been acknowledged by the backend.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

var (
	ErrInvalidTransition = errors.New("invalid transcript transition")
	ErrEntryNotFound     = errors.New("transcript entry not found")
)

// Entry is one rendered row of a chat transcript.
type Entry struct {
	ID                string      `json:"id"`
	Role              models.Role `json:"role"`
	Content           string      `json:"content"`
	AssignedTo        string      `json:"assignedTo,omitempty"`
	TaskTitle         string      `json:"taskTitle,omitempty"`
	TaskDetails       string      `json:"taskDetails,omitempty"`
	AnnouncementTitle string      `json:"announcementTitle,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	State             State       `json:"state"`
	FailureReason     string      `json:"failure_reason,omitempty"`
}

// FromMessage converts a backend message into a confirmed entry. Unparseable
// timestamps fall back to now.
func FromMessage(msg models.Message, now time.Time) Entry {
	created := now
	if msg.CreatedAt != "" {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, msg.CreatedAt); err == nil {
				created = ts
				break
			}
		}
	}
	return Entry{
		ID:                uuid.NewString(),
		Role:              msg.Role,
		Content:           msg.Content,
		AssignedTo:        msg.AssignedTo,
		TaskTitle:         msg.TaskTitle,
		TaskDetails:       msg.TaskDetails,
		AnnouncementTitle: msg.AnnouncementTitle,
		CreatedAt:         created,
		State:             StateConfirmed,
	}
}

// Transcript is the append-only, arrival-ordered entry list of one chat.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
	now     func() time.Time
}

func New() *Transcript {
	return &Transcript{index: make(map[string]int), now: time.Now}
}

// Append adds an entry and returns it with its id and timestamp filled in.
func (t *Transcript) Append(entry Entry) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLocked(entry)
}

// AppendMessages appends backend messages verbatim as confirmed entries.
func (t *Transcript) AppendMessages(msgs []models.Message) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, t.appendLocked(FromMessage(msg, t.now())))
	}
	return out
}

func (t *Transcript) appendLocked(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = t.now()
	}
	if entry.State == "" {
		entry.State = StateConfirmed
	}
	t.index[entry.ID] = len(t.entries)
	t.entries = append(t.entries, entry)
	return entry
}

// Confirm moves a pending entry to confirmed.
func (t *Transcript) Confirm(id string) error {
	return t.transition(id, StateConfirmed, "")
}

// Fail moves a pending entry to failed and records why.
func (t *Transcript) Fail(id, reason string) error {
	return t.transition(id, StateFailed, reason)
}

func (t *Transcript) transition(id string, to State, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	entry := &t.entries[pos]
	if entry.State != StatePending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, entry.State, to)
	}
	entry.State = to
	entry.FailureReason = reason
	return nil
}

// Entries returns a copy of the transcript in arrival order.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Load replaces the transcript with a fresh server fetch.
func (t *Transcript) Load(msgs []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.index = make(map[string]int, len(msgs))
	for _, msg := range msgs {
		t.appendLocked(FromMessage(msg, t.now()))
	}
}

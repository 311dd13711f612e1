package composer

import (
	"errors"
	"regexp"
	"slices"
	"sync"

	"sociofi/internal/models"
)

// Prompt is the secondary input panel the composer has open.
type Prompt string

const (
	PromptNone         Prompt = ""
	PromptTask         Prompt = "task"
	PromptAnnouncement Prompt = "announcement"
)

// Command is an entry of the bare-@ command menu.
type Command string

const (
	CommandAssign   Command = "assign"
	CommandMention  Command = "mention"
	CommandAnnounce Command = "announce"
)

var (
	ErrUnknownCommand = errors.New("unknown composer command")
	ErrNotSelecting   = errors.New("composer is not offering candidates")
)

var trailingMention = regexp.MustCompile(`@[^@]*$`)

// State is a snapshot of one chat's draft.
type State struct {
	Draft          string         `json:"draft"`
	Classification Classification `json:"classification"`
	Prompt         Prompt         `json:"prompt,omitempty"`
	Assignee       *models.User   `json:"assignee,omitempty"`
}

// Composer holds the transient draft state of one chat. The classification is
// recomputed from the draft on every update; only the pending assignee is
// carried across keystrokes.
type Composer struct {
	mu       sync.Mutex
	draft    string
	class    Classification
	prompt   Prompt
	assignee *models.User
	roster   []models.User
}

func New() *Composer {
	return &Composer{class: Classification{Mode: ModeNone}}
}

// Update replaces the draft and reclassifies it.
func (c *Composer) Update(text string, roster []models.User) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
	c.roster = roster
	c.class = Classify(text, roster)
	if c.class.Mode == ModeAnnounce {
		c.prompt = PromptAnnouncement
	}
	return c.snapshotLocked()
}

// SetDraft replaces the draft and reclassifies it against the roster from the
// last Update.
func (c *Composer) SetDraft(text string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
	c.class = Classify(text, c.roster)
	if c.class.Mode == ModeAnnounce {
		c.prompt = PromptAnnouncement
	}
	return c.snapshotLocked()
}

// PickCommand applies a choice from the command menu.
func (c *Composer) PickCommand(cmd Command) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch cmd {
	case CommandAssign:
		c.draft = tokenAssign + " "
		c.class = Classify(c.draft, c.roster)
	case CommandAnnounce:
		c.draft = tokenAnnounce + " "
		c.class = Classify(c.draft, c.roster)
		c.prompt = PromptAnnouncement
	case CommandMention:
		c.class = Classification{
			Mode:       ModeMention,
			Candidates: FilterRoster(c.roster, ""),
			Overlay:    true,
		}
	default:
		return c.snapshotLocked(), ErrUnknownCommand
	}
	return c.snapshotLocked(), nil
}

// Select picks a candidate from the suggestion list.
func (c *Composer) Select(user models.User) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.class.Mode {
	case ModeAssign:
		c.draft = tokenAssign + " @" + user.Email + " "
		picked := user
		c.assignee = &picked
		c.prompt = PromptTask
		c.class = Classification{Mode: ModeAssign}
	case ModeMention:
		c.draft = trailingMention.ReplaceAllLiteralString(c.draft, "@"+user.Email+" ")
		c.class = Classification{Mode: ModeNone}
	default:
		return c.snapshotLocked(), ErrNotSelecting
	}
	return c.snapshotLocked(), nil
}

// Cancel closes any open prompt and drops the pending assignee, keeping the draft.
func (c *Composer) Cancel() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompt = PromptNone
	c.assignee = nil
	c.class.Overlay = false
	c.class.ShowMenu = false
	return c.snapshotLocked()
}

// Reset discards the draft entirely.
func (c *Composer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = ""
	c.prompt = PromptNone
	c.assignee = nil
	c.class = Classification{Mode: ModeNone}
}

func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Composer) snapshotLocked() State {
	st := State{
		Draft:          c.draft,
		Classification: c.class,
		Prompt:         c.prompt,
	}
	st.Classification.Candidates = slices.Clone(c.class.Candidates)
	if c.assignee != nil {
		a := *c.assignee
		st.Assignee = &a
	}
	return st
}

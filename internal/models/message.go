package models

type Role string

const (
	RoleUser         Role = "user"
	RoleAssistant    Role = "assistant"
	RoleSystem       Role = "system"
	RoleTask         Role = "task"
	RoleAnnouncement Role = "announcement"
)

// Message is one chat entry as returned by the backend. Task and announcement
// flows return several of these, carrying the optional structured fields.
type Message struct {
	Role              Role   `json:"role" validate:"required,oneof=user assistant system task announcement"`
	Content           string `json:"content"`
	AssignedTo        string `json:"assignedTo,omitempty"`
	TaskTitle         string `json:"taskTitle,omitempty"`
	TaskDetails       string `json:"taskDetails,omitempty"`
	AnnouncementTitle string `json:"announcementTitle,omitempty"`
	CreatedAt         string `json:"created_at,omitempty"`
}

// ChatTurn is a single prompt turn for the grounded completion route.
type ChatTurn struct {
	Role    Role   `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

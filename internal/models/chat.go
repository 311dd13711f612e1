package models

type Chat struct {
	ID          int64     `json:"id" validate:"required"`
	UserID      UserID    `json:"user_id"`
	Title       string    `json:"title"`
	LastMessage string    `json:"last_message,omitempty"`
	Messages    []Message `json:"messages,omitempty" validate:"dive"`
	CreatedAt   string    `json:"created_at,omitempty"`
	UpdatedAt   string    `json:"updated_at,omitempty"`
}

// Reply is the backend answer to a plain chat message.
type Reply struct {
	Content string `json:"content" validate:"required"`
}

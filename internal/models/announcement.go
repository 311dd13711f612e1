package models

type Announcement struct {
	ID      int64  `json:"id" validate:"required"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Date    string `json:"date"`
}

type CreateAnnouncementRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
	ChatID  string `json:"chat_id" validate:"required"`
	Date    string `json:"date" validate:"required"`
}

package models

type Meeting struct {
	ID      int64  `json:"id"`
	Title   string `json:"title" binding:"required" validate:"required"`
	Date    string `json:"date" binding:"required" validate:"required"`
	Time    string `json:"time" binding:"required" validate:"required"`
	Channel string `json:"channel" binding:"required" validate:"required"`
}

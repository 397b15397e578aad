package domain

import "time"

type Note struct {
	ID        string    `json:"id" gorm:"primaryKey;size:26"`
	UserID    string    `json:"-" gorm:"size:26;not null;index"`
	Title     string    `json:"title" gorm:"not null"`
	Content   string    `json:"content" gorm:"type:text;not null;default:''"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Note) TableName() string { return "notes" }

type NoteRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content"`
}

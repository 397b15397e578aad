package domain

import (
	"strings"
	"time"
)

// User is the identity anchor. Email is always stored in normalized form.
type User struct {
	ID          string     `json:"id" gorm:"primaryKey;size:26"`
	Email       string     `json:"email" gorm:"uniqueIndex;not null"`
	Name        string     `json:"name" gorm:"not null;default:''"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Verified    bool       `json:"verified" gorm:"not null"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// Identity is what the Auth Gate injects into the request context.
type Identity struct {
	UserID   string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email, Name: u.Name, Verified: u.Verified}
}

// NormalizeEmail returns the canonical form used for every lookup and write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Name        string `json:"name" validate:"required,max=100"`
	DateOfBirth string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
}

type SendCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Type  string `json:"type" validate:"omitempty,oneof=signup login"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric,min=4,max=10"`
}

package domain

import (
	"fmt"
	"time"
)

// Purpose says which flow a one-time code was issued for.
type Purpose string

const (
	PurposeSignup Purpose = "signup"
	PurposeLogin  Purpose = "login"
)

// ParsePurpose maps the wire value to a Purpose. An empty value means signup.
func ParsePurpose(s string) (Purpose, error) {
	switch Purpose(s) {
	case "", PurposeSignup:
		return PurposeSignup, nil
	case PurposeLogin:
		return PurposeLogin, nil
	default:
		return "", Validation(fmt.Sprintf("unknown OTP type %q: must be signup or login", s))
	}
}

// OneTimeCode is a hashed, short-lived, single-use verification code.
// Once Used is true the record never authenticates again.
type OneTimeCode struct {
	ID        string    `json:"id" gorm:"primaryKey;size:26"`
	Email     string    `json:"email" gorm:"not null;index:idx_one_time_codes_email_used,priority:1"`
	CodeHash  string    `json:"-" gorm:"not null"`
	Purpose   Purpose   `json:"purpose" gorm:"size:16;not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null;index"`
	Used      bool      `json:"used" gorm:"not null;index:idx_one_time_codes_email_used,priority:2"`
	UserID    *string   `json:"userId,omitempty" gorm:"size:26;index"`
	CreatedAt time.Time `json:"createdAt"`
}

func (OneTimeCode) TableName() string { return "one_time_codes" }

// Expired reports whether the code is past its expiry at now.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

package model

import "time"

// User represents an account. Email is stored lower-cased and is unique.
type User struct {
	ID                int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email             string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Name              string     `gorm:"size:255;not null" json:"name"`
	PasswordHash      string     `gorm:"size:255;not null" json:"-"`
	IsVerified        bool       `gorm:"not null;default:false" json:"isVerified"`
	VerificationToken *string    `gorm:"size:1024" json:"-"`
	ResetToken        *string    `gorm:"size:1024" json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// UserSummary is the public view returned by login and /auth/me.
type UserSummary struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	IsVerified bool   `json:"isVerified"`
}

// Summary strips credentials and token state.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		IsVerified: u.IsVerified,
	}
}

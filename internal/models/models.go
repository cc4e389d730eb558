package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                      uuid.UUID  `gorm:"type:uuid;primaryKey"     json:"id"`
	Email                   string     `gorm:"uniqueIndex;not null"     json:"email"`
	Name                    *string    `                                json:"name,omitempty"`
	PasswordHash            string     `gorm:"not null"                 json:"-"`
	EmailVerified           *time.Time `                                json:"email_verified,omitempty"`
	Role                    string     `gorm:"not null;default:user"    json:"role"`
	VerificationToken       *string    `gorm:"index"                    json:"-"`
	VerificationTokenExpiry *time.Time `                                json:"-"`
	ResetToken              *string    `gorm:"index"                    json:"-"`
	ResetTokenExpiry        *time.Time `                                json:"-"`
	SessionVersion          int        `gorm:"not null;default:0"       json:"-"`
	CreatedAt               time.Time  `                                json:"created_at"`
	UpdatedAt               time.Time  `                                json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

func (u *User) IsVerified() bool { return u.EmailVerified != nil }

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

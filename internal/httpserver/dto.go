package httpserver

import (
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/auth_service/internal/models"
)

type registerRequest struct {
	Name     *string `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type deleteAccountRequest struct {
	Password    string `json:"password"`
	ConfirmText string `json:"confirmText"`
}

type updateProfileRequest struct {
	Name *string `json:"name"`
}

// userView is the public projection of a user. It never carries the hash or
// token columns.
type userView struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	Name          *string    `json:"name"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
	Role          string     `json:"role,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

func loginView(u *models.User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name}
}

func profileView(u *models.User) userView {
	v := userView{ID: u.ID, Email: u.Email, Name: u.Name, EmailVerified: u.EmailVerified, Role: u.Role}
	created := u.CreatedAt
	v.CreatedAt = &created
	return v
}

func updatedView(u *models.User) userView {
	v := userView{ID: u.ID, Email: u.Email, Name: u.Name, EmailVerified: u.EmailVerified, Role: u.Role}
	updated := u.UpdatedAt
	v.UpdatedAt = &updated
	return v
}

type sessionView struct {
	User      sessionUser `json:"user"`
	ExpiresAt time.Time   `json:"expires"`
}

type sessionUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Role          string `json:"role"`
}

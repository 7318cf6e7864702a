package models

import "time"

// UserResponse is the outbound representation of the calling user.
type UserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	IsActive    bool       `json:"is_active"`
}

// NewUserResponse maps a stored user to its response shape.
func NewUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		LastLoginAt: u.LastLoginAt,
		IsActive:    u.IsActive,
	}
}

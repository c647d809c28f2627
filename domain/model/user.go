package model

import (
	"time"
)

type UserRole string

const (
	RoleAdmin UserRole = "admin"
)

// User is the identity carried by an API token
type User struct {
	Username  string    `json:"username"`
	Role      UserRole  `json:"role"`
	LastLogin time.Time `json:"lastLogin"`
}

type UserResponse struct {
	Username  string    `json:"username"`
	Role      UserRole  `json:"role"`
	LastLogin time.Time `json:"lastLogin"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		Username:  u.Username,
		Role:      u.Role,
		LastLogin: u.LastLogin,
	}
}

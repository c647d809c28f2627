package inbound

import (
	"github.com/ajkula/dirmon/domain/model"
)

// AuthService guards the HTTP API with the configured admin account
type AuthService interface {
	Login(username, password string) (*model.User, string, error) // user, token, error
	ValidateToken(token string) (*model.User, error)
	// Logout invalidates every token issued so far
	Logout(username string) error
}

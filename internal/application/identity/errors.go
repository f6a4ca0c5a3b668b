package identity

import "errors"

var (
	ErrEmailTaken       = errors.New("Email already registered")
	ErrNotAuthenticated = errors.New("Not authenticated")
)

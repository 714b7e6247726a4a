package domain

import "strings"

// Account is the sole persisted entity: a user record keyed by a
// repository-assigned surrogate id.
type Account struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}

// Redacted returns a copy of the account without its password hash.
func (a *Account) Redacted() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.PasswordHash = ""
	return &clone
}

// AccountInput is an inbound create/update payload. A nil field was not
// supplied by the caller.
type AccountInput struct {
	Name            *string
	Email           *string
	Password        *string
	ConfirmPassword *string
}

// Empty reports whether no field was supplied.
func (in AccountInput) Empty() bool {
	return in.Name == nil && in.Email == nil && in.Password == nil && in.ConfirmPassword == nil
}

// NormalizeEmail returns the canonical stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package types

import "time"

// User represents an account in the system.
// It is keyed by the normalized email address.
type User struct {
	// Email is the unique, lower-cased identifier of the user.
	Email string `json:"email" dynamodbav:"email" db:"email"`

	// Name is the user's display name.
	Name string `json:"name" dynamodbav:"name" db:"name"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" dynamodbav:"passwordHash" db:"password_hash"`

	// CreatedAt is the timestamp when the user registered. It never changes.
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt" db:"created_at"`

	// LoginCount is the number of successful logins so far.
	LoginCount int `json:"loginCount" dynamodbav:"loginCount" db:"login_count"`

	// LastLogin is the timestamp of the most recent successful login,
	// nil until the user logs in for the first time.
	LastLogin *time.Time `json:"lastLogin" dynamodbav:"lastLogin,omitempty" db:"last_login"`
}

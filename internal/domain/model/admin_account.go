package model

import "time"

// AdminAccount holds dashboard credentials. Passwords are stored as bcrypt
// hashes; the plaintext never leaves the use case layer.
type AdminAccount struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

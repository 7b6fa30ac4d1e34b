package model

import (
	"time"
)

// ActivationCode represents a single-use code that binds to one device on
// first successful verification and expires ValidDays after that moment.
type ActivationCode struct {
	ID        string
	Code      string
	IsUsed    bool
	UsedAt    *time.Time // Pointer to allow for NULL
	UsedBy    *string    // Pointer to allow for NULL
	ValidDays *int       // Validity window in days, anchored at UsedAt
	ExpiresAt *time.Time // Set at activation; legacy rows carry an eager value from generation time
	CardType  *string    // Informational plan tag, no behavioral effect
	CreatedAt time.Time
}

// ActualExpiry computes the moment this code stops being valid.
//
// Rule order: UsedAt + ValidDays when both are present; otherwise the stored
// ExpiresAt (legacy rows precomputed it at generation time); otherwise nil,
// meaning the code never expires. Unused codes with ValidDays set have no
// expiry yet: the window only starts ticking at first verification.
func (c *ActivationCode) ActualExpiry() *time.Time {
	if c.UsedAt != nil && c.ValidDays != nil {
		t := c.UsedAt.Add(time.Duration(*c.ValidDays) * 24 * time.Hour)
		return &t
	}
	return c.ExpiresAt
}

// IsExpired reports whether the code's actual expiry has passed at `now`.
// Codes without an expiry never report expired.
func (c *ActivationCode) IsExpired(now time.Time) bool {
	exp := c.ActualExpiry()
	return exp != nil && exp.Before(now)
}

// CodeStats is a read-only projection over all activation codes.
type CodeStats struct {
	Total   int `json:"total"`
	Used    int `json:"used"`
	Expired int `json:"expired"`
	Active  int `json:"active"`
}

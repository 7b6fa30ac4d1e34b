package model

import "time"

// SystemConfig is a keyed configuration entry editable from the dashboard.
// Value is stored as a raw string; callers decide how to interpret it.
type SystemConfig struct {
	Key         string
	Value       string
	Description string
	UpdatedAt   time.Time
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrCodeNotFound        = errors.New("activation code not found")
	ErrCodeAlreadyUsed     = errors.New("activation code already used by another device")
	ErrCodeExpired         = errors.New("activation code expired")
	ErrGenerationExhausted = errors.New("code generation attempts exhausted")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrRateLimited         = errors.New("too many requests")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
	ErrInvalidExecContext  = errors.New("invalid executor context")
)

// DeviceBoundError reports that the requesting device already holds a live
// binding to a different code. BoundCode is carried for diagnostics.
type DeviceBoundError struct {
	BoundCode string
}

func (e *DeviceBoundError) Error() string {
	return fmt.Sprintf("device already bound to activation code %s", e.BoundCode)
}

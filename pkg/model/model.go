// Package model defines the core domain types for gotalk.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Validation limits for registration input. Lengths are checked after
// trimming surrounding whitespace.
const (
	MinLoginLength    = 3
	MinPasswordLength = 6
	MinNameLength     = 2
	MaxNameLength     = 64
)

var (
	ErrLoginTooShort    = fmt.Errorf("login must be at least %d characters", MinLoginLength)
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrNameTooShort     = fmt.Errorf("name must be at least %d characters", MinNameLength)
	ErrNameTooLong      = fmt.Errorf("name must not exceed %d characters", MaxNameLength)
	ErrInvalidRole      = errors.New("invalid role: must be ADMIN or USER")

	// ErrNameAlreadyBusy is reported when a display name is already bound to
	// a live session in the registry.
	ErrNameAlreadyBusy = errors.New("name already in use by an active session")

	// ErrUserNotFound is reported when no live session matches a display name.
	ErrUserNotFound = errors.New("no active session with that name")
)

// ValidateCredentials checks registration input against the minimum length
// rules. Values are trimmed before checking, matching what gets stored.
func ValidateCredentials(login, password, name string) error {
	if len(strings.TrimSpace(login)) < MinLoginLength {
		return ErrLoginTooShort
	}
	if len(strings.TrimSpace(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	n := strings.TrimSpace(name)
	if len(n) < MinNameLength {
		return ErrNameTooShort
	}
	if len(n) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

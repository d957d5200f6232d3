// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"fmt"
)

const (
	MaxUserIDLen      = 64
	MaxDisplayNameLen = 64
	MaxAvatarLen      = 2048
)

var (
	// ErrInvalidJoin is returned for every rejected join attempt; the concrete
	// reason is wrapped next to it.
	ErrInvalidJoin = errors.New("invalid join")

	ErrUserIDEmpty        = errors.New("user id empty")
	ErrUserIDTooLong      = errors.New("user id too long")
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrAvatarTooLong      = errors.New("avatar too long")
	ErrIdentityMismatch   = errors.New("identity does not match verified identity")
	ErrAlreadyJoined      = errors.New("connection already joined as another identity")
)

type UserID string

type User struct {
	ID          UserID `json:"userId"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
// An empty display name falls back to the identity itself.
func NewUser(id UserID, displayName, avatar string) (*User, error) {
	if len(id) == 0 {
		return nil, invalidJoin(ErrUserIDEmpty)
	}
	if len(id) > MaxUserIDLen {
		return nil, invalidJoin(ErrUserIDTooLong)
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, invalidJoin(ErrDisplayNameTooLong)
	}
	if len(avatar) > MaxAvatarLen {
		return nil, invalidJoin(ErrAvatarTooLong)
	}
	if displayName == "" {
		displayName = string(id)
	}
	return &User{ID: id, DisplayName: displayName, Avatar: avatar}, nil
}

// AlreadyJoined is returned when a connection tries to switch identity.
func AlreadyJoined(current UserID) error {
	return fmt.Errorf("%w: %w (joined as %q)", ErrInvalidJoin, ErrAlreadyJoined, current)
}

func invalidJoin(reason error) error {
	return fmt.Errorf("%w: %w", ErrInvalidJoin, reason)
}

// MismatchedIdentity builds the join error used when the identity announced on
// join differs from the one the identity provider verified.
func MismatchedIdentity(announced, verified UserID) error {
	return fmt.Errorf("%w: %w (announced %q, verified %q)", ErrInvalidJoin, ErrIdentityMismatch, announced, verified)
}

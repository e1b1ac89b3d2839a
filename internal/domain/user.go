// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const MaxIdentityLen = 128

var (
	ErrIdentityTooLong = errors.New("identity too long")
	ErrIdentityEmpty   = errors.New("identity empty")
)

// Identity is the externally issued user id. The relay never creates or
// verifies it, it only keys presence by it.
type Identity string

func (i Identity) String() string { return string(i) }

func (i Identity) Validate() error {
	if len(strings.TrimSpace(string(i))) == 0 {
		return ErrIdentityEmpty
	}
	if len(i) > MaxIdentityLen {
		return ErrIdentityTooLong
	}
	return nil
}

// CallerInfo is what the callee sees on its ringing screen. It is relayed
// as sent, apart from Identity; the frame size is bounded by read_limit.
type CallerInfo struct {
	Identity    Identity `json:"identity"`
	DisplayName string   `json:"displayName"`
	AvatarURL   string   `json:"avatarUrl,omitempty"`
}

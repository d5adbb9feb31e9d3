package chat

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Payload limits. Anything outside them is dropped without a reply.
const (
	MaxUsernameLength    = 50
	MaxAvatarLength      = 2048
	MaxMessageLength     = 5000
	MaxMessageTypeLength = 20
	MaxReactionLength    = 32
	MaxRoomNameLength    = 100
	MaxRoomDescLength    = 500
)

// MinFrameSize is the smallest inbound frame limit that still fits every valid
// event. A rune can take 12 bytes once JSON-escaped (a \uXXXX surrogate
// pair), plus room for the envelope and the other fields.
const MinFrameSize = MaxMessageLength*12 + 4096

var (
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrUsernameEmpty   = fmt.Errorf("%w: username cannot be empty", ErrInvalidPayload)
	ErrUsernameTooLong = fmt.Errorf("%w: username exceeds maximum length", ErrInvalidPayload)
	ErrAvatarTooLong   = fmt.Errorf("%w: avatar exceeds maximum length", ErrInvalidPayload)
	ErrMessageEmpty    = fmt.Errorf("%w: message content cannot be empty", ErrInvalidPayload)
	ErrMessageTooLong  = fmt.Errorf("%w: message exceeds maximum length", ErrInvalidPayload)
	ErrMessageType     = fmt.Errorf("%w: message type exceeds maximum length", ErrInvalidPayload)
	ErrReactionInvalid = fmt.Errorf("%w: reaction must be 1-32 characters", ErrInvalidPayload)
	ErrRoomIDEmpty     = fmt.Errorf("%w: room id is required", ErrInvalidPayload)
	ErrInvalidEncoding = fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidPayload)
	ErrRoomNameEmpty   = fmt.Errorf("%w: room name cannot be empty", ErrInvalidPayload)
	ErrRoomNameTooLong = fmt.Errorf("%w: room name exceeds maximum length", ErrInvalidPayload)
	ErrRoomDescTooLong = fmt.Errorf("%w: room description exceeds maximum length", ErrInvalidPayload)
)

// ValidateUsername validates a display name.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return ErrUsernameEmpty
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if !utf8.ValidString(username) {
		return ErrInvalidEncoding
	}
	return nil
}

// ValidateAvatar validates an avatar reference. Empty is allowed.
func ValidateAvatar(avatar string) error {
	if len(avatar) > MaxAvatarLength {
		return ErrAvatarTooLong
	}
	return nil
}

// ValidateMessage validates message content and type.
func ValidateMessage(content, msgType string) error {
	if strings.TrimSpace(content) == "" {
		return ErrMessageEmpty
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !utf8.ValidString(content) {
		return ErrInvalidEncoding
	}
	if len(msgType) > MaxMessageTypeLength {
		return ErrMessageType
	}
	return nil
}

// ValidateReaction validates a reaction kind, usually a single emoji or a
// short name such as "heart".
func ValidateReaction(reaction string) error {
	n := utf8.RuneCountInString(reaction)
	if n == 0 || n > MaxReactionLength || strings.TrimSpace(reaction) == "" {
		return ErrReactionInvalid
	}
	if !utf8.ValidString(reaction) {
		return ErrInvalidEncoding
	}
	return nil
}

// ValidateRoom validates a room definition.
func ValidateRoom(name, description string) error {
	if strings.TrimSpace(name) == "" {
		return ErrRoomNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		return ErrRoomNameTooLong
	}
	if utf8.RuneCountInString(description) > MaxRoomDescLength {
		return ErrRoomDescTooLong
	}
	if !utf8.ValidString(name) || !utf8.ValidString(description) {
		return ErrInvalidEncoding
	}
	return nil
}

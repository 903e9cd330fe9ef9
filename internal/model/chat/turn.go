package chat

import (
	"time"

	"github.com/google/uuid"
)

// Origin tags who produced a turn.
type Origin string

const (
	OriginUser   Origin = "user"
	OriginSystem Origin = "system"
)

// Turn is one entry in the client-side conversation sequence.
type Turn struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Origin    Origin    `json:"origin"`
	Fallback  bool      `json:"fallback,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewTurn stamps a turn with a fresh identifier and creation time.
func NewTurn(origin Origin, content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Content:   content,
		Origin:    origin,
		CreatedAt: time.Now().UTC(),
	}
}

// IsUser reports whether the turn was typed by the user.
func (t Turn) IsUser() bool {
	return t.Origin == OriginUser
}

package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/z-tavern/client/internal/model/chat"
)

var (
	ErrUserRequired = errors.New("user id is required")
	ErrEmptyMessage = errors.New("message content is required")
)

// Service keeps each user's chat transcript in memory.
type Service struct {
	mu       sync.RWMutex
	messages map[string][]chat.Message
}

// NewService bootstraps the in-memory chat service.
func NewService() *Service {
	return &Service{
		messages: make(map[string][]chat.Message),
	}
}

// SaveMessage appends a message to the user's transcript.
func (s *Service) SaveMessage(_ context.Context, message chat.Message) (chat.Message, error) {
	if message.UserID == "" {
		return chat.Message{}, ErrUserRequired
	}
	if message.Content == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.messages[message.UserID] = append(s.messages[message.UserID], message)
	s.mu.Unlock()

	return message, nil
}

// LoadTranscript returns the stored messages for a user, oldest first. An
// unknown user has an empty transcript.
func (s *Service) LoadTranscript(_ context.Context, userID string) ([]chat.Message, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.messages[userID]
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

package ai

import (
	"context"
	"strings"

	"github.com/zhouzirui/z-tavern/client/internal/model/chat"
)

// EchoResponder answers without a model. Used when no Ark key is configured.
type EchoResponder struct{}

// Respond repeats the message back.
func (EchoResponder) Respond(_ context.Context, _ string, _ []chat.Message, message string) (string, error) {
	return "You said: " + strings.TrimSpace(message), nil
}

package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-tavern/client/internal/config"
	"github.com/zhouzirui/z-tavern/client/internal/model/chat"
)

const (
	defaultHistoryLimit = 10
	defaultAgentSteps   = 12
)

// Responder produces the bot reply for a user message.
type Responder interface {
	Respond(ctx context.Context, userID string, history []chat.Message, message string) (string, error)
}

// Service encapsulates AI-powered chat functionality
type Service struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	systemPrompt string
	historyLimit int
	logger       zerolog.Logger
}

type serviceOptions struct {
	tools []tool.BaseTool
}

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

// WithTools lets the model call tools before answering. The reply chain then
// runs a ReAct agent instead of a single model call.
func WithTools(tools ...tool.BaseTool) ServiceOption {
	return func(o *serviceOptions) { o.tools = append(o.tools, tools...) }
}

// NewService creates a new AI service instance backed by the configured Ark model.
func NewService(ctx context.Context, cfg config.AIConfig, logger zerolog.Logger, opts ...ServiceOption) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg, logger, opts...)
}

// NewServiceWithModel builds the reply chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel, cfg config.AIConfig, logger zerolog.Logger, opts ...ServiceOption) (*Service, error) {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	if len(o.tools) > 0 {
		// The Ark model only implements BindTools, not WithTools.
		agent, err := react.NewAgent(ctx, &react.AgentConfig{
			Model:       chatModel,
			ToolsConfig: compose.ToolsNodeConfig{Tools: o.tools},
			MaxStep:     defaultAgentSteps,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build tool agent: %w", err)
		}
		graph, graphOpts := agent.ExportGraph()
		chain.AppendGraph(graph, graphOpts...)
	} else {
		chain.AppendChatModel(chatModel)
	}

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	return &Service{
		chain:        runnable,
		systemPrompt: cfg.SystemPrompt,
		historyLimit: limit,
		logger:       logger.With().Str("component", "ai").Logger(),
	}, nil
}

// Respond runs the chain over the recent transcript and the new message.
func (s *Service) Respond(ctx context.Context, userID string, history []chat.Message, message string) (string, error) {
	input := map[string]any{
		"system":  s.systemPrompt,
		"history": buildHistoryMessages(history, s.historyLimit),
		"query":   message,
	}

	response, err := s.chain.Invoke(withUserID(ctx, userID), input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	s.logger.Debug().
		Str("user", userID).
		Int("history", len(history)).
		Int("length", len(response.Content)).
		Msg("generated response")
	return response.Content, nil
}

func buildHistoryMessages(messages []chat.Message, limit int) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > limit {
		startIdx = len(messages) - limit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		if msg.IsBot {
			history = append(history, schema.AssistantMessage(msg.Content, nil))
			continue
		}
		history = append(history, schema.UserMessage(msg.Content))
	}

	return history
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"sociofi/internal/models"
	"sociofi/internal/retrieval"
)

const systemPromptPrefix = "You are a helpful assistant for SocioFi Technology. Use the following context to answer questions: "

var ErrNoTurns = errors.New("chat requires at least one message")

// Retriever returns the document chunks relevant to query for a role.
type Retriever interface {
	Retrieve(ctx context.Context, role, query string) ([]string, error)
}

// Assistant answers chat turns grounded on the company documents the caller's
// role may read.
type Assistant struct {
	model     model.BaseChatModel
	retriever Retriever
	logger    *zap.Logger
}

func NewAssistant(m model.BaseChatModel, r Retriever, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{model: m, retriever: r, logger: logger}
}

// SystemPrompt renders the grounding instruction for the retrieved chunks.
func SystemPrompt(contextText string) string {
	return systemPromptPrefix + contextText
}

// StreamReply streams the completion for turns, calling chunkFn with each
// delta, and returns the full reply.
func (a *Assistant) StreamReply(ctx context.Context, role string, turns []models.ChatTurn, chunkFn func(string) error) (string, error) {
	if len(turns) == 0 {
		return "", ErrNoTurns
	}
	query := turns[len(turns)-1].Content

	var chunks []string
	if a.retriever != nil {
		var err error
		chunks, err = a.retriever.Retrieve(ctx, role, query)
		if err != nil {
			return "", fmt.Errorf("retrieve context: %w", err)
		}
	}
	a.logger.Debug("grounded chat",
		zap.String("role", role),
		zap.Int("turns", len(turns)),
		zap.Int("chunks", len(chunks)))

	messages := make([]*schema.Message, 0, len(turns)+1)
	messages = append(messages, schema.SystemMessage(SystemPrompt(retrieval.BuildContext(chunks))))
	messages = append(messages, convertTurns(turns)...)

	stream, err := a.model.Stream(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate ai stream failed: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full.String(), fmt.Errorf("read ai stream: %w", err)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		full.WriteString(chunk.Content)
		if chunkFn != nil {
			if err := chunkFn(chunk.Content); err != nil {
				return full.String(), err
			}
		}
	}
	return full.String(), nil
}

func convertTurns(turns []models.ChatTurn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		var role schema.RoleType
		switch turn.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{Role: role, Content: turn.Content})
	}
	return messages
}

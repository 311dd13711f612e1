package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sociofi/internal/config"
	"sociofi/internal/models"
)

type fakeModel struct {
	chunks    []string
	streamErr error
	got       []*schema.Message
}

func (f *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.got = input
	return schema.AssistantMessage("unused", nil), nil
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.got = input
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

type fakeRetriever struct {
	role, query string
	chunks      []string
	err         error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, role, query string) ([]string, error) {
	f.role, f.query = role, query
	return f.chunks, f.err
}

func TestStreamReplyGroundsOnRetrievedContext(t *testing.T) {
	m := &fakeModel{chunks: []string{"Leave ", "is 20 ", "days."}}
	r := &fakeRetriever{chunks: []string{"Annual leave: 20 days", "Sick leave: 10 days"}}
	a := NewAssistant(m, r, zap.NewNop())

	turns := []models.ChatTurn{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi"},
		{Role: models.RoleUser, Content: "how much leave do I get?"},
	}
	var deltas []string
	full, err := a.StreamReply(context.Background(), "CTO", turns, func(s string) error {
		deltas = append(deltas, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Leave is 20 days.", full)
	assert.Equal(t, []string{"Leave ", "is 20 ", "days."}, deltas)

	assert.Equal(t, "CTO", r.role)
	assert.Equal(t, "how much leave do I get?", r.query)

	require.Len(t, m.got, 4)
	assert.Equal(t, schema.System, m.got[0].Role)
	assert.Equal(t, SystemPrompt("Annual leave: 20 days\nSick leave: 10 days"), m.got[0].Content)
	assert.Equal(t, schema.User, m.got[1].Role)
	assert.Equal(t, schema.Assistant, m.got[2].Role)
}

func TestStreamReplyWithoutRelevantChunks(t *testing.T) {
	m := &fakeModel{chunks: []string{"ok"}}
	a := NewAssistant(m, &fakeRetriever{}, nil)
	_, err := a.StreamReply(context.Background(), "Employee", []models.ChatTurn{{Role: models.RoleUser, Content: "q"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "You are a helpful assistant for SocioFi Technology. Use the following context to answer questions: ", m.got[0].Content)
}

func TestStreamReplyErrors(t *testing.T) {
	_, err := NewAssistant(&fakeModel{}, nil, nil).StreamReply(context.Background(), "CTO", nil, nil)
	assert.ErrorIs(t, err, ErrNoTurns)

	retrieveErr := errors.New("embed down")
	_, err = NewAssistant(&fakeModel{}, &fakeRetriever{err: retrieveErr}, nil).
		StreamReply(context.Background(), "CTO", []models.ChatTurn{{Role: models.RoleUser, Content: "q"}}, nil)
	assert.ErrorIs(t, err, retrieveErr)

	streamErr := errors.New("quota")
	_, err = NewAssistant(&fakeModel{streamErr: streamErr}, nil, nil).
		StreamReply(context.Background(), "CTO", []models.ChatTurn{{Role: models.RoleUser, Content: "q"}}, nil)
	assert.ErrorIs(t, err, streamErr)

	stop := errors.New("client gone")
	full, err := NewAssistant(&fakeModel{chunks: []string{"a", "b"}}, nil, nil).
		StreamReply(context.Background(), "CTO", []models.ChatTurn{{Role: models.RoleUser, Content: "q"}}, func(string) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, "a", full)
}

func TestNewChatModelRejectsUnknownProvider(t *testing.T) {
	_, err := NewChatModel(context.Background(), config.AssistantConfig{Provider: "openai"}, nil)
	assert.ErrorContains(t, err, "not configured")

	_, err = NewChatModel(context.Background(), config.AssistantConfig{Provider: "mistral"},
		map[string]config.ProviderConfig{"mistral": {APIKey: "k"}})
	assert.ErrorContains(t, err, "invalid provider")
}

func TestNewChatModelOpenAI(t *testing.T) {
	m, err := NewChatModel(context.Background(), config.AssistantConfig{Provider: "openai", Model: "gpt-4-turbo"},
		map[string]config.ProviderConfig{"openai": {APIKey: "sk-test", BaseURL: "http://127.0.0.1:1/v1"}})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

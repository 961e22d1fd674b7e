package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveChatAndHistory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewChatService(env.users, env.chats, ChatServiceOptions{HistoryCache: env.history, MaxHistory: 3})
	ada := env.register(t, "Ada", "ada@example.com", "secret1")

	chat, err := svc.SaveChat(ctx, SaveChatInput{
		UserID:         ada.ID,
		UserMessage:    "What is an ETF?",
		AssistantReply: "An exchange traded fund.",
		Document:       &DocumentInput{Name: "report.pdf", Type: "application/pdf", Path: "uploads/report.pdf", Size: 2048},
	})
	require.NoError(t, err)
	require.NotZero(t, chat.ID)
	require.NotNil(t, chat.DocumentName)
	assert.Equal(t, "report.pdf", *chat.DocumentName)
	require.NotNil(t, chat.UploadedAt)
	require.Len(t, chat.Documents, 1)

	history, err := svc.GetHistory(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	cached, hit, err := env.history.GetHistory(ctx, ada.ID)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, cached, 1)

	for i := 0; i < 4; i++ {
		_, err := svc.SaveChat(ctx, SaveChatInput{UserID: ada.ID, UserMessage: fmt.Sprintf("q%d", i), AssistantReply: "a"})
		require.NoError(t, err)
	}

	history, err = svc.GetHistory(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "q1", history[0].UserMessage)
	assert.Equal(t, "q3", history[2].UserMessage)
}

func TestSaveChatValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewChatService(env.users, env.chats, ChatServiceOptions{})
	ada := env.register(t, "Ada", "ada@example.com", "secret1")

	_, err := svc.SaveChat(ctx, SaveChatInput{UserID: ada.ID, UserMessage: "hi"})
	assert.ErrorIs(t, err, ErrChatFieldsRequired)

	_, err = svc.SaveChat(ctx, SaveChatInput{UserID: 999, UserMessage: "hi", AssistantReply: "hello"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.GetHistory(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestClearHistory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewChatService(env.users, env.chats, ChatServiceOptions{HistoryCache: env.history})
	ada := env.register(t, "Ada", "ada@example.com", "secret1")

	for i := 0; i < 2; i++ {
		_, err := svc.SaveChat(ctx, SaveChatInput{UserID: ada.ID, UserMessage: "q", AssistantReply: "a"})
		require.NoError(t, err)
	}
	_, err := svc.GetHistory(ctx, ada.ID)
	require.NoError(t, err)

	deleted, err := svc.ClearHistory(ctx, ada.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	history, err := svc.GetHistory(ctx, ada.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAIChatEchoesWithoutModel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewChatService(env.users, env.chats, ChatServiceOptions{Assistant: &fakeAssistant{}})
	ada := env.register(t, "Ada", "ada@example.com", "secret1")

	res, err := svc.AIChat(ctx, AIChatInput{
		UserID:     ada.ID,
		Message:    "hello",
		Document:   &DocumentInput{Name: "a.pdf", Type: "application/pdf", Path: "uploads/a.pdf", Size: 10},
		Additional: []DocumentInput{{Name: "b.csv", Type: "text/csv", Size: 20}},
	})
	require.NoError(t, err)
	assert.Equal(t, echoReply("hello"), res.Reply)
	assert.NotZero(t, res.ChatID)
	assert.False(t, res.Queued)

	history, err := svc.GetHistory(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	docs := history[0].Documents
	require.Len(t, docs, 2)
	assert.Equal(t, "a.pdf", docs[0].Name)
	assert.Equal(t, "b.csv", docs[1].Name)
	assert.Equal(t, "uploads/b.csv", docs[1].Path)
}

func TestAIChatUsesModel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	assistant := &fakeAssistant{configured: true, reply: " Diversify. "}
	svc := NewChatService(env.users, env.chats, ChatServiceOptions{Assistant: assistant, SystemPrompt: "be brief"})
	ada := env.register(t, "Ada", "ada@example.com", "secret1")

	_, err := svc.SaveChat(ctx, SaveChatInput{UserID: ada.ID, UserMessage: "earlier", AssistantReply: "before"})
	require.NoError(t, err)

	res, err := svc.AIChat(ctx, AIChatInput{UserID: ada.ID, Message: "How should I invest?"})
	require.NoError(t, err)
	assert.Equal(t, "Diversify.", res.Reply)

	require.Len(t, assistant.prompts, 1)
	prompt := assistant.prompts[0]
	require.Len(t, prompt, 4)
	assert.Equal(t, "system", prompt[0].Role)
	assert.Equal(t, "earlier", prompt[1].Content)
	assert.Equal(t, "before", prompt[2].Content)
	assert.Equal(t, "How should I invest?", prompt[3].Content)

	assistant.err = errors.New("upstream down")
	_, err = svc.AIChat(ctx, AIChatInput{UserID: ada.ID, Message: "again"})
	assert.ErrorIs(t, err, ErrAssistantFailed)
}

func TestAIChatKeepsSuppliedReply(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	assistant := &fakeAssistant{configured: true, reply: "generated"}
	svc := NewChatService(env.users, env.chats, ChatServiceOptions{Assistant: assistant})
	ada := env.register(t, "Ada", "ada@example.com", "secret1")

	res, err := svc.AIChat(ctx, AIChatInput{UserID: ada.ID, Message: "hi", AssistantReply: "from the agent"})
	require.NoError(t, err)
	assert.Equal(t, "from the agent", res.Reply)
	assert.Empty(t, assistant.prompts)

	_, err = svc.AIChat(ctx, AIChatInput{UserID: ada.ID, Message: "  "})
	assert.ErrorIs(t, err, ErrMessageEmpty)
}

func TestAIChatQueueMode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	publisher := &fakePublisher{}
	svc := NewChatService(env.users, env.chats, ChatServiceOptions{HistoryCache: env.history, Publisher: publisher})
	ada := env.register(t, "Ada", "ada@example.com", "secret1")

	res, err := svc.AIChat(ctx, AIChatInput{UserID: ada.ID, Message: "hi", AssistantReply: "hello"})
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Zero(t, res.ChatID)
	require.Len(t, publisher.published, 1)

	dirty, err := env.history.IsDirty(ctx, ada.ID)
	require.NoError(t, err)
	assert.True(t, dirty)

	history, err := svc.GetHistory(ctx, ada.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	queued := publisher.published[0]
	require.NoError(t, svc.Persist(ctx, &queued))
	history, err = svc.GetHistory(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].AssistantReply)

	publisher.err = errors.New("broker down")
	_, err = svc.AIChat(ctx, AIChatInput{UserID: ada.ID, Message: "hi", AssistantReply: "hello"})
	assert.ErrorIs(t, err, ErrChatEnqueue)
}

type mapDocuments map[string]string

func (m mapDocuments) Excerpt(name string) (string, error) {
	text, ok := m[name]
	if !ok {
		return "", errors.New("not found")
	}
	return text, nil
}

func TestAIChatIncludesDocumentExcerpts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	assistant := &fakeAssistant{configured: true, reply: "ok"}
	svc := NewChatService(env.users, env.chats, ChatServiceOptions{
		Assistant: assistant,
		Documents: mapDocuments{"q3.pdf": "Revenue 4.2bn"},
	})
	ada := env.register(t, "Ada", "ada@example.com", "secret1")

	_, err := svc.AIChat(ctx, AIChatInput{
		UserID:     ada.ID,
		Message:    "Summarise",
		Document:   &DocumentInput{Name: "q3.pdf"},
		Additional: []DocumentInput{{Name: "missing.csv"}},
	})
	require.NoError(t, err)

	require.Len(t, assistant.prompts, 1)
	last := assistant.prompts[0][len(assistant.prompts[0])-1]
	assert.Contains(t, last.Content, "Attached documents: q3.pdf, missing.csv")
	assert.Contains(t, last.Content, "--- q3.pdf ---\nRevenue 4.2bn")
	assert.NotContains(t, last.Content, "--- missing.csv ---")
}

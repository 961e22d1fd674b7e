package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"financegpt/internal/ai"
	"financegpt/internal/model"
	"financegpt/internal/pkg/logger"
	"financegpt/internal/repository"
)

// number of earlier exchanges sent to the model as context
const assistantContextChats = 5

var (
	ErrChatFieldsRequired = errors.New("user message, assistant reply, and user id are required")
	ErrMessageEmpty       = errors.New("message is required")
	ErrAssistantFailed    = errors.New("assistant is unavailable")
	ErrChatEnqueue        = errors.New("chat enqueue failed")
)

type ChatPublisher interface {
	Publish(ctx context.Context, chat model.Chat) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, userID uint) ([]model.Chat, bool, error)
	SetHistory(ctx context.Context, userID uint, chats []model.Chat) error
	DeleteHistory(ctx context.Context, userID uint) error
	MarkDirty(ctx context.Context, userID uint) error
	ClearDirty(ctx context.Context, userID uint) error
	IsDirty(ctx context.Context, userID uint) (bool, error)
}

// DocumentReader returns the leading text of an uploaded document.
type DocumentReader interface {
	Excerpt(name string) (string, error)
}

type Assistant interface {
	Configured() bool
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

type ChatService struct {
	userRepo     *repository.UserRepository
	chatRepo     *repository.ChatRepository
	historyCache HistoryCache
	publisher    ChatPublisher
	assistant    Assistant
	documents    DocumentReader
	maxHistory   int
	systemPrompt string
	log          *logger.Logger
}

// ChatServiceOptions carries the optional collaborators. A non-nil Publisher
// moves persistence of assistant exchanges onto the queue.
type ChatServiceOptions struct {
	HistoryCache HistoryCache
	Publisher    ChatPublisher
	Assistant    Assistant
	Documents    DocumentReader
	MaxHistory   int
	SystemPrompt string
	Logger       *logger.Logger
}

// DocumentInput is an uploaded file as reported by the client.
type DocumentInput struct {
	Name string
	Type string
	Path string
	Size int64
}

type SaveChatInput struct {
	UserID         uint
	UserMessage    string
	AssistantReply string
	Document       *DocumentInput
}

type AIChatInput struct {
	UserID         uint
	Message        string
	AssistantReply string
	Document       *DocumentInput
	Additional     []DocumentInput
}

type AIChatResult struct {
	Reply  string `json:"reply"`
	ChatID uint   `json:"chatId,omitempty"`
	Queued bool   `json:"queued,omitempty"`
}

func NewChatService(
	userRepo *repository.UserRepository,
	chatRepo *repository.ChatRepository,
	opts ChatServiceOptions,
) *ChatService {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 10
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &ChatService{
		userRepo:     userRepo,
		chatRepo:     chatRepo,
		historyCache: opts.HistoryCache,
		publisher:    opts.Publisher,
		assistant:    opts.Assistant,
		documents:    opts.Documents,
		maxHistory:   opts.MaxHistory,
		systemPrompt: opts.SystemPrompt,
		log:          opts.Logger.With("service", "chat"),
	}
}

func (s *ChatService) SaveChat(ctx context.Context, input SaveChatInput) (*model.Chat, error) {
	userMessage := strings.TrimSpace(input.UserMessage)
	reply := strings.TrimSpace(input.AssistantReply)
	if input.UserID == 0 || userMessage == "" || reply == "" {
		return nil, ErrChatFieldsRequired
	}
	if err := s.ensureUser(ctx, input.UserID); err != nil {
		return nil, err
	}

	chat := buildChat(input.UserID, userMessage, reply, input.Document, nil, time.Now())
	if err := s.Persist(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

// AIChat records one exchange from the assistant tier. When the caller did
// not supply a reply, one is produced by the configured model, or echoed
// back if there is none.
func (s *ChatService) AIChat(ctx context.Context, input AIChatInput) (*AIChatResult, error) {
	message := strings.TrimSpace(input.Message)
	if input.UserID == 0 {
		return nil, ErrChatFieldsRequired
	}
	if message == "" {
		return nil, ErrMessageEmpty
	}
	if err := s.ensureUser(ctx, input.UserID); err != nil {
		return nil, err
	}

	reply := strings.TrimSpace(input.AssistantReply)
	if reply == "" {
		generated, err := s.generateReply(ctx, input.UserID, message, input.Document, input.Additional)
		if err != nil {
			return nil, err
		}
		reply = generated
	}

	chat := buildChat(input.UserID, message, reply, input.Document, input.Additional, time.Now())

	if s.publisher != nil {
		s.beginWrite(ctx, input.UserID)
		if err := s.publisher.Publish(ctx, *chat); err != nil {
			s.log.Error("publish chat failed", "user_id", input.UserID, "error", err)
			return nil, ErrChatEnqueue
		}
		return &AIChatResult{Reply: reply, Queued: true}, nil
	}

	if err := s.Persist(ctx, chat); err != nil {
		return nil, err
	}
	return &AIChatResult{Reply: reply, ChatID: chat.ID}, nil
}

// Persist writes chat and trims the owner's history to the retention limit.
// The queue worker calls this too.
func (s *ChatService) Persist(ctx context.Context, chat *model.Chat) error {
	s.beginWrite(ctx, chat.UserID)
	trimmed, err := s.chatRepo.CreateAndTrim(ctx, chat, s.maxHistory)
	if err != nil {
		return err
	}
	if trimmed > 0 {
		s.log.Debug("trimmed chat history", "user_id", chat.UserID, "deleted", trimmed)
	}
	s.endWrite(ctx, chat.UserID)
	return nil
}

func (s *ChatService) GetHistory(ctx context.Context, userID uint) ([]model.Chat, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, userID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, userID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	chats, err := s.chatRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, userID); dirtyErr == nil && !dirty {
			if err := s.historyCache.SetHistory(ctx, userID, chats); err != nil {
				s.log.Warn("cache chat history failed", "user_id", userID, "error", err)
			}
		}
	}
	return chats, nil
}

func (s *ChatService) ClearHistory(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, ErrInvalidInput
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return 0, err
	}
	s.beginWrite(ctx, userID)
	deleted, err := s.chatRepo.DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.endWrite(ctx, userID)
	return deleted, nil
}

func (s *ChatService) ensureUser(ctx context.Context, userID uint) error {
	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}

// beginWrite drops the cached history and fences off readers until the
// pending write lands. The marker expires on its own if endWrite never runs.
func (s *ChatService) beginWrite(ctx context.Context, userID uint) {
	if s.historyCache == nil {
		return
	}
	if err := s.historyCache.MarkDirty(ctx, userID); err != nil {
		s.log.Warn("mark history dirty failed", "user_id", userID, "error", err)
	}
	if err := s.historyCache.DeleteHistory(ctx, userID); err != nil {
		s.log.Warn("drop cached history failed", "user_id", userID, "error", err)
	}
}

func (s *ChatService) endWrite(ctx context.Context, userID uint) {
	if s.historyCache == nil {
		return
	}
	if err := s.historyCache.DeleteHistory(ctx, userID); err != nil {
		s.log.Warn("drop cached history failed", "user_id", userID, "error", err)
	}
	if err := s.historyCache.ClearDirty(ctx, userID); err != nil {
		s.log.Warn("clear history dirty marker failed", "user_id", userID, "error", err)
	}
}

func (s *ChatService) generateReply(
	ctx context.Context,
	userID uint,
	message string,
	primary *DocumentInput,
	additional []DocumentInput,
) (string, error) {
	if s.assistant == nil || !s.assistant.Configured() {
		return echoReply(message), nil
	}

	prompt, err := s.buildPrompt(ctx, userID, message, primary, additional)
	if err != nil {
		return "", err
	}
	reply, err := s.assistant.Complete(ctx, prompt)
	if err != nil {
		s.log.Error("assistant completion failed", "user_id", userID, "error", err)
		return "", fmt.Errorf("%w: %v", ErrAssistantFailed, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = "The model returned an empty response."
	}
	return reply, nil
}

func (s *ChatService) buildPrompt(
	ctx context.Context,
	userID uint,
	message string,
	primary *DocumentInput,
	additional []DocumentInput,
) ([]ai.ChatMessage, error) {
	recent, err := s.chatRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(recent) > assistantContextChats {
		recent = recent[len(recent)-assistantContextChats:]
	}

	messages := make([]ai.ChatMessage, 0, 2*len(recent)+2)
	if s.systemPrompt != "" {
		messages = append(messages, ai.ChatMessage{Role: "system", Content: s.systemPrompt})
	}
	for _, chat := range recent {
		messages = append(messages,
			ai.ChatMessage{Role: "user", Content: chat.UserMessage},
			ai.ChatMessage{Role: "assistant", Content: chat.AssistantReply},
		)
	}

	content := message
	if names := documentNames(primary, additional); len(names) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "%s\n\nAttached documents: %s", message, strings.Join(names, ", "))
		for _, name := range names {
			if excerpt := s.excerpt(name); excerpt != "" {
				fmt.Fprintf(&b, "\n\n--- %s ---\n%s", name, excerpt)
			}
		}
		content = b.String()
	}
	messages = append(messages, ai.ChatMessage{Role: "user", Content: content})
	return messages, nil
}

func (s *ChatService) excerpt(name string) string {
	if s.documents == nil {
		return ""
	}
	text, err := s.documents.Excerpt(name)
	if err != nil {
		s.log.Debug("skip document excerpt", "document", name, "error", err)
		return ""
	}
	return text
}

func echoReply(message string) string {
	return fmt.Sprintf("You said: %q. This is a simple echo response; configure an LLM endpoint for real answers.", message)
}

func documentNames(primary *DocumentInput, additional []DocumentInput) []string {
	var names []string
	if primary != nil && primary.Name != "" {
		names = append(names, primary.Name)
	}
	for _, d := range additional {
		if d.Name != "" {
			names = append(names, d.Name)
		}
	}
	return names
}

// buildChat fills the legacy single-document columns from the primary file
// and lists every file, primary first, in Documents. Additional files live
// under uploads/ unless a path was given.
func buildChat(
	userID uint,
	userMessage, reply string,
	primary *DocumentInput,
	additional []DocumentInput,
	now time.Time,
) *model.Chat {
	chat := &model.Chat{
		UserID:         userID,
		UserMessage:    userMessage,
		AssistantReply: reply,
	}

	uploadedAt := now.UTC().Format(time.RFC3339)
	var docs []model.DocumentInfo

	if primary != nil && strings.TrimSpace(primary.Name) != "" {
		name := strings.TrimSpace(primary.Name)
		chat.DocumentName = &name
		chat.DocumentType = optionalString(primary.Type)
		chat.DocumentPath = optionalString(primary.Path)
		if primary.Size > 0 {
			size := primary.Size
			chat.DocumentSize = &size
		}
		at := now
		chat.UploadedAt = &at
		docs = append(docs, model.DocumentInfo{
			Name:       name,
			Type:       primary.Type,
			Path:       primary.Path,
			Size:       primary.Size,
			UploadedAt: uploadedAt,
		})
	}

	for _, d := range additional {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			continue
		}
		path := d.Path
		if path == "" {
			path = "uploads/" + name
		}
		docs = append(docs, model.DocumentInfo{
			Name:       name,
			Type:       d.Type,
			Path:       path,
			Size:       d.Size,
			UploadedAt: uploadedAt,
		})
	}

	if len(docs) > 0 {
		chat.Documents = docs
	}
	return chat
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

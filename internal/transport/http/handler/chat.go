package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"financegpt/internal/app"
	"financegpt/internal/pkg/logger"
	"financegpt/internal/transport/http/middleware"
	"financegpt/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
	log         *logger.Logger
}

type SaveChatRequest struct {
	UserID         *UserIDField `json:"userId"`
	UserMessage    string       `json:"userMessage"`
	AssistantReply string       `json:"assistantReply"`
	DocumentName   string       `json:"documentName"`
	DocumentType   string       `json:"documentType"`
	DocumentPath   string       `json:"documentPath"`
	DocumentSize   int64        `json:"documentSize"`
}

// UserIDField accepts a user id sent either as a JSON number or as a numeric
// string. An empty string decodes to zero, which means no id was given.
type UserIDField uint

func (f *UserIDField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
		if len(b) == 0 {
			*f = 0
			return nil
		}
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return errors.New("userId must be a positive integer")
	}
	*f = UserIDField(id)
	return nil
}

type AdditionalFile struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type AIChatRequest struct {
	SaveChatRequest
	Message             string           `json:"message"`
	TotalFiles          int              `json:"totalFiles"`
	AdditionalFilesInfo []AdditionalFile `json:"additionalFilesInfo"`
}

func NewChatHandler(chatService *app.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, log: log.With("handler", "chat")}
}

func (h *ChatHandler) Save(c *gin.Context) {
	var req SaveChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	userID, ok := resolveUserID(c, req.UserID)
	if !ok {
		return
	}

	chat, err := h.chatService.SaveChat(c.Request.Context(), app.SaveChatInput{
		UserID:         userID,
		UserMessage:    req.UserMessage,
		AssistantReply: req.AssistantReply,
		Document:       req.document(),
	})
	if err != nil {
		h.fail(c, err, "save chat failed")
		return
	}
	response.Created(c, gin.H{"chat": chat})
}

func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	chats, err := h.chatService.GetHistory(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "get chat history failed")
		return
	}
	response.OK(c, gin.H{"chats": chats})
}

func (h *ChatHandler) Clear(c *gin.Context) {
	userID, ok := pathUserID(c)
	if !ok {
		return
	}

	deleted, err := h.chatService.ClearHistory(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "clear chat history failed")
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}

func (h *ChatHandler) AI(c *gin.Context) {
	var req AIChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	userID, ok := resolveUserID(c, req.UserID)
	if !ok {
		return
	}

	message := req.UserMessage
	if message == "" {
		message = req.Message
	}
	additional := make([]app.DocumentInput, 0, len(req.AdditionalFilesInfo))
	for _, f := range req.AdditionalFilesInfo {
		additional = append(additional, app.DocumentInput{Name: f.Name, Type: f.Type, Path: f.Path, Size: f.Size})
	}

	result, err := h.chatService.AIChat(c.Request.Context(), app.AIChatInput{
		UserID:         userID,
		Message:        message,
		AssistantReply: req.AssistantReply,
		Document:       req.document(),
		Additional:     additional,
	})
	if err != nil {
		h.fail(c, err, "ai chat failed")
		return
	}

	if result.Queued {
		response.Accepted(c, gin.H{"reply": result.Reply})
		return
	}
	response.OK(c, gin.H{"reply": result.Reply, "chatId": result.ChatID})
}

func (h *ChatHandler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrChatFieldsRequired), errors.Is(err, app.ErrMessageEmpty), errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, response.CodeUserNotFound, err.Error())
	case errors.Is(err, app.ErrAssistantFailed):
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailed, app.ErrAssistantFailed.Error())
	case errors.Is(err, app.ErrChatEnqueue):
		response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, err.Error())
	default:
		h.log.Error(fallback, "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func (r SaveChatRequest) document() *app.DocumentInput {
	if r.DocumentName == "" {
		return nil
	}
	return &app.DocumentInput{
		Name: r.DocumentName,
		Type: r.DocumentType,
		Path: r.DocumentPath,
		Size: r.DocumentSize,
	}
}

// resolveUserID returns the authenticated user, rejecting a request that
// names somebody else.
func resolveUserID(c *gin.Context, requested *UserIDField) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return 0, false
	}
	if requested != nil && *requested != 0 && uint(*requested) != userID {
		response.Error(c, http.StatusForbidden, response.CodeForbidden, "cannot access another user's chats")
		return 0, false
	}
	return userID, true
}

func pathUserID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid user id")
		return 0, false
	}
	requested := UserIDField(id)
	return resolveUserID(c, &requested)
}

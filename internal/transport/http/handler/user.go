package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"financegpt/internal/app"
	"financegpt/internal/pkg/logger"
	"financegpt/internal/transport/http/middleware"
	"financegpt/internal/transport/http/response"
)

type UserHandler struct {
	userService *app.UserService
	log         *logger.Logger
}

type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type UpdateThemeRequest struct {
	Theme string `json:"theme" binding:"required"`
}

func NewUserHandler(userService *app.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{userService: userService, log: log.With("handler", "user")}
}

func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "fetch user failed")
		return
	}
	response.OK(c, gin.H{"user": user})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), userID, app.UpdateProfileInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		h.fail(c, err, "update profile failed")
		return
	}
	response.OK(c, gin.H{"user": user})
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "new password is required")
		return
	}

	err := h.userService.ChangePassword(c.Request.Context(), userID, app.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "current password is required")
			return
		}
		h.fail(c, err, "change password failed")
		return
	}
	response.OK(c, gin.H{"message": "password updated"})
}

func (h *UserHandler) UpdateTheme(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req UpdateThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "theme is required")
		return
	}

	user, err := h.userService.UpdateTheme(c.Request.Context(), userID, req.Theme)
	if err != nil {
		h.fail(c, err, "update theme failed")
		return
	}
	response.OK(c, gin.H{"user": user, "theme": user.Theme})
}

func (h *UserHandler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "name must be at least 2 characters and email must be valid")
	case errors.Is(err, app.ErrEmailExists):
		response.Error(c, http.StatusBadRequest, response.CodeEmailExists, "email already in use")
	case errors.Is(err, app.ErrPasswordTooShort), errors.Is(err, app.ErrPasswordTooLong), errors.Is(err, app.ErrInvalidTheme):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrWrongPassword):
		response.Error(c, http.StatusBadRequest, response.CodeWrongPassword, err.Error())
	case errors.Is(err, app.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, response.CodeUserNotFound, err.Error())
	default:
		h.log.Error(fallback, "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"financegpt/internal/app"
	"financegpt/internal/pkg/logger"
	"financegpt/internal/transport/http/middleware"
	"financegpt/internal/transport/http/response"
)

const (
	oauthStateCookie = "oauth_state"
	oauthCookiePath  = "/api/auth/google"
)

type AuthHandler struct {
	authService  *app.AuthService
	userService  *app.UserService
	oauthService *app.OAuthService
	frontendURL  string
	stateTTL     time.Duration
	log          *logger.Logger
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=128"`
	Email    string `json:"email" binding:"required,max=191"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func NewAuthHandler(
	authService *app.AuthService,
	userService *app.UserService,
	oauthService *app.OAuthService,
	frontendURL string,
	stateTTL time.Duration,
	log *logger.Logger,
) *AuthHandler {
	if stateTTL <= 0 {
		stateTTL = 10 * time.Minute
	}
	return &AuthHandler{
		authService:  authService,
		userService:  userService,
		oauthService: oauthService,
		frontendURL:  strings.TrimRight(frontendURL, "/"),
		stateTTL:     stateTTL,
		log:          log.With("handler", "auth"),
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "name, email and password are required")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), app.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest,
				"name must be at least 2 characters, email must be valid and password at least 6 characters")
		case errors.Is(err, app.ErrEmailExists):
			response.Error(c, http.StatusBadRequest, response.CodeEmailExists, err.Error())
		case errors.Is(err, app.ErrPasswordTooLong):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			h.log.Error("register failed", "error", err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "register failed")
		}
		return
	}

	response.Created(c, gin.H{
		"token": result.Token,
		"user":  result.User,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "email and password are required")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "email and password are required")
		case errors.Is(err, app.ErrInvalidEmail):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidEmail, err.Error())
		case errors.Is(err, app.ErrOAuthOnlyAccount):
			response.Error(c, http.StatusBadRequest, response.CodeOAuthOnly,
				"this account was created with Google, please continue with Google to sign in")
		case errors.Is(err, app.ErrInvalidPassword):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidPassword, err.Error())
		case errors.Is(err, app.ErrInvalidCredential):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidCredentials, err.Error())
		default:
			h.log.Error("login failed", "error", err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "login failed")
		}
		return
	}

	response.OK(c, gin.H{
		"token": result.Token,
		"user":  result.User,
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, app.ErrUserNotFound) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found")
			return
		}
		h.log.Error("fetch current user failed", "user_id", userID, "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch current user failed")
		return
	}

	response.OK(c, gin.H{"user": user})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		h.log.Error("logout failed", "user_id", claims.UserID, "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "logout failed")
		return
	}
	response.OK(c, gin.H{"message": "logged out"})
}

// GoogleLogin redirects to the consent screen. The state is also set as a
// cookie so the callback only completes in the browser that started it.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	consentURL, state, err := h.oauthService.BeginGoogle(c.Request.Context())
	if err != nil {
		if errors.Is(err, app.ErrOAuthDisabled) {
			response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, err.Error())
			return
		}
		h.log.Error("begin google login failed", "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "google login failed")
		return
	}
	h.setStateCookie(c, state, int(h.stateTTL.Seconds()))
	c.Redirect(http.StatusFound, consentURL)
}

// GoogleCallback always ends in a redirect back to the frontend, carrying
// either the issued token or an error flag.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	cookieState, cookieErr := c.Cookie(oauthStateCookie)
	h.setStateCookie(c, "", -1)

	if c.Query("error") != "" {
		h.log.Warn("google consent denied", "error", c.Query("error"))
		c.Redirect(http.StatusFound, h.frontendURL+"/login?error=oauth_failed")
		return
	}

	state := c.Query("state")
	if cookieErr != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookieState), []byte(state)) != 1 {
		h.log.Warn("google callback state does not match browser")
		c.Redirect(http.StatusFound, h.frontendURL+"/login?error=oauth_failed")
		return
	}

	result, err := h.oauthService.CompleteGoogle(c.Request.Context(), state, c.Query("code"))
	if err != nil {
		h.log.Warn("google callback failed", "error", err)
		c.Redirect(http.StatusFound, h.frontendURL+"/login?error=oauth_failed")
		return
	}

	c.Redirect(http.StatusFound, h.frontendURL+"/auth/success?token="+url.QueryEscape(result.Token))
}

func (h *AuthHandler) setStateCookie(c *gin.Context, value string, maxAge int) {
	secure := c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, value, maxAge, oauthCookiePath, "", secure, true)
}

package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/carboncopyrefi/frf-front/core"
	"github.com/carboncopyrefi/frf-front/service"
	"github.com/gin-gonic/gin"
)

// SessionCookie carries the session token for cookie-based session restore
const SessionCookie = "siwe-session"

// SessionHandlers contains HTTP handlers for the session endpoints
type SessionHandlers struct {
	sessions     *service.SessionService
	secureCookie bool
	cookieTTL    time.Duration
}

// NewSessionHandlers creates new session handlers
func NewSessionHandlers(sessions *service.SessionService, secureCookie bool, cookieTTL time.Duration) *SessionHandlers {
	return &SessionHandlers{
		sessions:     sessions,
		secureCookie: secureCookie,
		cookieTTL:    cookieTTL,
	}
}

func (h *SessionHandlers) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, value, maxAge, "/", "", h.secureCookie, true)
}

// Nonce handles the nonce request
func (h *SessionHandlers) Nonce(c *gin.Context) {
	nonce, err := h.sessions.CreateNonce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create nonce"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// Verify handles a signed sign-in message
func (h *SessionHandlers) Verify(c *gin.Context) {
	var req struct {
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, session, err := h.sessions.Verify(c.Request.Context(), req.Message, req.Signature)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Verification failed"

		// Map specific errors to appropriate status codes
		switch {
		case errors.Is(err, core.ErrInvalidMessage), errors.Is(err, core.ErrInvalidAddress):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid message"
		case errors.Is(err, core.ErrInvalidNonce):
			statusCode = http.StatusUnauthorized
			errorMsg = "Invalid nonce"
		case errors.Is(err, core.ErrInvalidSignature):
			statusCode = http.StatusUnauthorized
			errorMsg = "Invalid signature"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	h.setCookie(c, token, int(h.cookieTTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"role":  string(session.Role),
	})
}

// Session reports the cookie-backed session, or 204 when there is none
func (h *SessionHandlers) Session(c *gin.Context) {
	token, err := c.Cookie(SessionCookie)
	if err != nil || token == "" {
		c.Status(http.StatusNoContent)
		return
	}

	session, err := h.sessions.Session(c.Request.Context(), token)
	if err != nil {
		h.setCookie(c, "", -1)
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": session.Address,
		"chainId": session.ChainID,
	})
}

// SignOut invalidates the session named by the cookie or bearer header. It
// answers with an empty object whether or not a session existed.
func (h *SessionHandlers) SignOut(c *gin.Context) {
	token, _ := c.Cookie(SessionCookie)
	if token == "" {
		token, _ = bearer(c)
	}

	if token != "" {
		err := h.sessions.SignOut(c.Request.Context(), token)
		if err != nil && !errors.Is(err, core.ErrTokenExpired) && !errors.Is(err, core.ErrInvalidToken) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign out"})
			return
		}
	}

	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{})
}

// Me returns information about the authenticated participant
func (h *SessionHandlers) Me(c *gin.Context) {
	// Session is set by the auth middleware
	session, exists := SessionFrom(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": session.Address,
		"role":    string(session.Role),
	})
}

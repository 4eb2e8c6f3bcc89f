package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/domain/models"
	"github.com/mamadbah2/sitecost/internal/service/accounts"
)

const principalKey = "principal"

// AuthHandler handles login and guards the API routes.
type AuthHandler struct {
	svc    *accounts.Service
	logger *zap.Logger
}

// NewAuthHandler constructs the auth HTTP adapter.
func NewAuthHandler(svc *accounts.Service, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{svc: svc, logger: logger}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges credentials for a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Info("login rejected", zap.String("username", req.Username), zap.Error(err))
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, token)
}

// Me returns the calling principal.
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentPrincipal(c))
}

// RequireAuth resolves the bearer token into a principal or aborts with 401.
func (h *AuthHandler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			writeError(c, h.logger, fmt.Errorf("missing bearer token: %w", models.ErrUnauthorized))
			c.Abort()
			return
		}

		principal, err := h.svc.Authenticate(c.Request.Context(), raw)
		if err != nil {
			writeError(c, h.logger, err)
			c.Abort()
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// Require aborts with 403 unless the principal holds capability.
func Require(capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p := currentPrincipal(c); p == nil || !p.Can(capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied", "required": capability})
			return
		}
		c.Next()
	}
}

// RequireStaff aborts with 403 unless the principal is staff.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p := currentPrincipal(c); p == nil || !p.IsStaff {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "staff only"})
			return
		}
		c.Next()
	}
}

// currentPrincipal returns the authenticated principal, nil on public routes.
func currentPrincipal(c *gin.Context) *models.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, ok := v.(models.Principal)
	if !ok {
		return nil
	}
	return &p
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

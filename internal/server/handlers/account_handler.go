package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/service/accounts"
)

// AccountHandler serves the staff-only user and group administration.
type AccountHandler struct {
	svc    *accounts.Service
	logger *zap.Logger
}

// NewAccountHandler constructs the account administration HTTP adapter.
func NewAccountHandler(svc *accounts.Service, logger *zap.Logger) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{svc: svc, logger: logger}
}

// ListUsers returns every account.
func (h *AccountHandler) ListUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// CreateUser stores a new account.
func (h *AccountHandler) CreateUser(c *gin.Context) {
	var input accounts.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	user, err := h.svc.CreateUser(c.Request.Context(), input)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UpdateUser edits an account.
func (h *AccountHandler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input accounts.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	user, err := h.svc.UpdateUser(c.Request.Context(), id, input)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser removes an account other than the caller's.
func (h *AccountHandler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteUser(c.Request.Context(), id, *currentPrincipal(c)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListGroups returns every group with its capabilities.
func (h *AccountHandler) ListGroups(c *gin.Context) {
	groups, err := h.svc.ListGroups(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// CreateGroup stores a new group.
func (h *AccountHandler) CreateGroup(c *gin.Context) {
	var input accounts.GroupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	group, err := h.svc.CreateGroup(c.Request.Context(), input)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

// UpdateGroup renames a group and replaces its capabilities.
func (h *AccountHandler) UpdateGroup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input accounts.GroupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, h.logger, err)
		return
	}
	group, err := h.svc.UpdateGroup(c.Request.Context(), id, input)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// DeleteGroup removes a group.
func (h *AccountHandler) DeleteGroup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteGroup(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Capabilities lists the capability catalog.
func (h *AccountHandler) Capabilities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"capabilities": h.svc.Capabilities()})
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/middleware"
	"qrattendance/internal/service"
)

type roleRequest struct {
	Role string `json:"role" binding:"required,max=255"`
}

type rolesRequest struct {
	Roles []string `json:"roles" binding:"required,dive,required,max=255"`
}

type permissionRequest struct {
	Permission string `json:"permission" binding:"required,max=255"`
}

func (h HandlerSet) ListRoles(c *gin.Context) {
	roles, err := h.Roles.Roles(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

func (h HandlerSet) ListPermissions(c *gin.Context) {
	permissions, err := h.Roles.Permissions(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, permissions)
}

func (h HandlerSet) AssignRole(c *gin.Context) {
	var req roleRequest
	h.manage(c, &req, "roles.assigned", func(ctx context.Context, userID int64) (service.UserMembership, error) {
		return h.Roles.AssignRole(ctx, userID, req.Role)
	})
}

func (h HandlerSet) RemoveRole(c *gin.Context) {
	var req roleRequest
	h.manage(c, &req, "roles.revoked", func(ctx context.Context, userID int64) (service.UserMembership, error) {
		return h.Roles.RemoveRole(ctx, userID, req.Role)
	})
}

func (h HandlerSet) SyncRoles(c *gin.Context) {
	var req rolesRequest
	h.manage(c, &req, "roles.synced", func(ctx context.Context, userID int64) (service.UserMembership, error) {
		return h.Roles.SyncRoles(ctx, userID, req.Roles)
	})
}

func (h HandlerSet) GivePermission(c *gin.Context) {
	var req permissionRequest
	h.manage(c, &req, "permissions.assigned", func(ctx context.Context, userID int64) (service.UserMembership, error) {
		return h.Roles.GrantPermission(ctx, userID, req.Permission)
	})
}

func (h HandlerSet) RevokePermission(c *gin.Context) {
	var req permissionRequest
	h.manage(c, &req, "permissions.revoked", func(ctx context.Context, userID int64) (service.UserMembership, error) {
		return h.Roles.RevokePermission(ctx, userID, req.Permission)
	})
}

// manage binds req, applies the mutation to the :user path parameter and
// answers with the user's refreshed membership.
func (h HandlerSet) manage(c *gin.Context, req any, messageKey string, apply func(ctx context.Context, userID int64) (service.UserMembership, error)) {
	userID, ok := pathID(c, "user", "user.not_found")
	if !ok {
		return
	}
	if !bindJSON(c, req) {
		return
	}

	membership, err := apply(c.Request.Context(), userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": middleware.Message(c, messageKey),
		"user":    membership,
	})
}

package server

import (
	"net/http"
	"strings"

	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type suspensionRequest struct {
	Suspended *bool `json:"suspended"`
}

type roleRequest struct {
	Role string `json:"role"`
}

func (s *Server) Me(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.userSvc.GetByID(c.Request.Context(), subject.ActorID())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// MyCounters reports upload totals. Daily counts reset at the UTC day boundary.
func (s *Server) MyCounters(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.userSvc.Counters(c.Request.Context(), subject.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetUserSuspension(c *gin.Context) {
	userID, ok := s.otherUserParam(c)
	if !ok {
		return
	}

	var req suspensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Suspended == nil {
		AbortWithError(c, newValidationError("suspended", "suspended_required", "suspended is required"))
		return
	}

	resp, err := s.userSvc.SetSuspended(c.Request.Context(), userID, *req.Suspended)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetUserRole(c *gin.Context) {
	userID, ok := s.otherUserParam(c)
	if !ok {
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	role := userdomain.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	resp, err := s.userSvc.SetRole(c.Request.Context(), userID, role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := s.authzSvc.SyncRole(ctx, userIDOf(resp), resp.Role); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// otherUserParam reads :userId and refuses admins acting on their own account.
func (s *Server) otherUserParam(c *gin.Context) (string, bool) {
	subject, ok := subjectFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return "", false
	}
	userID := strings.TrimSpace(c.Param("userId"))
	if userID == subject.ActorID() {
		AbortWithError(c, ErrForbidden)
		return "", false
	}
	return userID, true
}

func userIDOf(resp *userdomain.Response) snowflake.ID {
	id, _ := userdomain.ParseID(resp.ID)
	return id
}

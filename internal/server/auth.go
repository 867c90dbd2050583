package server

import (
	"net/http"
	"strings"

	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		AbortWithError(c, newValidationError("email", "required", "email is required"))
		return
	}
	if req.Password == "" {
		AbortWithError(c, newValidationError("password", "required", "password is required"))
		return
	}

	resp, err := s.identitySvc.Login(c.Request.Context(), identitydomain.LoginRequest{
		Email:    email,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Logout(c *gin.Context) {
	token := c.GetString(contextTokenKey)
	if token == "" {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.identitySvc.Logout(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

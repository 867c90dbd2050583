package server

import (
	"net/http"
	"strings"

	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	recordingdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/recording/domain"
	"github.com/gin-gonic/gin"
)

type promptStatsResponse struct {
	Variant    promptdomain.Variant               `json:"variant"`
	Pool       *promptdomain.PoolStats            `json:"pool"`
	Recordings *recordingdomain.VerificationStats `json:"recordings"`
}

func variantParam(c *gin.Context) (promptdomain.Variant, error) {
	return promptdomain.ParseVariant(strings.TrimSpace(c.Param("variant")))
}

func (s *Server) NextPrompt(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	variant, err := variantParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.promptSvc.Allocate(c.Request.Context(), subject.UserID, variant)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPrompt(c *gin.Context) {
	variant, err := variantParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.promptSvc.Get(c.Request.Context(), variant, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ImportPrompts(c *gin.Context) {
	variant, err := variantParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.promptSvc.Import(c.Request.Context(), variant, body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPromptStats(c *gin.Context) {
	variant, err := variantParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	pool, err := s.promptSvc.Stats(ctx, variant)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	recordings, err := s.recordingSvc.Stats(ctx, variant)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": promptStatsResponse{
		Variant:    variant,
		Pool:       pool,
		Recordings: recordings,
	}})
}

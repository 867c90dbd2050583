package server

import (
	"errors"
	"net/http"
	"strings"

	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	recordingdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/recording/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

// multipartOverhead leaves room for form fields and boundaries around the audio part.
const multipartOverhead = 1 << 20

type recordingBatchRequest struct {
	RecordingIDs FlexibleIDs `json:"recording_ids"`
	Variant      string      `json:"variant"`
}

type listRecordingsQuery struct {
	Variant  string `form:"variant"`
	Verified string `form:"verified"`
	pagination.Pagination
}

func (s *Server) CreateRecording(c *gin.Context) {
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

	if limit := s.cfg.Upload.MaxBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}

	header, err := c.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			AbortWithError(c, recordingdomain.ErrAudioTooLarge)
		case errors.Is(err, http.ErrMissingFile):
			AbortWithError(c, recordingdomain.ErrAudioRequired)
		default:
			AbortWithError(c, invalidRequestError())
		}
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	defer file.Close()

	resp, err := s.recordingSvc.Create(c.Request.Context(), subject, recordingdomain.CreateRequest{
		Variant:     variant,
		PromptID:    strings.TrimSpace(c.PostForm("prompt_id")),
		Answer:      strings.TrimSpace(c.PostForm("answer")),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Audio:       file,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMyRecordings(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	s.listRecordings(c, subject.ActorID())
}

func (s *Server) ListUserRecordings(c *gin.Context) {
	s.listRecordings(c, strings.TrimSpace(c.Param("userId")))
}

func (s *Server) listRecordings(c *gin.Context, userID string) {
	var query listRecordingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	variant, err := optionalVariant(query.Variant)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	verified, err := parseOptionalBool(query.Verified)
	if err != nil {
		AbortWithError(c, newValidationError("verified", "invalid_verified", "invalid verified"))
		return
	}

	resp, err := s.recordingSvc.List(c.Request.Context(), recordingdomain.ListRequest{
		UserID:     userID,
		Variant:    variant,
		Verified:   verified,
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifyRecordings(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	req, variant, ok := bindRecordingBatch(c)
	if !ok {
		return
	}

	resp, err := s.recordingSvc.Verify(c.Request.Context(), subject, recordingdomain.VerifyRequest{
		UserID:       strings.TrimSpace(c.Param("userId")),
		RecordingIDs: []string(req.RecordingIDs),
		Variant:      variant,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteRecordings(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	req, variant, ok := bindRecordingBatch(c)
	if !ok {
		return
	}

	resp, err := s.recordingSvc.Delete(c.Request.Context(), subject, recordingdomain.DeleteRequest{
		UserID:       strings.TrimSpace(c.Param("userId")),
		RecordingIDs: []string(req.RecordingIDs),
		Variant:      variant,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func bindRecordingBatch(c *gin.Context) (recordingBatchRequest, promptdomain.Variant, bool) {
	var req recordingBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return req, "", false
	}
	if len(req.RecordingIDs) == 0 {
		AbortWithError(c, recordingdomain.ErrRecordingIDsRequired)
		return req, "", false
	}

	variant, err := optionalVariant(req.Variant)
	if err != nil {
		AbortWithError(c, err)
		return req, "", false
	}
	return req, variant, true
}

func optionalVariant(value string) (promptdomain.Variant, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", nil
	}
	return promptdomain.ParseVariant(trimmed)
}

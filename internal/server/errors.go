package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/authorization"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/blobstore"
	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/password"
	paymentdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/domain"
	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	recordingdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/recording/domain"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Code      string            `json:"code,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
	Missing   *int64            `json:"missing,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := codeOf(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var insufficient *paymentdomain.InsufficientRecordingsError
	if errors.As(err, &insufficient) {
		missing := insufficient.Missing
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "not enough verified recordings for a payment",
			Code:    paymentdomain.ErrInsufficientRecordings.Error(),
			Missing: &missing,
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
			Code:    codeOf(err),
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
			Code:    codeOf(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
			Code:    codeOf(err),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:      "rate_limited",
			Message:   "too many requests",
			Retryable: true,
		}
	case errors.Is(err, blobstore.ErrUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:      "external_dependency",
			Message:   "storage is temporarily unavailable",
			Retryable: true,
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:      "service_unavailable",
			Message:   "service unavailable",
			Retryable: true,
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds error_type and error_code into the request log line.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Code
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, promptdomain.ErrInvalidVariant),
		errors.Is(err, promptdomain.ErrInvalidID),
		errors.Is(err, promptdomain.ErrInvalidImportPayload),
		errors.Is(err, promptdomain.ErrNoValidPrompts),
		errors.Is(err, recordingdomain.ErrInvalidPromptID),
		errors.Is(err, recordingdomain.ErrAnswerRequired),
		errors.Is(err, recordingdomain.ErrAudioRequired),
		errors.Is(err, recordingdomain.ErrAudioTooLarge),
		errors.Is(err, recordingdomain.ErrInvalidUserID),
		errors.Is(err, recordingdomain.ErrRecordingIDsRequired),
		errors.Is(err, recordingdomain.ErrInvalidPageToken),
		errors.Is(err, paymentdomain.ErrInvalidID),
		errors.Is(err, paymentdomain.ErrInvalidUserID),
		errors.Is(err, paymentdomain.ErrInvalidStatus),
		errors.Is(err, userdomain.ErrInvalidID),
		errors.Is(err, userdomain.ErrInvalidEmail),
		errors.Is(err, userdomain.ErrInvalidDisplayName),
		errors.Is(err, userdomain.ErrInvalidRole),
		errors.Is(err, password.ErrTooShort):
		return true
	default:
		return false
	}
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identitydomain.ErrUnauthenticated),
		errors.Is(err, identitydomain.ErrInvalidSession),
		errors.Is(err, identitydomain.ErrSessionExpired),
		errors.Is(err, identitydomain.ErrSessionRevoked),
		errors.Is(err, identitydomain.ErrUserSuspended),
		errors.Is(err, identitydomain.ErrInvalidCredentials):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, promptdomain.ErrNoAvailablePrompts),
		errors.Is(err, recordingdomain.ErrPromptInactive),
		errors.Is(err, recordingdomain.ErrPromptAtCapacity),
		errors.Is(err, recordingdomain.ErrDuplicateRecording),
		errors.Is(err, recordingdomain.ErrRecordingConflict),
		errors.Is(err, paymentdomain.ErrInvalidTransition),
		errors.Is(err, paymentdomain.ErrInsufficientRecordings),
		errors.Is(err, paymentdomain.ErrConcurrentSettlement),
		errors.Is(err, paymentdomain.ErrSettlementInProgress),
		errors.Is(err, userdomain.ErrEmailTaken):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, promptdomain.ErrNotFound),
		errors.Is(err, recordingdomain.ErrPromptNotFound),
		errors.Is(err, recordingdomain.ErrRecordingNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, promptdomain.ErrNoAvailablePrompts):
		return "no prompts available"
	case errors.Is(err, recordingdomain.ErrPromptInactive),
		errors.Is(err, recordingdomain.ErrPromptAtCapacity):
		return "prompt is no longer accepting recordings"
	case errors.Is(err, recordingdomain.ErrDuplicateRecording):
		return "prompt already recorded"
	case errors.Is(err, paymentdomain.ErrSettlementInProgress),
		errors.Is(err, paymentdomain.ErrConcurrentSettlement):
		return "a settlement for this user is already running"
	default:
		return "conflict"
	}
}

// codeOf returns the innermost sentinel code so wrapped context does not leak to clients.
func codeOf(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "answer_required":
		return "answer"
	case "audio_required", "audio_too_large":
		return "audio"
	case "recording_ids_required":
		return "recording_ids"
	case "invalid_page_token":
		return "page_token"
	case "invalid_import_payload", "no_valid_prompts":
		return "prompts"
	case "invalid_payment_status":
		return "status"
	case "password_too_short":
		return "password"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "answer_required":
		return "answer is required for this prompt"
	case "audio_required":
		return "audio file is required"
	case "audio_too_large":
		return "audio file is too large"
	case "recording_ids_required":
		return "at least one recording id is required"
	case "no_valid_prompts":
		return "no valid prompts in payload"
	default:
		return "invalid value"
	}
}

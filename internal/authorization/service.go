package authorization

import (
	"context"
	"errors"

	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/bwmarrin/snowflake"
)

// Service decides whether a subject may perform an action on an object.
type Service interface {
	Authorize(ctx context.Context, subject identitydomain.Subject, object string, action string) error
	// AuthorizeSystem checks the background actor used by scheduled jobs.
	AuthorizeSystem(ctx context.Context, object string, action string) error
	// SyncRole rewrites the user's role link after the role column changes.
	SyncRole(ctx context.Context, userID snowflake.ID, role userdomain.Role) error
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

const (
	ObjectPrompt    = "prompt"
	ObjectRecording = "recording"
	ObjectPayment   = "payment"
	ObjectUser      = "user"
)

const (
	ActionPromptImport = "prompt.import"
	ActionPromptStats  = "prompt.stats"

	ActionRecordingList   = "recording.list"
	ActionRecordingVerify = "recording.verify"
	ActionRecordingDelete = "recording.delete"

	ActionPaymentListEligible = "payment.list_eligible"
	ActionPaymentSettle       = "payment.settle"
	ActionPaymentUpdateStatus = "payment.update_status"
	ActionPaymentRequest      = "payment.request"

	ActionUserSuspend = "user.suspend"
	ActionUserSetRole = "user.set_role"
)

const (
	systemActor     = "system"
	roleSystem      = "role:system"
	roleAdmin       = "role:admin"
	roleSuperAdmin  = "role:super-admin"
	userActorPrefix = "user:"
)

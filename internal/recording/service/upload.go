package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/blobstore"
	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	recordingdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/recording/domain"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/pkg/db"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"gorm.io/gorm"
)

// Create stores the audio and records it against the prompt. The ledger row, the
// prompt capacity claim and the user counters commit in one transaction.
func (s *Service) Create(ctx context.Context, subject identitydomain.Subject, req recordingdomain.CreateRequest) (*recordingdomain.Response, error) {
	resp, err := s.create(ctx, subject, req)
	if err != nil {
		s.metrics.RecordUploadRejected(ctx, string(req.Variant), rejectReason(err))
		return nil, err
	}
	s.metrics.RecordUpload(ctx, string(req.Variant))
	return resp, nil
}

func (s *Service) create(ctx context.Context, subject identitydomain.Subject, req recordingdomain.CreateRequest) (*recordingdomain.Response, error) {
	if subject.IsZero() {
		return nil, identitydomain.ErrUnauthenticated
	}
	if req.Variant != promptdomain.VariantScripted && req.Variant != promptdomain.VariantFreeform {
		return nil, promptdomain.ErrInvalidVariant
	}

	promptID, err := recordingdomain.ParseID(strings.TrimSpace(req.PromptID))
	if err != nil || promptID == 0 {
		return nil, recordingdomain.ErrInvalidPromptID
	}

	prompt, err := s.promptRepo.FindByID(ctx, s.db, req.Variant, promptID)
	if err != nil {
		return nil, err
	}
	if prompt == nil {
		return nil, recordingdomain.ErrPromptNotFound
	}
	if !prompt.Active {
		return nil, recordingdomain.ErrPromptInactive
	}
	if !prompt.HasCapacity() {
		return nil, recordingdomain.ErrPromptAtCapacity
	}

	exists, err := s.repo.ExistsForUserPrompt(ctx, s.db, subject.UserID, prompt.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, recordingdomain.ErrDuplicateRecording
	}

	answer := strings.TrimSpace(req.Answer)
	if req.Variant.RequiresAnswer() && answer == "" {
		return nil, recordingdomain.ErrAnswerRequired
	}
	if req.Audio == nil || req.Size <= 0 {
		return nil, recordingdomain.ErrAudioRequired
	}
	if req.Size > s.maxAudioBytes {
		return nil, recordingdomain.ErrAudioTooLarge
	}

	now := s.clock.Now()
	key := blobstore.BuildKey(blobstore.KeyParts{
		Folder:      s.folderFor(req.Variant),
		DisplayName: subject.DisplayName,
		UserID:      subject.UserID.String(),
		PromptRef:   prompt.Ref(),
		At:          now,
		FileName:    req.FileName,
	})

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.store.Put(ctx, key, io.TeeReader(req.Audio, hasher), req.Size, contentType); err != nil {
		return nil, unavailable("upload audio", err)
	}

	audioURL, err := s.store.MakePublic(ctx, key)
	if err != nil {
		s.deleteBlob(ctx, key, "make_public_failed")
		return nil, unavailable("publish audio", err)
	}

	if !req.Variant.RequiresAnswer() {
		answer = ""
	}
	rec := &recordingdomain.Recording{
		ID:          s.genID.Generate(),
		Variant:     req.Variant,
		UserID:      subject.UserID,
		PromptID:    prompt.ID,
		AudioKey:    key,
		AudioURL:    audioURL,
		ContentType: contentType,
		SizeBytes:   req.Size,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
		Answer:      answer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, rec); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return recordingdomain.ErrDuplicateRecording
			}
			return fmt.Errorf("insert recording: %w", err)
		}

		claimed, err := s.promptRepo.ClaimSlot(ctx, tx, prompt.ID, now)
		if err != nil {
			return fmt.Errorf("claim prompt slot: %w", err)
		}
		if claimed == 0 {
			return recordingdomain.ErrPromptAtCapacity
		}

		updated, err := s.userRepo.RecordUpload(ctx, tx, subject.UserID, req.Variant, now.Format(userdomain.CounterDateLayout), now)
		if err != nil {
			return fmt.Errorf("update user counters: %w", err)
		}
		if updated == 0 {
			return userdomain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		s.deleteBlob(ctx, key, "upload_rolled_back")
		return nil, err
	}

	s.invalidatePoolStats(req.Variant)
	s.log.Info("recording created",
		zap.String("recording_id", rec.ID.String()),
		zap.String("prompt_id", prompt.ID.String()),
		zap.String("user_id", subject.UserID.String()),
		zap.String("variant", string(req.Variant)),
		zap.Int64("size_bytes", rec.SizeBytes),
	)

	return toResponse(rec), nil
}

func unavailable(op string, err error) error {
	if errors.Is(err, blobstore.ErrUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, blobstore.ErrUnavailable, err)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, recordingdomain.ErrPromptAtCapacity):
		return "at_capacity"
	case errors.Is(err, recordingdomain.ErrPromptInactive):
		return "inactive"
	case errors.Is(err, recordingdomain.ErrDuplicateRecording):
		return "duplicate"
	case errors.Is(err, recordingdomain.ErrPromptNotFound):
		return "not_found"
	case errors.Is(err, blobstore.ErrUnavailable):
		return "blob_unavailable"
	case errors.Is(err, recordingdomain.ErrInvalidPromptID),
		errors.Is(err, recordingdomain.ErrAnswerRequired),
		errors.Is(err, recordingdomain.ErrAudioRequired),
		errors.Is(err, recordingdomain.ErrAudioTooLarge),
		errors.Is(err, promptdomain.ErrInvalidVariant):
		return "validation"
	default:
		return "internal"
	}
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	recordingdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/recording/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Verify flips is_verified on the user's unverified recordings among the requested ids.
// Repeating a call is harmless: rows already verified are reported, not updated.
func (s *Service) Verify(ctx context.Context, actor identitydomain.Subject, req recordingdomain.VerifyRequest) (*recordingdomain.VerifyResult, error) {
	userID, err := recordingdomain.ParseID(strings.TrimSpace(req.UserID))
	if err != nil || userID == 0 {
		return nil, recordingdomain.ErrInvalidUserID
	}

	ids, invalid := parseIDs(req.RecordingIDs)
	total := len(ids) + len(invalid)
	if total == 0 {
		return nil, recordingdomain.ErrRecordingIDsRequired
	}

	owned, err := s.repo.FindOwned(ctx, s.db, userID, ids)
	if err != nil {
		return nil, err
	}
	owned = filterVariant(owned, req.Variant)

	result := &recordingdomain.VerifyResult{
		TotalRequested:  total,
		NotFound:        append([]string{}, invalid...),
		AlreadyVerified: []string{},
	}

	found := make(map[snowflake.ID]struct{}, len(owned))
	pending := make([]snowflake.ID, 0, len(owned))
	for _, rec := range owned {
		found[rec.ID] = struct{}{}
		if rec.IsVerified {
			result.AlreadyVerified = append(result.AlreadyVerified, rec.ID.String())
			continue
		}
		pending = append(pending, rec.ID)
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			result.NotFound = append(result.NotFound, id.String())
		}
	}

	affected, err := s.repo.MarkVerified(ctx, s.db, userID, pending, actor.ActorID(), s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("verify recordings: %w", err)
	}
	result.VerifiedCount = int(affected)

	s.metrics.RecordReview(ctx, "verify", result.VerifiedCount)
	s.log.Info("recordings verified",
		zap.String("user_id", userID.String()),
		zap.String("actor_id", actor.ActorID()),
		zap.Int("requested", total),
		zap.Int("verified", result.VerifiedCount),
		zap.Int("already_verified", len(result.AlreadyVerified)),
		zap.Int("not_found", len(result.NotFound)),
	)

	return result, nil
}

// Delete removes the user's recordings and hands their capacity back to the prompts.
// Blobs are removed after the transaction commits.
func (s *Service) Delete(ctx context.Context, actor identitydomain.Subject, req recordingdomain.DeleteRequest) (*recordingdomain.DeleteResult, error) {
	userID, err := recordingdomain.ParseID(strings.TrimSpace(req.UserID))
	if err != nil || userID == 0 {
		return nil, recordingdomain.ErrInvalidUserID
	}

	ids, invalid := parseIDs(req.RecordingIDs)
	total := len(ids) + len(invalid)
	if total == 0 {
		return nil, recordingdomain.ErrRecordingIDsRequired
	}

	now := s.clock.Now()
	var deleted []recordingdomain.OwnedRecording

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned, err := s.repo.FindOwned(ctx, tx, userID, ids)
		if err != nil {
			return err
		}
		owned = filterVariant(owned, req.Variant)
		if len(owned) == 0 {
			return recordingdomain.ErrRecordingNotFound
		}

		matched := make([]snowflake.ID, 0, len(owned))
		releases := make(map[snowflake.ID]int64)
		var scripted, freeform int64
		for _, rec := range owned {
			matched = append(matched, rec.ID)
			releases[rec.PromptID]++
			if rec.Variant == promptdomain.VariantFreeform {
				freeform++
			} else {
				scripted++
			}
		}

		affected, err := s.repo.DeleteOwned(ctx, tx, userID, matched)
		if err != nil {
			return fmt.Errorf("delete recordings: %w", err)
		}
		if affected != int64(len(matched)) {
			return recordingdomain.ErrRecordingConflict
		}

		promptIDs := make([]snowflake.ID, 0, len(releases))
		for id := range releases {
			promptIDs = append(promptIDs, id)
		}
		sort.Slice(promptIDs, func(i, j int) bool { return promptIDs[i] < promptIDs[j] })
		for _, promptID := range promptIDs {
			if err := s.promptRepo.ReleaseSlots(ctx, tx, promptID, releases[promptID], now); err != nil {
				return fmt.Errorf("release prompt slots: %w", err)
			}
		}

		if err := s.userRepo.RecordDeletions(ctx, tx, userID, scripted, freeform, now); err != nil {
			return fmt.Errorf("update user counters: %w", err)
		}

		deleted = owned
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &recordingdomain.DeleteResult{
		DeletedCount:      len(deleted),
		DeletedRecordings: make([]recordingdomain.DeletedRecording, 0, len(deleted)),
		TotalRequested:    total,
		NotFound:          append([]string{}, invalid...),
	}

	found := make(map[snowflake.ID]struct{}, len(deleted))
	variants := make(map[promptdomain.Variant]struct{}, 2)
	for _, rec := range deleted {
		found[rec.ID] = struct{}{}
		variants[rec.Variant] = struct{}{}
		result.DeletedRecordings = append(result.DeletedRecordings, recordingdomain.DeletedRecording{
			RecordingID: rec.ID.String(),
			PromptID:    rec.PromptID.String(),
			PromptText:  rec.PromptText,
			Variant:     rec.Variant,
		})
		s.deleteBlob(ctx, rec.AudioKey, "recording_deleted")
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			result.NotFound = append(result.NotFound, id.String())
		}
	}
	for v := range variants {
		s.invalidatePoolStats(v)
	}

	s.metrics.RecordReview(ctx, "delete", result.DeletedCount)
	s.log.Info("recordings deleted",
		zap.String("user_id", userID.String()),
		zap.String("actor_id", actor.ActorID()),
		zap.Int("requested", total),
		zap.Int("deleted", result.DeletedCount),
		zap.Int("not_found", len(result.NotFound)),
	)

	return result, nil
}

// parseIDs splits raw ids into parsed unique ids and the malformed inputs.
func parseIDs(raw []string) ([]snowflake.ID, []string) {
	seen := make(map[string]struct{}, len(raw))
	ids := make([]snowflake.ID, 0, len(raw))
	var invalid []string
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}

		id, err := recordingdomain.ParseID(value)
		if err != nil || id == 0 {
			invalid = append(invalid, value)
			continue
		}
		ids = append(ids, id)
	}
	return ids, invalid
}

func filterVariant(rows []recordingdomain.OwnedRecording, variant promptdomain.Variant) []recordingdomain.OwnedRecording {
	if variant == "" {
		return rows
	}
	out := rows[:0]
	for _, row := range rows {
		if row.Variant == variant {
			out = append(out, row)
		}
	}
	return out
}

package service

import (
	"context"
	"fmt"
	"strings"

	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	paymentdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UpdateStatus moves a batch along pending -> processing -> paid|failed. Reaching paid
// adds the batch to the user's paid totals.
func (s *Service) UpdateStatus(ctx context.Context, actor identitydomain.Subject, id string, req paymentdomain.UpdateStatusRequest) (*paymentdomain.Response, error) {
	batchID, err := paymentdomain.ParseID(strings.TrimSpace(id))
	if err != nil || batchID == 0 {
		return nil, paymentdomain.ErrInvalidID
	}
	next, ok := paymentdomain.ParseStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !ok {
		return nil, paymentdomain.ErrInvalidStatus
	}

	var updated *paymentdomain.Batch
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch, err := s.repo.FindByID(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if batch == nil {
			return paymentdomain.ErrNotFound
		}
		if !batch.Status.CanTransition(next) {
			return paymentdomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		change := paymentdomain.StatusChange{
			From:        batch.Status,
			To:          next,
			Method:      strings.TrimSpace(req.Method),
			Reference:   strings.TrimSpace(req.Reference),
			AdminNotes:  strings.TrimSpace(req.Notes),
			ProcessedBy: actor.ActorID(),
			Now:         now,
		}
		if next == paymentdomain.StatusPaid {
			change.PaidAt = &now
		}

		affected, err := s.repo.UpdateStatus(ctx, tx, batch.ID, change)
		if err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		if affected == 0 {
			return paymentdomain.ErrInvalidTransition
		}

		if next == paymentdomain.StatusPaid {
			if err := s.userRepo.AddPaid(ctx, tx, batch.UserID, batch.Amount, int64(batch.TotalCount), now); err != nil {
				return fmt.Errorf("update paid totals: %w", err)
			}
		}

		updated, err = s.repo.FindByID(ctx, tx, batch.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, paymentdomain.ErrNotFound
	}

	s.log.Info("payment status updated",
		zap.String("payment_id", updated.ID.String()),
		zap.String("status", string(updated.Status)),
		zap.String("actor_id", actor.ActorID()),
	)
	return toResponse(updated), nil
}

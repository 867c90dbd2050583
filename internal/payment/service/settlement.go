package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	paymentdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/domain"
	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const keySettlementLock = "speechapp:settlement:user:%s"

// Settle pays out every whole unit the user has available. The batch is recorded as paid.
func (s *Service) Settle(ctx context.Context, actor identitydomain.Subject, userID string) (*paymentdomain.Response, error) {
	id, err := paymentdomain.ParseID(strings.TrimSpace(userID))
	if err != nil || id == 0 {
		return nil, paymentdomain.ErrInvalidUserID
	}
	return s.SettleUser(ctx, id, paymentdomain.StatusPaid, actor.ActorID())
}

// RequestPayout lets a contributor claim their available units. The batch waits as pending.
func (s *Service) RequestPayout(ctx context.Context, subject identitydomain.Subject) (*paymentdomain.Response, error) {
	if subject.IsZero() {
		return nil, identitydomain.ErrUnauthenticated
	}
	return s.SettleUser(ctx, subject.UserID, paymentdomain.StatusPending, "")
}

// SettleUser consumes the oldest verified, unpaid recordings in whole threshold units
// and records them in one batch. Consumption is a guarded update: if another settlement
// took any of the rows first, the whole batch rolls back.
func (s *Service) SettleUser(ctx context.Context, userID snowflake.ID, status paymentdomain.Status, processedBy string) (*paymentdomain.Response, error) {
	if userID == 0 {
		return nil, paymentdomain.ErrInvalidUserID
	}
	if status != paymentdomain.StatusPending && status != paymentdomain.StatusPaid {
		return nil, paymentdomain.ErrInvalidStatus
	}

	if s.lock != nil {
		key := fmt.Sprintf(keySettlementLock, userID.String())
		token, ok, err := s.lock.TryLock(ctx, key, s.lockTTL)
		switch {
		case err != nil:
			s.log.Warn("settlement lock unavailable, relying on guarded update",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		case !ok:
			s.metrics.RecordSettlement(ctx, "locked")
			return nil, paymentdomain.ErrSettlementInProgress
		default:
			defer func() {
				if err := s.lock.Release(context.WithoutCancel(ctx), key, token); err != nil {
					s.log.Warn("failed to release settlement lock", zap.String("user_id", userID.String()), zap.Error(err))
				}
			}()
		}
	}

	batch, err := s.settle(ctx, userID, status, processedBy)
	if err != nil {
		s.metrics.RecordSettlement(ctx, settlementOutcome(err))
		return nil, err
	}

	s.metrics.RecordSettlement(ctx, string(status))
	s.log.Info("payment batch created",
		zap.String("payment_id", batch.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("status", string(batch.Status)),
		zap.Int("units", batch.Units),
		zap.Int("recordings", batch.TotalCount),
		zap.Int64("amount", batch.Amount),
	)
	return toResponse(batch), nil
}

func (s *Service) settle(ctx context.Context, userID snowflake.ID, status paymentdomain.Status, processedBy string) (*paymentdomain.Batch, error) {
	rules := s.payout.Get()
	threshold := rules.Threshold

	var batch *paymentdomain.Batch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unpaid, err := s.repo.ListUnpaidVerified(ctx, tx, userID)
		if err != nil {
			return err
		}

		available := len(unpaid)
		if available < threshold {
			return &paymentdomain.InsufficientRecordingsError{
				Available: int64(available),
				Required:  int64(threshold),
				Missing:   int64(threshold - available),
			}
		}

		units := available / threshold
		taken := unpaid[:units*threshold]

		now := s.clock.Now()
		batch = &paymentdomain.Batch{
			ID:          s.genID.Generate(),
			UserID:      userID,
			Units:       units,
			Threshold:   threshold,
			TotalCount:  len(taken),
			Amount:      int64(units) * rules.AmountPerBatch,
			Currency:    rules.Currency,
			Status:      status,
			ProcessedBy: processedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if status == paymentdomain.StatusPaid {
			batch.PaidAt = &now
		}

		ids := make([]snowflake.ID, 0, len(taken))
		items := make([]paymentdomain.BatchItem, 0, len(taken))
		for i, rec := range taken {
			if rec.Variant == promptdomain.VariantFreeform {
				batch.FreeformCount++
			} else {
				batch.ScriptedCount++
			}
			ids = append(ids, rec.ID)
			items = append(items, paymentdomain.BatchItem{
				ID:          s.genID.Generate(),
				PaymentID:   batch.ID,
				RecordingID: rec.ID,
				Variant:     rec.Variant,
				Position:    i + 1,
				RecordedAt:  rec.CreatedAt,
			})
		}

		if err := s.repo.InsertBatch(ctx, tx, batch); err != nil {
			return fmt.Errorf("insert payment batch: %w", err)
		}

		consumed, err := s.repo.ConsumeRecordings(ctx, tx, userID, batch.ID, ids, now)
		if err != nil {
			return fmt.Errorf("consume recordings: %w", err)
		}
		if consumed != int64(len(ids)) {
			return paymentdomain.ErrConcurrentSettlement
		}

		if err := s.repo.InsertItems(ctx, tx, items); err != nil {
			return fmt.Errorf("insert payment items: %w", err)
		}

		if status == paymentdomain.StatusPaid {
			if err := s.userRepo.AddPaid(ctx, tx, userID, batch.Amount, int64(batch.TotalCount), now); err != nil {
				return fmt.Errorf("update paid totals: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func settlementOutcome(err error) string {
	switch {
	case errors.Is(err, paymentdomain.ErrInsufficientRecordings):
		return "insufficient"
	case errors.Is(err, paymentdomain.ErrConcurrentSettlement):
		return "conflict"
	default:
		return "error"
	}
}

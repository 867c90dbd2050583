package service

import (
	"context"

	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// allocateAttempts bounds retries when the pool shrinks between the count and the pick.
const allocateAttempts = 3

// Allocate picks uniformly at random among the prompts the user has not recorded yet
// that are active and below capacity.
func (s *Service) Allocate(ctx context.Context, userID snowflake.ID, variant promptdomain.Variant) (*promptdomain.Response, error) {
	if userID == 0 {
		return nil, promptdomain.ErrInvalidID
	}

	for attempt := 0; attempt < allocateAttempts; attempt++ {
		eligible, err := s.repo.CountEligible(ctx, s.db, variant, userID)
		if err != nil {
			return nil, err
		}
		if eligible == 0 {
			s.metrics.RecordAllocation(ctx, string(variant), "exhausted")
			return nil, promptdomain.ErrNoAvailablePrompts
		}

		offset := int64(s.picker.IntN(int(eligible)))
		item, err := s.repo.FindEligibleAt(ctx, s.db, variant, userID, offset)
		if err != nil {
			return nil, err
		}
		if item != nil {
			s.metrics.RecordAllocation(ctx, string(variant), "allocated")
			return toResponse(item), nil
		}

		s.log.Debug("eligible pool shrank during allocation",
			zap.String("variant", string(variant)),
			zap.Int64("eligible", eligible),
			zap.Int64("offset", offset),
			zap.Int("attempt", attempt+1),
		)
	}

	s.metrics.RecordAllocation(ctx, string(variant), "exhausted")
	return nil, promptdomain.ErrNoAvailablePrompts
}

package service

import (
	"context"
	"time"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/clock"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
	obsmetrics "github.com/LyngualLabs/SpeechAppBackendV2/internal/observability/metrics"
	paymentdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/ratelimit"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultLockTTL = 30 * time.Second

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Cfg      config.Config
	Payout   config.PayoutSource
	Repo     paymentdomain.Repository
	UserRepo userdomain.Repository
	Lock     ratelimit.SettlementLock `optional:"true"`
	Metrics  *obsmetrics.Metrics      `optional:"true"`
	Clock    clock.Clock              `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	payout   config.PayoutSource
	repo     paymentdomain.Repository
	userRepo userdomain.Repository
	lock     ratelimit.SettlementLock
	lockTTL  time.Duration
	metrics  *obsmetrics.Metrics
	clock    clock.Clock
}

func New(p Params) paymentdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	payout := p.Payout
	if payout == nil {
		payout = config.StaticPayout(config.DefaultPayoutConfig())
	}
	lockTTL := p.Cfg.Settlement.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		payout:   payout,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		lock:     p.Lock,
		lockTTL:  lockTTL,
		metrics:  p.Metrics,
		clock:    clk,
	}
}

func (s *Service) Eligibility(ctx context.Context, userID snowflake.ID) (*paymentdomain.Eligibility, error) {
	if userID == 0 {
		return nil, paymentdomain.ErrInvalidUserID
	}

	rules := s.payout.Get()
	counts, err := s.repo.CountUnpaidVerified(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	total := counts.Total()
	threshold := int64(rules.Threshold)
	units := total / threshold

	out := &paymentdomain.Eligibility{
		UnpaidVerifiedCount: total,
		ScriptedCount:       counts.Scripted,
		FreeformCount:       counts.Freeform,
		EligibleBatches:     units,
		Remainder:           total % threshold,
		Threshold:           rules.Threshold,
		AmountPerBatch:      rules.AmountPerBatch,
		EligibleAmount:      units * rules.AmountPerBatch,
		Currency:            rules.Currency,
		CanRequestPayment:   units >= 1,
	}
	if units == 0 {
		out.Missing = threshold - total
	}

	lastPaid, err := s.repo.LastPaidAt(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if lastPaid != nil && rules.PaymentIntervalDays > 0 {
		next := lastPaid.UTC().AddDate(0, 0, rules.PaymentIntervalDays)
		out.NextPaymentAt = &next
	}

	return out, nil
}

func (s *Service) History(ctx context.Context, userID snowflake.ID) (*paymentdomain.History, error) {
	if userID == 0 {
		return nil, paymentdomain.ErrInvalidUserID
	}

	batches, err := s.repo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	history := &paymentdomain.History{Payments: make([]*paymentdomain.Response, 0, len(batches))}
	for _, b := range batches {
		history.Payments = append(history.Payments, toResponse(b))
		switch b.Status {
		case paymentdomain.StatusPaid:
			history.Summary.TotalEarned += b.Amount
			history.Summary.TotalRecordingsPaid += int64(b.TotalCount)
			history.Summary.PaidPayments++
		case paymentdomain.StatusPending, paymentdomain.StatusProcessing:
			history.Summary.PendingAmount += b.Amount
			history.Summary.PendingPayments++
		}
	}
	return history, nil
}

func (s *Service) ListEligibleUsers(ctx context.Context) ([]paymentdomain.EligibleUser, error) {
	rules := s.payout.Get()
	rows, err := s.repo.ListEligibleUsers(ctx, s.db, rules.Threshold)
	if err != nil {
		return nil, err
	}

	threshold := int64(rules.Threshold)
	out := make([]paymentdomain.EligibleUser, 0, len(rows))
	for _, row := range rows {
		total := row.Scripted + row.Freeform
		units := total / threshold
		out = append(out, paymentdomain.EligibleUser{
			UserID:          row.UserID.String(),
			DisplayName:     row.DisplayName,
			Email:           row.Email,
			UnpaidVerified:  total,
			ScriptedCount:   row.Scripted,
			FreeformCount:   row.Freeform,
			EligibleBatches: units,
			EligibleAmount:  units * rules.AmountPerBatch,
			Remainder:       total % threshold,
		})
	}
	return out, nil
}

func toResponse(b *paymentdomain.Batch) *paymentdomain.Response {
	return &paymentdomain.Response{
		ID:            b.ID.String(),
		UserID:        b.UserID.String(),
		Units:         b.Units,
		Threshold:     b.Threshold,
		TotalCount:    b.TotalCount,
		ScriptedCount: b.ScriptedCount,
		FreeformCount: b.FreeformCount,
		Amount:        b.Amount,
		Currency:      b.Currency,
		Status:        b.Status,
		Method:        b.Method,
		Reference:     b.Reference,
		AdminNotes:    b.AdminNotes,
		ProcessedBy:   b.ProcessedBy,
		PaidAt:        b.PaidAt,
		CreatedAt:     b.CreatedAt,
	}
}

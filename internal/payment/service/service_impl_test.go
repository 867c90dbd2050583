package service_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/clock"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	paymentdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/domain"
	paymentrepo "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/repository"
	paymentservice "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/service"
	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	recordingdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/recording/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/testutil"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	userrepo "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testPayout = config.StaticPayout{
	Threshold:           2,
	AmountPerBatch:      200,
	Currency:            "NGN",
	PaymentIntervalDays: 7,
}

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   paymentdomain.Service
}

func newFixture(t *testing.T, opts ...func(*paymentservice.Params)) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC))

	params := paymentservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Payout:   testPayout,
		Repo:     paymentrepo.Provide(),
		UserRepo: userrepo.Provide(),
		Clock:    clk,
	}
	for _, opt := range opts {
		opt(&params)
	}
	return &fixture{db: db, node: node, clock: clk, svc: paymentservice.New(params)}
}

// seedRecordings inserts n recordings for user one second apart, advancing the clock.
func seedRecordings(t *testing.T, f *fixture, user *userdomain.User, variant promptdomain.Variant, n int, verified bool) []snowflake.ID {
	t.Helper()
	ids := make([]snowflake.ID, 0, n)
	for i := 0; i < n; i++ {
		rec := &recordingdomain.Recording{
			ID:        f.node.Generate(),
			Variant:   variant,
			UserID:    user.ID,
			PromptID:  f.node.Generate(),
			AudioKey:  "k",
			AudioURL:  "https://cdn.example.com/k",
			CreatedAt: f.clock.Now(),
			UpdatedAt: f.clock.Now(),
		}
		f.clock.Advance(time.Second)
		if err := f.db.Create(rec).Error; err != nil {
			t.Fatalf("seed recording: %v", err)
		}
		if verified {
			if err := f.db.Exec("UPDATE recordings SET is_verified = ? WHERE id = ?", true, rec.ID).Error; err != nil {
				t.Fatalf("verify recording: %v", err)
			}
		}
		ids = append(ids, rec.ID)
	}
	return ids
}

func adminSubject(u *userdomain.User) identitydomain.Subject {
	return identitydomain.Subject{UserID: u.ID, DisplayName: u.DisplayName, Role: u.Role}
}

func TestSettleConsumesWholeUnitsOldestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := testutil.SeedUser(t, f.db, f.node, "Admin", userdomain.RoleAdmin)
	alice := testutil.SeedUser(t, f.db, f.node, "Alice", "")
	scripted := seedRecordings(t, f, alice, promptdomain.VariantScripted, 3, true)
	seedRecordings(t, f, alice, promptdomain.VariantFreeform, 2, true)
	seedRecordings(t, f, alice, promptdomain.VariantScripted, 2, false)

	batch, err := f.svc.Settle(ctx, adminSubject(admin), alice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusPaid, batch.Status)
	assert.Equal(t, 2, batch.Units)
	assert.Equal(t, 4, batch.TotalCount)
	assert.Equal(t, 3, batch.ScriptedCount)
	assert.Equal(t, 1, batch.FreeformCount)
	assert.EqualValues(t, 400, batch.Amount)
	assert.Equal(t, "NGN", batch.Currency)
	assert.Equal(t, admin.ID.String(), batch.ProcessedBy)
	require.NotNil(t, batch.PaidAt)

	var paid []recordingdomain.Recording
	require.NoError(t, f.db.Where("user_id = ? AND is_paid_for = ?", alice.ID, true).Order("created_at").Find(&paid).Error)
	require.Len(t, paid, 4)
	assert.Equal(t, scripted[0], paid[0].ID)
	for _, rec := range paid {
		require.NotNil(t, rec.PaymentID)
		assert.Equal(t, batch.ID, rec.PaymentID.String())
	}

	var items int64
	require.NoError(t, f.db.Model(&paymentdomain.BatchItem{}).Where("payment_id = ?", *paid[0].PaymentID).Count(&items).Error)
	assert.EqualValues(t, 4, items)

	user := testutil.LoadUser(t, f.db, alice.ID)
	assert.EqualValues(t, 400, user.TotalPaidAmount)
	assert.EqualValues(t, 4, user.TotalPaidRecordings)

	elig, err := f.svc.Eligibility(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, elig.UnpaidVerifiedCount)
	assert.EqualValues(t, 0, elig.EligibleBatches)
	assert.EqualValues(t, 1, elig.Missing)
	assert.False(t, elig.CanRequestPayment)
	require.NotNil(t, elig.NextPaymentAt)
	assert.True(t, f.clock.Now().AddDate(0, 0, 7).Equal(*elig.NextPaymentAt))
}

func TestSettleInsufficientReportsMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := testutil.SeedUser(t, f.db, f.node, "Alice", "")
	seedRecordings(t, f, alice, promptdomain.VariantScripted, 1, true)
	seedRecordings(t, f, alice, promptdomain.VariantScripted, 3, false)

	_, err := f.svc.RequestPayout(ctx, adminSubject(alice))
	require.ErrorIs(t, err, paymentdomain.ErrInsufficientRecordings)

	var insufficient *paymentdomain.InsufficientRecordingsError
	require.True(t, errors.As(err, &insufficient))
	assert.EqualValues(t, 1, insufficient.Available)
	assert.EqualValues(t, 2, insufficient.Required)
	assert.EqualValues(t, 1, insufficient.Missing)

	var batches int64
	require.NoError(t, f.db.Model(&paymentdomain.Batch{}).Count(&batches).Error)
	assert.EqualValues(t, 0, batches)
}

type staleListRepo struct {
	paymentdomain.Repository
	extra snowflake.ID
}

func (r staleListRepo) ListUnpaidVerified(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]paymentdomain.UnpaidRecording, error) {
	rows, err := r.Repository.ListUnpaidVerified(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	return append(rows, paymentdomain.UnpaidRecording{ID: r.extra, Variant: promptdomain.VariantScripted}), nil
}

func TestSettleRollsBackWhenRowsWereTaken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(p *paymentservice.Params) {
		p.Repo = staleListRepo{Repository: paymentrepo.Provide(), extra: 42}
	})
	alice := testutil.SeedUser(t, f.db, f.node, "Alice", "")
	seedRecordings(t, f, alice, promptdomain.VariantScripted, 3, true)

	_, err := f.svc.RequestPayout(ctx, adminSubject(alice))
	assert.ErrorIs(t, err, paymentdomain.ErrConcurrentSettlement)

	var paid, batches int64
	require.NoError(t, f.db.Model(&recordingdomain.Recording{}).Where("is_paid_for = ?", true).Count(&paid).Error)
	require.NoError(t, f.db.Model(&paymentdomain.Batch{}).Count(&batches).Error)
	assert.EqualValues(t, 0, paid)
	assert.EqualValues(t, 0, batches)
}

// listedTogether holds every settlement after its read until all of them have read,
// so they race on the same unpaid rows.
type listedTogether struct {
	paymentdomain.Repository
	listed *sync.WaitGroup
}

func (r listedTogether) ListUnpaidVerified(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]paymentdomain.UnpaidRecording, error) {
	rows, err := r.Repository.ListUnpaidVerified(ctx, db, userID)
	r.listed.Done()
	r.listed.Wait()
	return rows, err
}

func TestConcurrentSettlementsProduceOneBatch(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenFileDB(t, 4)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC))

	const racers = 2
	listed := &sync.WaitGroup{}
	listed.Add(racers)
	f := &fixture{db: db, node: node, clock: clk}
	f.svc = paymentservice.New(paymentservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Payout:   testPayout,
		Repo:     listedTogether{Repository: paymentrepo.Provide(), listed: listed},
		UserRepo: userrepo.Provide(),
		Clock:    clk,
	})
	alice := testutil.SeedUser(t, db, node, "Alice", "")
	seedRecordings(t, f, alice, promptdomain.VariantScripted, 4, true)

	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.SettleUser(ctx, alice.ID, paymentdomain.StatusPending, "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	require.Equal(t, 1, succeeded, "errors: %v", errs)

	var batches []paymentdomain.Batch
	require.NoError(t, db.Find(&batches).Error)
	require.Len(t, batches, 1)
	assert.Equal(t, 4, batches[0].TotalCount)

	var items, paid int64
	require.NoError(t, db.Model(&paymentdomain.BatchItem{}).Count(&items).Error)
	require.NoError(t, db.Model(&recordingdomain.Recording{}).
		Where("is_paid_for = ? AND payment_id = ?", true, batches[0].ID).
		Count(&paid).Error)
	assert.EqualValues(t, 4, items)
	assert.EqualValues(t, 4, paid)
}

type heldLock struct{ released bool }

func (l *heldLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	return "", false, nil
}

func (l *heldLock) Release(ctx context.Context, key, token string) error {
	l.released = true
	return nil
}

type brokenLock struct{}

func (brokenLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	return "", false, errors.New("redis down")
}

func (brokenLock) Release(ctx context.Context, key, token string) error { return nil }

func TestSettleRespectsLock(t *testing.T) {
	ctx := context.Background()

	lock := &heldLock{}
	f := newFixture(t, func(p *paymentservice.Params) { p.Lock = lock })
	alice := testutil.SeedUser(t, f.db, f.node, "Alice", "")
	seedRecordings(t, f, alice, promptdomain.VariantScripted, 2, true)

	_, err := f.svc.SettleUser(ctx, alice.ID, paymentdomain.StatusPending, "scheduler")
	assert.ErrorIs(t, err, paymentdomain.ErrSettlementInProgress)
	assert.False(t, lock.released)

	g := newFixture(t, func(p *paymentservice.Params) { p.Lock = brokenLock{} })
	bob := testutil.SeedUser(t, g.db, g.node, "Bob", "")
	seedRecordings(t, g, bob, promptdomain.VariantScripted, 2, true)

	batch, err := g.svc.SettleUser(ctx, bob.ID, paymentdomain.StatusPending, "scheduler")
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusPending, batch.Status)
	assert.Equal(t, "scheduler", batch.ProcessedBy)
}

func TestUpdateStatusTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := testutil.SeedUser(t, f.db, f.node, "Admin", userdomain.RoleAdmin)
	alice := testutil.SeedUser(t, f.db, f.node, "Alice", "")
	seedRecordings(t, f, alice, promptdomain.VariantScripted, 2, true)

	batch, err := f.svc.RequestPayout(ctx, adminSubject(alice))
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusPending, batch.Status)
	assert.Nil(t, batch.PaidAt)
	assert.EqualValues(t, 0, testutil.LoadUser(t, f.db, alice.ID).TotalPaidAmount)

	processing, err := f.svc.UpdateStatus(ctx, adminSubject(admin), batch.ID, paymentdomain.UpdateStatusRequest{
		Status: "processing",
		Method: "bank_transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusProcessing, processing.Status)
	assert.Equal(t, "bank_transfer", processing.Method)

	paid, err := f.svc.UpdateStatus(ctx, adminSubject(admin), batch.ID, paymentdomain.UpdateStatusRequest{
		Status:    "PAID",
		Reference: "TRX-1",
	})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusPaid, paid.Status)
	assert.Equal(t, "bank_transfer", paid.Method)
	assert.Equal(t, "TRX-1", paid.Reference)
	require.NotNil(t, paid.PaidAt)

	_, err = f.svc.UpdateStatus(ctx, adminSubject(admin), batch.ID, paymentdomain.UpdateStatusRequest{Status: "paid"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidTransition)

	user := testutil.LoadUser(t, f.db, alice.ID)
	assert.EqualValues(t, 200, user.TotalPaidAmount)
	assert.EqualValues(t, 2, user.TotalPaidRecordings)

	_, err = f.svc.UpdateStatus(ctx, adminSubject(admin), batch.ID, paymentdomain.UpdateStatusRequest{Status: "refunded"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidStatus)
	_, err = f.svc.UpdateStatus(ctx, adminSubject(admin), "12345", paymentdomain.UpdateStatusRequest{Status: "paid"})
	assert.ErrorIs(t, err, paymentdomain.ErrNotFound)
}

func TestHistorySummarisesBatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := testutil.SeedUser(t, f.db, f.node, "Admin", userdomain.RoleAdmin)
	alice := testutil.SeedUser(t, f.db, f.node, "Alice", "")

	seedRecordings(t, f, alice, promptdomain.VariantScripted, 2, true)
	_, err := f.svc.Settle(ctx, adminSubject(admin), alice.ID.String())
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	seedRecordings(t, f, alice, promptdomain.VariantFreeform, 4, true)
	_, err = f.svc.RequestPayout(ctx, adminSubject(alice))
	require.NoError(t, err)

	history, err := f.svc.History(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, history.Payments, 2)
	assert.EqualValues(t, 200, history.Summary.TotalEarned)
	assert.EqualValues(t, 400, history.Summary.PendingAmount)
	assert.EqualValues(t, 2, history.Summary.TotalRecordingsPaid)
	assert.Equal(t, 1, history.Summary.PaidPayments)
	assert.Equal(t, 1, history.Summary.PendingPayments)
}

func TestListEligibleUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := testutil.SeedUser(t, f.db, f.node, "Alice", "")
	bob := testutil.SeedUser(t, f.db, f.node, "Bob", "")
	seedRecordings(t, f, alice, promptdomain.VariantScripted, 3, true)
	seedRecordings(t, f, alice, promptdomain.VariantFreeform, 2, true)
	seedRecordings(t, f, bob, promptdomain.VariantScripted, 1, true)

	users, err := f.svc.ListEligibleUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, alice.ID.String(), users[0].UserID)
	assert.EqualValues(t, 5, users[0].UnpaidVerified)
	assert.EqualValues(t, 2, users[0].EligibleBatches)
	assert.EqualValues(t, 400, users[0].EligibleAmount)
	assert.EqualValues(t, 1, users[0].Remainder)
}

func TestReceiptVisibleToOwnerAndAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := testutil.SeedUser(t, f.db, f.node, "Admin", userdomain.RoleAdmin)
	alice := testutil.SeedUser(t, f.db, f.node, "Alice", "")
	bob := testutil.SeedUser(t, f.db, f.node, "Bob", "")
	seedRecordings(t, f, alice, promptdomain.VariantScripted, 2, true)

	batch, err := f.svc.Settle(ctx, adminSubject(admin), alice.ID.String())
	require.NoError(t, err)

	file, err := f.svc.Receipt(ctx, adminSubject(alice), batch.ID)
	require.NoError(t, err)
	assert.Contains(t, file.FileName, batch.ID)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF")))

	_, err = f.svc.Receipt(ctx, adminSubject(admin), batch.ID)
	require.NoError(t, err)

	_, err = f.svc.Receipt(ctx, adminSubject(bob), batch.ID)
	assert.ErrorIs(t, err, paymentdomain.ErrNotFound)
}

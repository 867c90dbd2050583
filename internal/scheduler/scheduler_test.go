package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/authorization"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/clock"
	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	obsmetrics "github.com/LyngualLabs/SpeechAppBackendV2/internal/observability/metrics"
	paymentdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/domain"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

type stubAuthz struct {
	err error
}

func (s stubAuthz) Authorize(context.Context, identitydomain.Subject, string, string) error {
	return s.err
}

func (s stubAuthz) AuthorizeSystem(context.Context, string, string) error {
	return s.err
}

func (s stubAuthz) SyncRole(context.Context, snowflake.ID, userdomain.Role) error {
	return nil
}

type stubPayments struct {
	paymentdomain.Service

	eligible []paymentdomain.EligibleUser
	results  map[string]error
	settled  []string
}

func (s *stubPayments) ListEligibleUsers(context.Context) ([]paymentdomain.EligibleUser, error) {
	return s.eligible, nil
}

func (s *stubPayments) SettleUser(_ context.Context, userID snowflake.ID, status paymentdomain.Status, processedBy string) (*paymentdomain.Response, error) {
	if status != paymentdomain.StatusPending || processedBy != "scheduler" {
		return nil, errors.New("unexpected settlement arguments")
	}
	if err := s.results[userID.String()]; err != nil {
		return nil, err
	}
	s.settled = append(s.settled, userID.String())
	return &paymentdomain.Response{ID: "1", UserID: userID.String(), Amount: 1000}, nil
}

func newTestScheduler(t *testing.T, payments paymentdomain.Service, authz authorization.Service, cfg Config) *Scheduler {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	s, err := New(Params{
		Log:        zap.NewNop(),
		GenID:      node,
		PaymentSvc: payments,
		AuthzSvc:   authz,
		Clock:      clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		Config:     cfg,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "speechapp",
		Environment: "test",
	})

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	s := &Scheduler{log: zap.NewNop(), genID: node, clock: clock.NewFakeClock(time.Time{})}
	err = s.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "speechapp",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "speechapp_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "speechapp",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "speechapp_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestPayoutSweepSettlesEligibleUsers(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{ServiceName: "speechapp", Environment: "test"})

	payments := &stubPayments{
		eligible: []paymentdomain.EligibleUser{
			{UserID: "101"},
			{UserID: "102"},
			{UserID: "103"},
			{UserID: "not-an-id"},
		},
		results: map[string]error{
			"102": paymentdomain.ErrSettlementInProgress,
			"103": &paymentdomain.InsufficientRecordingsError{Available: 1, Required: 2, Missing: 1},
		},
	}
	s := newTestScheduler(t, payments, stubAuthz{}, Config{})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(payments.settled) != 1 || payments.settled[0] != "101" {
		t.Fatalf("expected only user 101 settled, got %v", payments.settled)
	}

	processed := map[string]string{"service": "speechapp", "env": "test", "job": jobPayoutSweep, "resource": "payment_batch"}
	if got := getCounterValue(t, registry, "speechapp_scheduler_batch_processed_total", processed); got != 1 {
		t.Fatalf("expected 1 processed batch, got %v", got)
	}
	lockHeld := map[string]string{"service": "speechapp", "env": "test", "job": jobPayoutSweep, "reason": obsmetrics.SchedulerBatchDeferredReasonLockHeld}
	if got := getCounterValue(t, registry, "speechapp_scheduler_batch_deferred_total", lockHeld); got != 1 {
		t.Fatalf("expected 1 lock-held deferral, got %v", got)
	}
}

func TestPayoutSweepRespectsBatchSize(t *testing.T) {
	restore := swapPrometheusRegistry(prometheus.NewRegistry())
	defer restore()
	obsmetrics.ResetSchedulerMetricsForTest()

	payments := &stubPayments{eligible: []paymentdomain.EligibleUser{{UserID: "1"}, {UserID: "2"}, {UserID: "3"}}}
	s := newTestScheduler(t, payments, stubAuthz{}, Config{BatchSize: 2})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(payments.settled) != 2 {
		t.Fatalf("expected 2 settlements, got %v", payments.settled)
	}
}

func TestPayoutSweepFailsWhenForbidden(t *testing.T) {
	restore := swapPrometheusRegistry(prometheus.NewRegistry())
	defer restore()
	obsmetrics.ResetSchedulerMetricsForTest()

	payments := &stubPayments{eligible: []paymentdomain.EligibleUser{{UserID: "1"}}}
	s := newTestScheduler(t, payments, stubAuthz{err: authorization.ErrForbidden}, Config{})

	err := s.RunOnce(context.Background())
	if !errors.Is(err, authorization.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(payments.settled) != 0 {
		t.Fatalf("expected no settlements, got %v", payments.settled)
	}
}

func TestStartWithoutCronIsNoop(t *testing.T) {
	s := newTestScheduler(t, &stubPayments{}, stubAuthz{}, Config{})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStartRejectsInvalidCron(t *testing.T) {
	s := newTestScheduler(t, &stubPayments{}, stubAuthz{}, Config{Cron: "every tuesday"})
	if err := s.Start(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestStartAndStopWithCron(t *testing.T) {
	s := newTestScheduler(t, &stubPayments{}, stubAuthz{}, Config{Cron: "0 2 * * *"})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}

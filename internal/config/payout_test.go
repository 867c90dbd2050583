package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestPayoutConfigDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewPayoutConfigHolder(Config{}, zap.NewNop())
	if err != nil {
		t.Fatalf("load payout config: %v", err)
	}

	got := holder.Get()
	want := DefaultPayoutConfig()
	if got != want {
		t.Fatalf("expected defaults %+v, got %+v", want, got)
	}
}

func TestPayoutConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payout.yml")
	body := []byte("payout:\n  threshold: 2\n  amountPerBatch: 200\n  currency: USD\n  paymentIntervalDays: 14\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	holder, err := NewPayoutConfigHolder(Config{Settlement: SettlementConfig{PayoutCfgPath: path}}, zap.NewNop())
	if err != nil {
		t.Fatalf("load payout config: %v", err)
	}

	got := holder.Get()
	if got.Threshold != 2 || got.AmountPerBatch != 200 || got.Currency != "USD" || got.PaymentIntervalDays != 14 {
		t.Fatalf("unexpected payout config %+v", got)
	}
}

func TestPayoutConfigRejectsZeroThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payout.yml")
	body := []byte("payout:\n  threshold: 0\n  amountPerBatch: 200\n  currency: USD\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := NewPayoutConfigHolder(Config{Settlement: SettlementConfig{PayoutCfgPath: path}}, zap.NewNop()); err == nil {
		t.Fatal("expected validation error for zero threshold")
	}
}

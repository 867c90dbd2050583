package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PayoutConfig carries the settlement rules: how many verified recordings
// make one payment unit and what each unit is worth.
type PayoutConfig struct {
	Threshold           int    `mapstructure:"threshold" json:"threshold"`
	AmountPerBatch      int64  `mapstructure:"amountPerBatch" json:"amount_per_batch"`
	Currency            string `mapstructure:"currency" json:"currency"`
	PaymentIntervalDays int    `mapstructure:"paymentIntervalDays" json:"payment_interval_days"`
}

// PayoutSource yields the payout rules in effect right now.
type PayoutSource interface {
	Get() PayoutConfig
}

func DefaultPayoutConfig() PayoutConfig {
	return PayoutConfig{
		Threshold:           500,
		AmountPerBatch:      1000,
		Currency:            "NGN",
		PaymentIntervalDays: 7,
	}
}

type PayoutConfigHolder struct {
	current atomic.Value // holds PayoutConfig
}

func NewPayoutConfigHolder(cfg Config, log *zap.Logger) (*PayoutConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.payout")

	v := viper.New()
	if path := strings.TrimSpace(cfg.Settlement.PayoutCfgPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("payout")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/speechapp")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SPEECHAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPayoutConfig()
	v.SetDefault("payout.threshold", defaults.Threshold)
	v.SetDefault("payout.amountPerBatch", defaults.AmountPerBatch)
	v.SetDefault("payout.currency", defaults.Currency)
	v.SetDefault("payout.paymentIntervalDays", defaults.PaymentIntervalDays)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var current PayoutConfig
	if err := v.UnmarshalKey("payout", &current); err != nil {
		return nil, err
	}
	if err := validatePayoutConfig(current); err != nil {
		return nil, err
	}

	holder := &PayoutConfigHolder{}
	holder.current.Store(current)

	log.Info("payout config loaded",
		zap.Bool("from_file", fileLoaded),
		zap.Int("threshold", current.Threshold),
		zap.Int64("amount_per_batch", current.AmountPerBatch),
		zap.String("currency", current.Currency),
	)

	if fileLoaded {
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated PayoutConfig
			if err := v.UnmarshalKey("payout", &updated); err != nil {
				log.Warn("payout config reload failed", zap.Error(err))
				return
			}
			if err := validatePayoutConfig(updated); err != nil {
				log.Warn("invalid payout config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("payout config reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *PayoutConfigHolder) Get() PayoutConfig {
	return h.current.Load().(PayoutConfig)
}

// StaticPayout is a fixed PayoutSource.
type StaticPayout PayoutConfig

func (s StaticPayout) Get() PayoutConfig { return PayoutConfig(s) }

func validatePayoutConfig(cfg PayoutConfig) error {
	if cfg.Threshold < 1 {
		return errors.New("payout.threshold must be at least 1")
	}
	if cfg.AmountPerBatch <= 0 {
		return errors.New("payout.amountPerBatch must be positive")
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("payout.currency cannot be empty")
	}
	if cfg.PaymentIntervalDays < 0 {
		return errors.New("payout.paymentIntervalDays cannot be negative")
	}
	return nil
}

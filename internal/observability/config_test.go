package observability

import (
	"testing"
	"time"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func TestLoadConfigQueryLogDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("DATABASE_LOG_LEVEL", "")
	t.Setenv("DATABASE_SLOW_QUERY_MS", "")

	prod := LoadConfig(config.Config{AppName: " ", AppVersion: "1.2.0", Environment: "production"})
	require.Equal(t, defaultServiceName, prod.ServiceName)
	require.Equal(t, "1.2.0", prod.Version)
	require.Equal(t, "warn", prod.QueryLogLevel)
	require.Equal(t, 200*time.Millisecond, prod.SlowQuery)
	require.False(t, prod.Debug())

	dev := LoadConfig(config.Config{AppName: "speechapp", Environment: "development"})
	require.Equal(t, "info", dev.QueryLogLevel)
	require.True(t, dev.Debug())
}

func TestGormLoggerConfigFollowsEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("DATABASE_LOG_LEVEL", "Silent")
	t.Setenv("DATABASE_SLOW_QUERY_MS", "750")

	cfg := LoadConfig(config.Config{Environment: "production"})
	gormCfg := provideGormLoggerConfig(cfg, zap.NewNop())
	require.Equal(t, gormlogger.Silent, gormCfg.Level)
	require.Equal(t, 750*time.Millisecond, gormCfg.SlowThreshold)
	require.NotNil(t, gormCfg.Base)

	t.Setenv("DATABASE_LOG_LEVEL", "bogus")
	t.Setenv("DATABASE_SLOW_QUERY_MS", "-5")
	cfg = LoadConfig(config.Config{Environment: "production"})
	gormCfg = provideGormLoggerConfig(cfg, zap.NewNop())
	require.Equal(t, gormlogger.Warn, gormCfg.Level)
	require.Equal(t, 200*time.Millisecond, gormCfg.SlowThreshold)
}

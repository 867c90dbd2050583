package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	obscontext "github.com/LyngualLabs/SpeechAppBackendV2/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewGormLogger(GormLoggerConfig{
		Level:         level,
		SlowThreshold: 50 * time.Millisecond,
		Base:          zap.New(core),
	}), logs
}

func statement(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormTraceTagsFailuresWithRequestFields(t *testing.T) {
	l, logs := newObservedGormLogger(gormlogger.Warn)
	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, "user", "1001")

	l.Trace(ctx, time.Now(), statement(`UPDATE prompts
		 SET user_count = user_count + 1 WHERE id = ? AND user_count < max_users`, 0), errors.New("database is locked"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "gorm.query_failed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "UPDATE", fields["operation"])
	assert.Equal(t, "prompts", fields["table"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "1001", fields["actor_id"])
	assert.Equal(t, "UPDATE prompts SET user_count = user_count + 1 WHERE id = ? AND user_count < max_users", fields["sql"])
	assert.Equal(t, "database is locked", fields["error"])
}

func TestGormTraceLevels(t *testing.T) {
	l, logs := newObservedGormLogger(gormlogger.Warn)

	l.Trace(context.Background(), time.Now(), statement("SELECT id FROM users WHERE id = ?", 1), nil)
	l.Trace(context.Background(), time.Now(), statement("SELECT id FROM users WHERE id = ?", 0), gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now().Add(-time.Second), statement("SELECT COUNT(*) FROM recordings", 1), nil)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "gorm.slow_query", logs.All()[0].Message)

	verbose := l.LogMode(gormlogger.Info)
	verbose.Trace(context.Background(), time.Now(), statement("INSERT INTO payment_batches (id) VALUES (?)", 1), nil)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "payment_batches", logs.All()[1].ContextMap()["table"])

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), statement("DELETE FROM recordings", 1), errors.New("boom"))
	assert.Equal(t, 2, logs.Len())
}

func TestGormParamsFilterDropsValues(t *testing.T) {
	l, _ := newObservedGormLogger(gormlogger.Info)
	sql, params := l.ParamsFilter(context.Background(), "SELECT 1 FROM users WHERE email = ?", "ada@example.com")
	assert.Equal(t, "SELECT 1 FROM users WHERE email = ?", sql)
	assert.Nil(t, params)
}

func TestTableFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT COUNT(*) FROM prompts p WHERE p.variant = ?":   "prompts",
		"INSERT INTO recordings (id) VALUES (?)":               "recordings",
		"update users set suspended = ? where id = ?":          "users",
		"SELECT * FROM (SELECT id FROM payment_batch_items) x": "payment_batch_items",
		`DELETE FROM "auth_sessions" WHERE id = ?`:             "auth_sessions",
		"PRAGMA busy_timeout = 5000":                           "",
	}
	for sql, want := range cases {
		assert.Equal(t, want, tableFromSQL(sql), sql)
	}
}

// Package testutil opens throwaway databases and seeds rows for package tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/migration"
	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// OpenDB returns a migrated in-memory sqlite database limited to one connection,
// so concurrent callers queue on the pool the way they would on row locks.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared&_loc=auto", time.Now().UnixNano(), dbSeq.Add(1))
	db := open(t, dsn, 1)
	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("set busy timeout: %v", err)
	}
	return db
}

// OpenFileDB returns a migrated WAL sqlite file with a pool of conns connections,
// so concurrent transactions run on separate connections.
func OpenFileDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "speechapp.db")
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	return open(t, dsn, conns)
}

func open(t *testing.T, dsn string, conns int) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(conns)
	sqlDB.SetMaxIdleConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func SeedUser(t *testing.T, db *gorm.DB, node *snowflake.Node, displayName string, role userdomain.Role) *userdomain.User {
	t.Helper()
	if role == "" {
		role = userdomain.RoleUser
	}
	id := node.Generate()
	user := &userdomain.User{
		ID:          id,
		DisplayName: displayName,
		Email:       fmt.Sprintf("user-%s@example.com", id.String()),
		Role:        role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func SeedPrompt(t *testing.T, db *gorm.DB, node *snowflake.Node, variant promptdomain.Variant, sequenceID string, maxUsers int) *promptdomain.Prompt {
	t.Helper()
	prompt := &promptdomain.Prompt{
		ID:         node.Generate(),
		Variant:    variant,
		SequenceID: sequenceID,
		TextID:     "txt-" + sequenceID,
		Text:       "prompt " + sequenceID,
		Emotions:   "Neutral",
		Domain:     "General",
		MaxUsers:   maxUsers,
		Active:     true,
	}
	if err := db.Create(prompt).Error; err != nil {
		t.Fatalf("seed prompt: %v", err)
	}
	return prompt
}

// LoadPrompt re-reads a prompt's capacity columns.
func LoadPrompt(t *testing.T, db *gorm.DB, id snowflake.ID) promptdomain.Prompt {
	t.Helper()
	var prompt promptdomain.Prompt
	if err := db.Where("id = ?", id).First(&prompt).Error; err != nil {
		t.Fatalf("load prompt: %v", err)
	}
	return prompt
}

func LoadUser(t *testing.T, db *gorm.DB, id snowflake.ID) userdomain.User {
	t.Helper()
	var user userdomain.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return user
}

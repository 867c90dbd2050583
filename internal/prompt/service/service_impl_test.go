package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/cache"
	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	promptrepo "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/repository"
	promptservice "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/service"
	recordingdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/recording/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/testutil"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type lastPicker struct{}

func (lastPicker) IntN(n int) int { return n - 1 }

func newService(t *testing.T, db *gorm.DB, node *snowflake.Node) promptdomain.Service {
	t.Helper()
	return promptservice.New(promptservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Repo:       promptrepo.Provide(),
		StatsCache: cache.NewPoolStatsCache(),
		Picker:     lastPicker{},
	})
}

func seedRecording(t *testing.T, db *gorm.DB, node *snowflake.Node, userID snowflake.ID, prompt *promptdomain.Prompt) {
	t.Helper()
	now := time.Now().UTC()
	rec := &recordingdomain.Recording{
		ID:        node.Generate(),
		Variant:   prompt.Variant,
		UserID:    userID,
		PromptID:  prompt.ID,
		AudioKey:  "k/" + prompt.SequenceID,
		AudioURL:  "memory://k/" + prompt.SequenceID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("seed recording: %v", err)
	}
}

func TestImportDropsItemsMissingRequiredFields(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	svc := newService(t, db, testutil.NewNode(t))

	payload := []byte(`[
		{"text_id": "T1", "prompt": "The boy ran home."},
		{"text_id": "T2", "prompt": "   "},
		{"text_id": 3, "prompt": "Rain fell all night.", "emotions": "Happy", "language_tags": [{"language": "yo", "word": "ojo"}]}
	]`)

	result, err := svc.Import(ctx, promptdomain.VariantScripted, payload)
	require.NoError(t, err)
	assert.Equal(t, 2, result.InsertedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, 3, result.TotalReceived)

	got, err := svc.Get(ctx, promptdomain.VariantScripted, "3")
	require.NoError(t, err)
	assert.Equal(t, "3", got.TextID)
	assert.Equal(t, "Happy", got.Emotions)
	assert.Equal(t, "General", got.Domain)
	assert.Equal(t, promptdomain.DefaultMaxUsers, got.MaxUsers)
	require.Len(t, got.LanguageTags, 1)
	assert.Equal(t, "ojo", got.LanguageTags[0].Word)

	again, err := svc.Import(ctx, promptdomain.VariantScripted, payload)
	require.NoError(t, err)
	assert.Equal(t, 0, again.InsertedCount)
	assert.Equal(t, 3, again.SkippedCount)
}

func TestImportFreeformGeneratesSequenceIDs(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	svc := newService(t, db, testutil.NewNode(t))

	result, err := svc.Import(ctx, promptdomain.VariantFreeform, []byte(`[
		{"prompt": "Describe your morning."},
		{"prompt": "What did you eat?", "max_users": 5}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 2, result.InsertedCount)

	first, err := svc.Get(ctx, promptdomain.VariantFreeform, "1-2")
	require.NoError(t, err)
	assert.Equal(t, "Describe your morning.", first.Prompt)
	assert.Empty(t, first.Emotions)

	second, err := svc.Get(ctx, promptdomain.VariantFreeform, "2-2")
	require.NoError(t, err)
	assert.Equal(t, 5, second.MaxUsers)
}

func TestImportRejectsBadPayloads(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	svc := newService(t, db, testutil.NewNode(t))

	_, err := svc.Import(ctx, promptdomain.VariantScripted, []byte(`{"text_id": `))
	assert.True(t, errors.Is(err, promptdomain.ErrInvalidImportPayload), "got %v", err)

	_, err = svc.Import(ctx, promptdomain.VariantScripted, []byte(`[{"prompt": "no text id"}]`))
	assert.True(t, errors.Is(err, promptdomain.ErrNoValidPrompts), "got %v", err)
}

func TestAllocateSkipsRecordedAndFullPrompts(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	node := testutil.NewNode(t)
	svc := newService(t, db, node)
	user := testutil.SeedUser(t, db, node, "Ada Lovelace", "")

	recorded := testutil.SeedPrompt(t, db, node, promptdomain.VariantScripted, "p-1", 3)
	full := testutil.SeedPrompt(t, db, node, promptdomain.VariantScripted, "p-2", 1)
	open := testutil.SeedPrompt(t, db, node, promptdomain.VariantScripted, "p-3", 3)
	testutil.SeedPrompt(t, db, node, promptdomain.VariantFreeform, "f-1", 3)

	seedRecording(t, db, node, user.ID, recorded)
	require.NoError(t, db.Exec(`UPDATE prompts SET user_count = 1, active = ? WHERE id = ?`, false, full.ID).Error)

	for i := 0; i < 5; i++ {
		got, err := svc.Allocate(ctx, user.ID, promptdomain.VariantScripted)
		require.NoError(t, err)
		assert.Equal(t, open.ID.String(), got.ID)
	}

	seedRecording(t, db, node, user.ID, open)
	_, err := svc.Allocate(ctx, user.ID, promptdomain.VariantScripted)
	assert.True(t, errors.Is(err, promptdomain.ErrNoAvailablePrompts), "got %v", err)
}

type recordingPicker struct {
	index int
	sizes []int
}

func (p *recordingPicker) IntN(n int) int {
	p.sizes = append(p.sizes, n)
	return p.index
}

func TestAllocateUsesPickerIndex(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	node := testutil.NewNode(t)
	picker := &recordingPicker{index: 1}
	svc := promptservice.New(promptservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   promptrepo.Provide(),
		Picker: picker,
	})
	user := testutil.SeedUser(t, db, node, "Ada", "")

	testutil.SeedPrompt(t, db, node, promptdomain.VariantScripted, "p-1", 3)
	second := testutil.SeedPrompt(t, db, node, promptdomain.VariantScripted, "p-2", 3)
	third := testutil.SeedPrompt(t, db, node, promptdomain.VariantScripted, "p-3", 3)

	got, err := svc.Allocate(ctx, user.ID, promptdomain.VariantScripted)
	require.NoError(t, err)
	assert.Equal(t, second.ID.String(), got.ID)
	assert.Equal(t, []int{3}, picker.sizes)

	seedRecording(t, db, node, user.ID, second)
	got, err = svc.Allocate(ctx, user.ID, promptdomain.VariantScripted)
	require.NoError(t, err)
	assert.Equal(t, third.ID.String(), got.ID)
	assert.Equal(t, []int{3, 2}, picker.sizes)
}

func TestClaimAndReleaseKeepActiveInSync(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	node := testutil.NewNode(t)
	repo := promptrepo.Provide()
	prompt := testutil.SeedPrompt(t, db, node, promptdomain.VariantScripted, "cap", 2)
	now := time.Now().UTC()

	affected, err := repo.ClaimSlot(ctx, db, prompt.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)
	got := testutil.LoadPrompt(t, db, prompt.ID)
	assert.Equal(t, 1, got.UserCount)
	assert.True(t, got.Active)

	affected, err = repo.ClaimSlot(ctx, db, prompt.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)
	got = testutil.LoadPrompt(t, db, prompt.ID)
	assert.Equal(t, 2, got.UserCount)
	assert.False(t, got.Active)

	affected, err = repo.ClaimSlot(ctx, db, prompt.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	require.NoError(t, repo.ReleaseSlots(ctx, db, prompt.ID, 1, now))
	got = testutil.LoadPrompt(t, db, prompt.ID)
	assert.Equal(t, 1, got.UserCount)
	assert.True(t, got.Active)

	require.NoError(t, repo.ReleaseSlots(ctx, db, prompt.ID, 5, now))
	got = testutil.LoadPrompt(t, db, prompt.ID)
	assert.Equal(t, 0, got.UserCount)
	assert.True(t, got.Active)
}

func TestGetResolvesIDOrSequenceID(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	node := testutil.NewNode(t)
	svc := newService(t, db, node)
	prompt := testutil.SeedPrompt(t, db, node, promptdomain.VariantScripted, "seq-9", 3)

	byID, err := svc.Get(ctx, promptdomain.VariantScripted, prompt.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "seq-9", byID.PromptID)

	bySeq, err := svc.Get(ctx, promptdomain.VariantScripted, "seq-9")
	require.NoError(t, err)
	assert.Equal(t, prompt.ID.String(), bySeq.ID)

	_, err = svc.Get(ctx, promptdomain.VariantFreeform, "seq-9")
	assert.True(t, errors.Is(err, promptdomain.ErrNotFound), "got %v", err)
}

func TestStatsAggregatesCapacity(t *testing.T) {
	ctx := context.Background()
	db := testutil.OpenDB(t)
	node := testutil.NewNode(t)
	svc := newService(t, db, node)

	testutil.SeedPrompt(t, db, node, promptdomain.VariantScripted, "s-1", 3)
	full := testutil.SeedPrompt(t, db, node, promptdomain.VariantScripted, "s-2", 2)
	require.NoError(t, db.Exec(`UPDATE prompts SET user_count = 2, active = ? WHERE id = ?`, false, full.ID).Error)

	stats, err := svc.Stats(ctx, promptdomain.VariantScripted)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalPrompts)
	assert.EqualValues(t, 1, stats.ActivePrompts)
	assert.EqualValues(t, 1, stats.ExhaustedPrompts)
	assert.EqualValues(t, 5, stats.TotalCapacity)
	assert.EqualValues(t, 2, stats.UsedCapacity)
}

func TestParseVariantAcceptsLegacyNames(t *testing.T) {
	v, err := promptdomain.ParseVariant("Regular")
	require.NoError(t, err)
	assert.Equal(t, promptdomain.VariantScripted, v)

	v, err = promptdomain.ParseVariant("natural")
	require.NoError(t, err)
	assert.Equal(t, promptdomain.VariantFreeform, v)

	_, err = promptdomain.ParseVariant("other")
	assert.ErrorIs(t, err, promptdomain.ErrInvalidVariant)
}

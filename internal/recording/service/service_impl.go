package service

import (
	"context"
	"strings"
	"time"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/blobstore"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/cache"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/clock"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
	obsmetrics "github.com/LyngualLabs/SpeechAppBackendV2/internal/observability/metrics"
	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	recordingdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/recording/domain"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultMaxAudioBytes = 50 << 20

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Repo       recordingdomain.Repository
	PromptRepo promptdomain.Repository
	UserRepo   userdomain.Repository
	Store      blobstore.Store
	StatsCache cache.PoolStatsCache `optional:"true"`
	Metrics    *obsmetrics.Metrics  `optional:"true"`
	Clock      clock.Clock          `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       recordingdomain.Repository
	promptRepo promptdomain.Repository
	userRepo   userdomain.Repository
	store      blobstore.Store
	statsCache cache.PoolStatsCache
	metrics    *obsmetrics.Metrics
	clock      clock.Clock

	maxAudioBytes  int64
	scriptedFolder string
	freeformFolder string
}

func New(p Params) recordingdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	maxBytes := p.Cfg.Upload.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxAudioBytes
	}
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("recording.service"),
		genID:          p.GenID,
		repo:           p.Repo,
		promptRepo:     p.PromptRepo,
		userRepo:       p.UserRepo,
		store:          p.Store,
		statsCache:     p.StatsCache,
		metrics:        p.Metrics,
		clock:          clk,
		maxAudioBytes:  maxBytes,
		scriptedFolder: folderOr(p.Cfg.Blob.ScriptedFolder, "Scripted_Prompts"),
		freeformFolder: folderOr(p.Cfg.Blob.FreeformFolder, "Freeform_Prompts"),
	}
}

func (s *Service) List(ctx context.Context, req recordingdomain.ListRequest) (*recordingdomain.ListResponse, error) {
	userID, err := recordingdomain.ParseID(strings.TrimSpace(req.UserID))
	if err != nil || userID == 0 {
		return nil, recordingdomain.ErrInvalidUserID
	}

	limit := req.Limit()
	filter := recordingdomain.ListFilter{
		UserID:   userID,
		Variant:  req.Variant,
		Verified: req.Verified,
		Limit:    limit + 1,
	}

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, recordingdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, recordingdomain.ErrInvalidPageToken
		}
		cursorID, err := recordingdomain.ParseID(cursor.ID)
		if err != nil {
			return nil, recordingdomain.ErrInvalidPageToken
		}
		filter.BeforeCreatedAt = createdAt
		filter.BeforeID = cursorID
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	items, pageInfo, err := pagination.BuildCursorPageInfo(items, limit, func(r *recordingdomain.Recording) pagination.Cursor {
		return pagination.Cursor{
			ID:        r.ID.String(),
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	if err != nil {
		return nil, err
	}

	out := make([]*recordingdomain.Response, 0, len(items))
	for _, item := range items {
		out = append(out, toResponse(item))
	}
	return &recordingdomain.ListResponse{Recordings: out, PageInfo: pageInfo}, nil
}

func (s *Service) Stats(ctx context.Context, variant promptdomain.Variant) (*recordingdomain.VerificationStats, error) {
	return s.repo.Stats(ctx, s.db, variant)
}

func (s *Service) folderFor(variant promptdomain.Variant) string {
	if variant == promptdomain.VariantFreeform {
		return s.freeformFolder
	}
	return s.scriptedFolder
}

func (s *Service) invalidatePoolStats(variants ...promptdomain.Variant) {
	if s.statsCache == nil {
		return
	}
	for _, v := range variants {
		s.statsCache.Invalidate(v)
	}
}

// deleteBlob removes an object whose database row is gone or was never written.
func (s *Service) deleteBlob(ctx context.Context, key, reason string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		s.metrics.RecordBlobCleanupFailure(ctx, reason)
		s.log.Warn("failed to delete audio blob",
			zap.String("audio_key", key),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

func toResponse(r *recordingdomain.Recording) *recordingdomain.Response {
	resp := &recordingdomain.Response{
		ID:          r.ID.String(),
		Variant:     r.Variant,
		UserID:      r.UserID.String(),
		PromptID:    r.PromptID.String(),
		AudioURL:    r.AudioURL,
		ContentType: r.ContentType,
		SizeBytes:   r.SizeBytes,
		Checksum:    r.Checksum,
		Answer:      r.Answer,
		IsVerified:  r.IsVerified,
		VerifiedAt:  r.VerifiedAt,
		IsPaidFor:   r.IsPaidFor,
		CreatedAt:   r.CreatedAt,
	}
	if r.PaymentID != nil && *r.PaymentID != 0 {
		resp.PaymentID = r.PaymentID.String()
	}
	return resp
}

func folderOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

package service

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"strings"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/cache"
	obsmetrics "github.com/LyngualLabs/SpeechAppBackendV2/internal/observability/metrics"
	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       promptdomain.Repository
	StatsCache cache.PoolStatsCache `optional:"true"`
	Metrics    *obsmetrics.Metrics  `optional:"true"`
	Picker     promptdomain.Picker  `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       promptdomain.Repository
	statsCache cache.PoolStatsCache
	metrics    *obsmetrics.Metrics
	picker     promptdomain.Picker
}

func New(p Params) promptdomain.Service {
	picker := p.Picker
	if picker == nil {
		picker = randPicker{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("prompt.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		statsCache: p.StatsCache,
		metrics:    p.Metrics,
		picker:     picker,
	}
}

type randPicker struct{}

func (randPicker) IntN(n int) int { return rand.IntN(n) }

// Get resolves a prompt by snowflake id first and by human sequence id otherwise.
func (s *Service) Get(ctx context.Context, variant promptdomain.Variant, ref string) (*promptdomain.Response, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, promptdomain.ErrInvalidID
	}

	var (
		item *promptdomain.Prompt
		err  error
	)
	if id, parseErr := promptdomain.ParseID(ref); parseErr == nil && id != 0 {
		item, err = s.repo.FindByID(ctx, s.db, variant, id)
		if err != nil {
			return nil, err
		}
	}
	if item == nil {
		item, err = s.repo.FindBySequenceID(ctx, s.db, variant, ref)
		if err != nil {
			return nil, err
		}
	}
	if item == nil {
		return nil, promptdomain.ErrNotFound
	}

	return toResponse(item), nil
}

func (s *Service) Stats(ctx context.Context, variant promptdomain.Variant) (*promptdomain.PoolStats, error) {
	if s.statsCache != nil {
		if cached, ok := s.statsCache.Get(variant); ok {
			return &cached, nil
		}
	}

	stats, err := s.repo.Stats(ctx, s.db, variant)
	if err != nil {
		return nil, err
	}
	if s.statsCache != nil {
		s.statsCache.Set(variant, *stats)
	}
	return stats, nil
}

func toResponse(p *promptdomain.Prompt) *promptdomain.Response {
	resp := &promptdomain.Response{
		ID:        p.ID.String(),
		Variant:   p.Variant,
		PromptID:  p.SequenceID,
		TextID:    p.TextID,
		Prompt:    p.Text,
		Emotions:  p.Emotions,
		Domain:    p.Domain,
		MaxUsers:  p.MaxUsers,
		UserCount: p.UserCount,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
	}
	if len(p.LanguageTags) > 0 {
		var tags []promptdomain.LanguageTag
		if err := json.Unmarshal(p.LanguageTags, &tags); err == nil {
			resp.LanguageTags = tags
		}
	}
	return resp
}

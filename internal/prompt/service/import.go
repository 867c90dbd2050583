package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	defaultEmotion = "Neutral"
	defaultDomain  = "General"
)

type importItem struct {
	PromptID     flexString                 `json:"prompt_id"`
	TextID       flexString                 `json:"text_id"`
	Prompt       string                     `json:"prompt"`
	Emotions     string                     `json:"emotions"`
	Domain       string                     `json:"domain"`
	LanguageTags []promptdomain.LanguageTag `json:"language_tags"`
	MaxUsers     int                        `json:"maxUsers"`
	MaxUsersAlt  int                        `json:"max_users"`
}

// flexString accepts either a JSON string or a JSON number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Import bulk-inserts prompts from a JSON object or array. Items missing required fields
// are dropped, and items colliding with an existing (variant, prompt_id) pair are skipped.
func (s *Service) Import(ctx context.Context, variant promptdomain.Variant, payload []byte) (*promptdomain.ImportResult, error) {
	items, err := decodeImportPayload(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	total := len(items)
	prompts := make([]promptdomain.Prompt, 0, total)
	seen := make(map[string]struct{}, total)
	for i, item := range items {
		text := strings.TrimSpace(item.Prompt)
		textID := strings.TrimSpace(string(item.TextID))
		if text == "" {
			continue
		}
		if variant.RequiresTextID() && textID == "" {
			continue
		}

		sequenceID := strings.TrimSpace(string(item.PromptID))
		if sequenceID == "" {
			if variant == promptdomain.VariantScripted {
				sequenceID = textID
			} else {
				sequenceID = strconv.Itoa(i+1) + "-" + strconv.Itoa(total)
			}
		}
		if _, dup := seen[sequenceID]; dup {
			continue
		}
		seen[sequenceID] = struct{}{}

		maxUsers := item.MaxUsers
		if maxUsers < 1 {
			maxUsers = item.MaxUsersAlt
		}
		if maxUsers < 1 {
			maxUsers = promptdomain.DefaultMaxUsers
		}

		prompt := promptdomain.Prompt{
			ID:         s.genID.Generate(),
			Variant:    variant,
			SequenceID: sequenceID,
			TextID:     textID,
			Text:       text,
			MaxUsers:   maxUsers,
			UserCount:  0,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if variant == promptdomain.VariantScripted {
			prompt.Emotions = firstNonEmpty(item.Emotions, defaultEmotion)
			prompt.Domain = firstNonEmpty(item.Domain, defaultDomain)
			if len(item.LanguageTags) > 0 {
				tags, err := json.Marshal(item.LanguageTags)
				if err != nil {
					return nil, fmt.Errorf("encode language tags: %w", err)
				}
				prompt.LanguageTags = datatypes.JSON(tags)
			}
		}
		prompts = append(prompts, prompt)
	}

	if len(prompts) == 0 {
		return nil, promptdomain.ErrNoValidPrompts
	}

	inserted, err := s.repo.InsertBatch(ctx, s.db, prompts)
	if err != nil {
		return nil, fmt.Errorf("insert prompts: %w", err)
	}
	if s.statsCache != nil {
		s.statsCache.Invalidate(variant)
	}

	s.log.Info("prompts imported",
		zap.String("variant", string(variant)),
		zap.Int("received", total),
		zap.Int64("inserted", inserted),
	)

	return &promptdomain.ImportResult{
		InsertedCount: int(inserted),
		SkippedCount:  total - int(inserted),
		TotalReceived: total,
	}, nil
}

func decodeImportPayload(payload []byte) ([]importItem, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, promptdomain.ErrInvalidImportPayload
	}

	switch trimmed[0] {
	case '[':
		var items []importItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", promptdomain.ErrInvalidImportPayload, err)
		}
		return items, nil
	case '{':
		var item importItem
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return nil, fmt.Errorf("%w: %v", promptdomain.ErrInvalidImportPayload, err)
		}
		return []importItem{item}, nil
	default:
		return nil, promptdomain.ErrInvalidImportPayload
	}
}

func firstNonEmpty(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}

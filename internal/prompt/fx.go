package prompt

import (
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/repository"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/service"
	"go.uber.org/fx"
)

var Module = fx.Module("prompt.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

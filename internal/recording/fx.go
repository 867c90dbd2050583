package recording

import (
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/recording/repository"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/recording/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recording.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

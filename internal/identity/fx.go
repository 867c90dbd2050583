package identity

import (
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/repository"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

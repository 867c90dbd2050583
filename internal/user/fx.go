package user

import (
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/user/repository"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

package payment

import (
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/repository"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

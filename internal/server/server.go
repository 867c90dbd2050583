package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/authorization"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/blobstore"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/cache"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/identity"
	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/observability"
	obsmiddleware "github.com/LyngualLabs/SpeechAppBackendV2/internal/observability/logger"
	obsmetrics "github.com/LyngualLabs/SpeechAppBackendV2/internal/observability/metrics"
	obstracing "github.com/LyngualLabs/SpeechAppBackendV2/internal/observability/tracing"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/payment"
	paymentdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt"
	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/ratelimit"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/recording"
	recordingdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/recording/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/user"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	blobstore.Module,
	cache.Module,
	ratelimit.Module,
	user.Module,
	identity.Module,
	prompt.Module,
	recording.Module,
	payment.Module,
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	identitySvc   identitydomain.Service
	authzSvc      authorization.Service
	userSvc       userdomain.Service
	promptSvc     promptdomain.Service
	recordingSvc  recordingdomain.Service
	paymentSvc    paymentdomain.Service
	uploadLimiter *ratelimit.UploadLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	IdentitySvc   identitydomain.Service
	AuthzSvc      authorization.Service
	UserSvc       userdomain.Service
	PromptSvc     promptdomain.Service
	RecordingSvc  recordingdomain.Service
	PaymentSvc    paymentdomain.Service
	UploadLimiter *ratelimit.UploadLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		identitySvc:   p.IdentitySvc,
		authzSvc:      p.AuthzSvc,
		userSvc:       p.UserSvc,
		promptSvc:     p.PromptSvc,
		recordingSvc:  p.RecordingSvc,
		paymentSvc:    p.PaymentSvc,
		uploadLimiter: p.UploadLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/api/auth")

	auth.POST("/login", s.Login)
	auth.POST("/logout", s.AuthRequired(), s.Logout)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Prompts --------
	api.GET("/prompts/:variant/next", s.NextPrompt)
	api.GET("/prompts/:variant/stats", s.authorize(authorization.ObjectPrompt, authorization.ActionPromptStats), s.GetPromptStats)
	api.POST("/prompts/:variant/import", s.authorize(authorization.ObjectPrompt, authorization.ActionPromptImport), s.ImportPrompts)
	api.GET("/prompts/:variant/:id", s.GetPrompt)

	// -------- Recordings --------
	api.GET("/recordings/me", s.ListMyRecordings)
	api.POST("/recordings/:variant", s.UploadRateLimit(), s.CreateRecording)

	// -------- Users --------
	api.GET("/users/me", s.Me)
	api.GET("/users/me/counters", s.MyCounters)

	// -------- Payments --------
	api.GET("/payments/me", s.MyPayments)
	api.POST("/payments/me/request", s.RequestPayout)
	api.GET("/payments/:id/receipt", s.DownloadReceipt)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.AuthRequired())

	// -------- Users --------
	admin.PATCH("/users/:userId/suspension", s.authorize(authorization.ObjectUser, authorization.ActionUserSuspend), s.SetUserSuspension)
	admin.PATCH("/users/:userId/role", s.authorize(authorization.ObjectUser, authorization.ActionUserSetRole), s.SetUserRole)

	// -------- Recordings --------
	admin.GET("/users/:userId/recordings", s.authorize(authorization.ObjectRecording, authorization.ActionRecordingList), s.ListUserRecordings)
	admin.POST("/users/:userId/recordings/verify", s.authorize(authorization.ObjectRecording, authorization.ActionRecordingVerify), s.VerifyRecordings)
	admin.POST("/users/:userId/recordings/delete", s.authorize(authorization.ObjectRecording, authorization.ActionRecordingDelete), s.DeleteRecordings)

	// -------- Payments --------
	admin.GET("/payments/eligible", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentListEligible), s.ListEligibleUsers)
	admin.POST("/payments/users/:userId/settle", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentSettle), s.SettleUser)
	admin.PATCH("/payments/:id/status", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentUpdateStatus), s.UpdatePaymentStatus)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

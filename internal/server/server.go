package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trinetlabs/trinet/internal/config"
	memberdomain "github.com/trinetlabs/trinet/internal/member/domain"
	"github.com/trinetlabs/trinet/internal/observability"
	obsmiddleware "github.com/trinetlabs/trinet/internal/observability/logger"
	obstracing "github.com/trinetlabs/trinet/internal/observability/tracing"
	orderdomain "github.com/trinetlabs/trinet/internal/order/domain"
	"github.com/trinetlabs/trinet/internal/ratelimit"
	rewarddomain "github.com/trinetlabs/trinet/internal/reward/domain"
	walletdomain "github.com/trinetlabs/trinet/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine     *gin.Engine
	cfg        config.Config
	memberSvc  memberdomain.Service
	walletSvc  walletdomain.Service
	orderSvc   orderdomain.Service
	rewardSvc  rewarddomain.Service
	regLimiter *ratelimit.RegistrationLimiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	MemberSvc  memberdomain.Service
	WalletSvc  walletdomain.Service
	OrderSvc   orderdomain.Service
	RewardSvc  rewarddomain.Service
	RegLimiter *ratelimit.RegistrationLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		memberSvc:  p.MemberSvc,
		walletSvc:  p.WalletSvc,
		orderSvc:   p.OrderSvc,
		rewardSvc:  p.RewardSvc,
		regLimiter: p.RegLimiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/members", s.RegistrationRateLimit(), s.RegisterMember)
	api.GET("/members", s.ListMembers)
	api.GET("/members/:id", s.GetMember)
	api.GET("/members/:id/downline", s.GetDownline)

	api.GET("/wallets/:memberId", s.GetWallet)
	api.GET("/wallets/:memberId/transactions", s.ListWalletTransactions)
	api.POST("/wallets/:memberId/withdrawals", s.RequestWithdrawal)
	api.GET("/wallets/:memberId/withdrawals", s.ListWithdrawals)
	api.POST("/withdrawals/:id/process", s.ProcessWithdrawal)
	api.POST("/withdrawals/:id/reject", s.RejectWithdrawal)

	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/:id", s.GetOrder)
	api.POST("/orders/:id/ship", s.ShipOrder)
	api.POST("/orders/:id/deliver", s.DeliverOrder)
	api.POST("/orders/:id/cancel", s.CancelOrder)

	api.GET("/reward-thresholds", s.ListRewardThresholds)
	api.POST("/reward-thresholds", s.CreateRewardThreshold)
	api.GET("/rewards/:memberId", s.ListMemberRewards)
}

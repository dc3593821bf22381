package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/vendelo/checkout/internal/clock"
	"github.com/vendelo/checkout/internal/config"
	"github.com/vendelo/checkout/internal/conversion"
	conversionservice "github.com/vendelo/checkout/internal/conversion/service"
	"github.com/vendelo/checkout/internal/credential"
	"github.com/vendelo/checkout/internal/gateway"
	"github.com/vendelo/checkout/internal/observability/metrics"
	"github.com/vendelo/checkout/internal/order"
	orderservice "github.com/vendelo/checkout/internal/order/service"
	"github.com/vendelo/checkout/internal/orderlock"
	"github.com/vendelo/checkout/internal/tokenization"
	tokenizationservice "github.com/vendelo/checkout/internal/tokenization/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	metrics.Module,
	credential.Module,
	gateway.Module,
	conversion.Module,
	order.Module,
	tokenization.Module,
	orderlock.Module,
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	registry      *gateway.Registry
	orderSvc      *orderservice.Service
	conversionSvc *conversionservice.Service
	tokenSvc      *tokenizationservice.Service
	guard         *orderlock.Guard
	obsMetrics    *metrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Registry      *gateway.Registry
	OrderSvc      *orderservice.Service
	ConversionSvc *conversionservice.Service
	TokenSvc      *tokenizationservice.Service
	Guard         *orderlock.Guard
	ObsMetrics    *metrics.Metrics
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("server"),
		genID:         p.GenID,
		clock:         p.Clock,
		registry:      p.Registry,
		orderSvc:      p.OrderSvc,
		conversionSvc: p.ConversionSvc,
		tokenSvc:      p.TokenSvc,
		guard:         p.Guard,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Server) RegisterRoutes() {
	v1 := s.engine.Group("/v1")

	v1.GET("/gateways", s.listGateways)
	v1.GET("/gateways/:gateway_id/installments", s.previewInstallments)

	v1.POST("/checkout/orders", s.createOrder)
	v1.POST("/checkout/tokenize", s.tokenizeCard)

	v1.POST("/webhooks/orders/:order_id", s.applyOrderEvent)

	v1.GET("/vendors/:vendor_id/integrations/conversion", s.getConversionConfig)
	v1.PUT("/vendors/:vendor_id/integrations/conversion", s.putConversionConfig)
}

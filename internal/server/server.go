package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/blsuntech/internal/admintoken"
	"github.com/smallbiznis/blsuntech/internal/checkout"
	checkoutdomain "github.com/smallbiznis/blsuntech/internal/checkout/domain"
	"github.com/smallbiznis/blsuntech/internal/config"
	"github.com/smallbiznis/blsuntech/internal/lead"
	leaddomain "github.com/smallbiznis/blsuntech/internal/lead/domain"
	"github.com/smallbiznis/blsuntech/internal/observability"
	obsmiddleware "github.com/smallbiznis/blsuntech/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/blsuntech/internal/observability/metrics"
	obstracing "github.com/smallbiznis/blsuntech/internal/observability/tracing"
	"github.com/smallbiznis/blsuntech/internal/offering"
	offeringdomain "github.com/smallbiznis/blsuntech/internal/offering/domain"
	"github.com/smallbiznis/blsuntech/internal/payment"
	paymentdomain "github.com/smallbiznis/blsuntech/internal/payment/domain"
	"github.com/smallbiznis/blsuntech/internal/providers/email"
	"github.com/smallbiznis/blsuntech/internal/providers/pdf"
	stripeprovider "github.com/smallbiznis/blsuntech/internal/providers/stripe"
	"github.com/smallbiznis/blsuntech/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	stripeprovider.Module,
	email.Module,
	pdf.Module,
	ratelimit.Module,
	admintoken.Module,
	offering.Module,
	checkout.Module,
	lead.Module,
	payment.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// NewEngine builds the gin engine with the shared middleware chain. Forwarded
// client IP headers are honoured only from cfg.TrustedProxies.
func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r, nil
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Admin-Token", "X-Request-Id"},
		ExposeHeaders: []string{"Content-Length", "X-Request-Id", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cc.AllowAllOrigins = true
			return cc
		}
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
		return cc
	}
	cc.AllowOrigins = origins
	return cc
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) (*gin.Engine, error) {
	return NewEngine(cfg, obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr), zap.String("base_path", cfg.APIBasePath))
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
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	offeringSvc offeringdomain.Service
	checkoutSvc checkoutdomain.Service
	leadSvc     leaddomain.Service
	paymentSvc  paymentdomain.Service
	adminTokens *admintoken.Verifier
	limiter     *ratelimit.Limiter
	obsMetrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	OfferingSvc offeringdomain.Service
	CheckoutSvc checkoutdomain.Service
	LeadSvc     leaddomain.Service
	PaymentSvc  paymentdomain.Service
	AdminTokens *admintoken.Verifier
	Limiter     *ratelimit.Limiter  `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		offeringSvc: p.OfferingSvc,
		checkoutSvc: p.CheckoutSvc,
		leadSvc:     p.LeadSvc,
		paymentSvc:  p.PaymentSvc,
		adminTokens: p.AdminTokens,
		limiter:     p.Limiter,
		obsMetrics:  p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group(s.cfg.APIBasePath)

	// -------- Catalog --------
	api.GET("/offerings", s.ListOfferings)

	// -------- Checkout --------
	api.POST("/checkout-sessions", s.RateLimit(), s.CreateCheckoutSession)
	api.GET("/checkout-sessions/:id", s.GetCheckoutSession)
	api.GET("/checkout-sessions/:id/receipt", s.GetCheckoutReceipt)

	// -------- Payment Webhooks --------
	api.POST("/payment-webhook", s.HandlePaymentWebhook)

	// -------- Leads --------
	api.POST("/leads", s.RateLimit(), s.SubmitLead)
	api.GET("/leads", s.AdminAuthRequired(), s.ListLeads)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

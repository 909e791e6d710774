package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/perkflow/perkflow/docs"
	"github.com/perkflow/perkflow/internal/app/api/handlers"
	mw "github.com/perkflow/perkflow/internal/app/api/middleware"
	"github.com/perkflow/perkflow/internal/app/service/checkout"
	"github.com/perkflow/perkflow/internal/app/service/ledger"
	plansvc "github.com/perkflow/perkflow/internal/app/service/plan"
	"github.com/perkflow/perkflow/internal/app/service/reconciler"
	"github.com/perkflow/perkflow/internal/app/service/referral"
	cfgpkg "github.com/perkflow/perkflow/pkg/config"
	"github.com/perkflow/perkflow/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(
	r *gin.Engine,
	log *zap.SugaredLogger,
	cfg *cfgpkg.Config,
	plans *plansvc.Service,
	checkoutSvc *checkout.Service,
	ledgerSvc *ledger.Service,
	referralSvc *referral.Service,
	reconcilerSvc *reconciler.Service,
) {
	if cfg != nil && cfg.MetricsAddr != "" {
		r.Use(metrics.HandlerFunc())
		metrics.Serve(cfg.MetricsAddr, log)
		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Provider webhooks carry their own authentication (the signature), so
	// they bypass the bearer-token group.
	handlers.RegisterWebhookRoutes(pub, reconcilerSvc)

	// Public catalog and checkout landing pages
	apiV1Pub := r.Group("/api/v1")
	apiV1Pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterPlanRoutes(apiV1Pub, plans)
	handlers.RegisterPaymentLandingRoutes(apiV1Pub)

	// Authenticated user APIs
	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.AuthMiddleware(cfg.Auth.JWTSecret), mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterCheckoutRoutes(apiV1, checkoutSvc)
	handlers.RegisterSubscriptionRoutes(apiV1, ledgerSvc)
	handlers.RegisterReferralRoutes(apiV1, referralSvc)

	// Admin plan management
	admin := r.Group("/api/v1/admin")
	admin.Use(mw.AuthMiddleware(cfg.Auth.JWTSecret), mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterAdminPlanRoutes(admin, plans)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)

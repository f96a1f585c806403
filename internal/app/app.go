package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marketlens/account-service/internal/config"
	"github.com/marketlens/account-service/internal/domain"
	"github.com/marketlens/account-service/internal/handler"
	"github.com/marketlens/account-service/internal/repository"
	"github.com/marketlens/account-service/internal/service"
	"github.com/marketlens/account-service/internal/utils"
	"github.com/marketlens/account-service/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra   Infrastructure
	config  *config.Config
	router  *gin.Engine
	server  *http.Server
	sweeper *Sweeper
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	repos := repository.NewRepositories(infra.Postgres())

	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry.Duration,
		cfg.JWT.RefreshTokenExpiry.Duration,
		cfg.JWT.SessionTokenExpiry.Duration,
	)

	sessionService := service.NewSessionService(
		repos.Session,
		cfg.Session.MaxPerUser,
		cfg.Session.Duration.Duration,
		cfg.Session.Retention.Duration,
	)

	otpEngine := service.NewOTPEngine(cfg.OTP.Expiry.Duration)
	otpThrottle := service.NewOTPThrottle(infra.Redis(), cfg.OTP.ResendWindow.Duration)
	mailer := service.NewSMTPMailer(cfg.SMTP)
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	authService := service.NewAuthService(
		repos.User,
		sessionService,
		otpEngine,
		otpThrottle,
		mailer,
		jwtManager,
		infra.Logger(),
		cfg.Security.BCryptCost,
		cfg.Security.MaxLoginAttempts,
		cfg.Security.LockoutDuration.Duration,
		cfg.OTP.Expiry.Duration,
	)

	authHandler := handler.NewAuthHandler(authService, sessionService)
	sessionHandler := handler.NewSessionHandler(sessionService)

	sweeper := NewSweeper(sessionService, repos.User, infra.Logger(), cfg.Sweep)

	router := gin.Default()
	router.Use(otelgin.Middleware("account-service"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, authHandler, sessionHandler, authService, rateLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:   infra,
		config:  cfg,
		router:  router,
		server:  srv,
		sweeper: sweeper,
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	sessionHandler *handler.SessionHandler,
	authService service.AuthService,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	limited := handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey)
	authed := handler.AuthMiddleware(authService)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register/otp", limited, authHandler.RequestRegistrationOTP)
			auth.POST("/register", limited, authHandler.CompleteRegistration)
			auth.POST("/login", limited, authHandler.Login)
			auth.POST("/logout", authed, authHandler.Logout)
			auth.POST("/password/reset/otp", limited, authHandler.RequestPasswordResetOTP)
			auth.POST("/password/reset", limited, authHandler.ResetPassword)
			auth.POST("/password/change", authed, authHandler.ChangePassword)
			auth.GET("/me", authed, authHandler.GetMe)
		}

		sessions := api.Group("/sessions", authed)
		{
			sessions.GET("", sessionHandler.List)
			sessions.DELETE("/others", sessionHandler.TerminateOthers)
			sessions.DELETE("/:id", sessionHandler.Terminate)
		}

		admin := api.Group("/admin", authed, handler.RequireRole(domain.RoleAdmin))
		{
			admin.GET("/users/:id/sessions", sessionHandler.ListForUser)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	a.sweeper.Start(ctx)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.sweeper.Stop()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}

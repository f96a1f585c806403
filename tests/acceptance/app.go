package acceptance

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marketlens/account-service/internal/config"
	"github.com/marketlens/account-service/internal/handler"
	"github.com/marketlens/account-service/internal/repository"
	"github.com/marketlens/account-service/internal/service"
	"github.com/marketlens/account-service/internal/utils"
	"github.com/marketlens/account-service/pkg/database"
	"github.com/marketlens/account-service/pkg/observability"
	"go.uber.org/zap"
)

// RecordingMailer captures outbound mail so tests can read OTP codes
// instead of going through SMTP.
type RecordingMailer struct {
	mu       sync.Mutex
	OTPCodes map[string]string
	Welcomes []string
	Notices  []string
}

func NewRecordingMailer() *RecordingMailer {
	m := &RecordingMailer{}
	m.Reset()
	return m
}

func (m *RecordingMailer) SendOTP(_ context.Context, email, _, code string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OTPCodes[email] = code
	return nil
}

func (m *RecordingMailer) SendWelcome(_ context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Welcomes = append(m.Welcomes, email)
	return nil
}

func (m *RecordingMailer) SendPasswordChanged(_ context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notices = append(m.Notices, email)
	return nil
}

func (m *RecordingMailer) LastOTP(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.OTPCodes[email]
}

func (m *RecordingMailer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OTPCodes = make(map[string]string)
	m.Welcomes = nil
	m.Notices = nil
}

// TestApp runs the HTTP surface on a random port with the mailer swapped
// for a recording fake.
type TestApp struct {
	Config         *config.Config
	Router         *gin.Engine
	Server         *http.Server
	Listener       net.Listener
	BaseURL        string
	AuthService    service.AuthService
	SessionService service.SessionService
	Repositories   *repository.Repositories
	JWTManager     *utils.JWTManager
	Mailer         *RecordingMailer
	RateLimiter    *service.RateLimiter
	Logger         *zap.Logger
	Postgres       *database.Postgres
	Redis          *database.Redis
}

// NewTestApp creates a new test application instance
func NewTestApp(postgres *database.Postgres, redis *database.Redis) (*TestApp, error) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         "0",
			ReadTimeout:  config.Duration{Duration: 15 * time.Second},
			WriteTimeout: config.Duration{Duration: 15 * time.Second},
		},
		JWT: config.JWTConfig{
			Secret:             "test-secret-key-that-is-at-least-32-characters-long",
			AccessTokenExpiry:  config.Duration{Duration: 15 * time.Minute},
			RefreshTokenExpiry: config.Duration{Duration: 7 * 24 * time.Hour},
			SessionTokenExpiry: config.Duration{Duration: 24 * time.Hour},
		},
		Security: config.SecurityConfig{
			BCryptCost:        4,
			MaxLoginAttempts:  5,
			LockoutDuration:   config.Duration{Duration: 2 * time.Hour},
			RateLimitRequests: 1000,
			RateLimitWindow:   config.Duration{Duration: 1 * time.Minute},
		},
		OTP: config.OTPConfig{
			Expiry:       config.Duration{Duration: 10 * time.Minute},
			ResendWindow: config.Duration{Duration: 0},
		},
		Session: config.SessionConfig{
			MaxPerUser: 2,
			Duration:   config.Duration{Duration: 24 * time.Hour},
			Retention:  config.Duration{Duration: 7 * 24 * time.Hour},
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
		Env: "test",
	}

	gin.SetMode(gin.TestMode)

	logger, err := observability.InitLogger("test")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	repos := repository.NewRepositories(postgres)
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

	mailer := NewRecordingMailer()
	otpEngine := service.NewOTPEngine(cfg.OTP.Expiry.Duration)
	otpThrottle := service.NewOTPThrottle(redis, cfg.OTP.ResendWindow.Duration)
	rateLimiter := service.NewRateLimiter(redis)

	authService := service.NewAuthService(
		repos.User,
		sessionService,
		otpEngine,
		otpThrottle,
		mailer,
		jwtManager,
		logger,
		cfg.Security.BCryptCost,
		cfg.Security.MaxLoginAttempts,
		cfg.Security.LockoutDuration.Duration,
		cfg.OTP.Expiry.Duration,
	)

	authHandler := handler.NewAuthHandler(authService, sessionService)
	sessionHandler := handler.NewSessionHandler(sessionService)

	router := gin.New()
	router.Use(handler.LoggerMiddleware(logger))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))
	setupRoutes(router, cfg, authHandler, sessionHandler, authService, rateLimiter)

	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	addr := listener.Addr().(*net.TCPAddr)
	baseURL := fmt.Sprintf("http://localhost:%d", addr.Port)

	srv := &http.Server{
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	app := &TestApp{
		Config:         cfg,
		Router:         router,
		Server:         srv,
		Listener:       listener,
		BaseURL:        baseURL,
		AuthService:    authService,
		SessionService: sessionService,
		Repositories:   repos,
		JWTManager:     jwtManager,
		Mailer:         mailer,
		RateLimiter:    rateLimiter,
		Logger:         logger,
		Postgres:       postgres,
		Redis:          redis,
	}

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start test server", zap.Error(err))
		}
	}()
	time.Sleep(100 * time.Millisecond)

	return app, nil
}

func (app *TestApp) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if app.Listener != nil {
		if err := app.Listener.Close(); err != nil {
			return fmt.Errorf("failed to close listener: %w", err)
		}
	}

	if app.Logger != nil {
		app.Logger.Sync()
	}

	return nil
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	sessionHandler *handler.SessionHandler,
	authService service.AuthService,
	rateLimiter *service.RateLimiter,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "pass",
			"service": "account-service",
		})
	})

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
	}
}

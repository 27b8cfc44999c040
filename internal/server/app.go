// Package server wires the auth components together and runs them: storage
// backend, password hasher, token signer, OTP registry, mailer and the HTTP
// server, with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/projectstack-auth/internal/logging"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/auth"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/config"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/httpapi"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/mailer"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/otp"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/security"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/services"
)

const otpKeyPrefix = "auth:otp:"

type App struct {
	config      *config.Config
	logger      logging.Logger
	repos       repomanager.RepositoryManager
	otp         *otp.Registry
	authService *services.AuthService
	closers     []func(context.Context) error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(os.Stdout, c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return NewAppWithLogger(ctx, c, logger)
}

func NewAppWithLogger(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	app := &App{config: c, logger: logger}

	repos, err := openRepositoryManager(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	app.repos = repos
	app.closers = append(app.closers, repos.Close)

	if err := repos.RunMigrations(ctx); err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("migrations: %w", err)
	}

	hasher, err := security.NewPasswordHasher(c.PasswordHashAlgorithm, c.BcryptCost)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	signer := auth.NewJWTSigner([]byte(c.SecretKey), c.TokenIssuer, c.TokenAudience, c.AccessTokenValidityDuration)

	store, err := app.openOTPStore(ctx)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("otp store init error: %w", err)
	}

	sender, err := newEmailSender(c, logger)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("mailer init error: %w", err)
	}

	app.otp = otp.NewRegistry(store, sender, logger,
		otp.WithTTL(c.OTPValidityDuration),
		otp.WithSingleUse(c.OTPSingleUse),
	)

	app.authService, err = services.NewAuthService(repos, hasher, signer, app.otp, logger, c)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	return app, nil
}

// AuthService exposes the wired service to operator tooling.
func (app *App) AuthService() *services.AuthService {
	return app.authService
}

func openRepositoryManager(ctx context.Context, c *config.Config) (repomanager.RepositoryManager, error) {
	switch c.StorageBackend {
	case config.StorageBackendPostgres:
		db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return repomanager.NewPostgresRepositoryManager(db), nil
	case config.StorageBackendMongo:
		client, err := repomanager.ConnectMongo(ctx, c.MongoURI)
		if err != nil {
			return nil, err
		}
		return repomanager.NewMongoRepositoryManager(client, c.MongoDatabase), nil
	case config.StorageBackendMemory:
		return repomanager.NewInMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func (app *App) openOTPStore(ctx context.Context) (otp.Store, error) {
	if app.config.OTPBackend != config.OTPBackendRedis {
		return otp.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	app.closers = append(app.closers, func(context.Context) error { return client.Close() })
	return otp.NewRedisStore(client, otpKeyPrefix), nil
}

// newEmailSender returns an SMTP mailer when a host is configured and a
// logging stand-in otherwise.
func newEmailSender(c *config.Config, logger logging.Logger) (mailer.EmailSender, error) {
	if c.SMTPHost == "" {
		logger.Warn(context.Background(), "SMTP host not configured, OTP emails are logged only")
		return mailer.NewLogSender(logger), nil
	}
	return mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	}, logger)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.authService)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.OTPPurgeInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.otp.RunPurger(ctx, app.config.OTPPurgeInterval)
		}()
	}

	wg.Wait()

	app.Close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}

// Close releases storage and cache connections in reverse order of opening.
func (app *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil

	if err := errors.Join(errs...); err != nil {
		app.logger.Error(ctx, "close", "error", err)
		return err
	}
	return nil
}

// Package httpapi exposes AuthService over HTTP with a chi router.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/dmitrijs2005/projectstack-auth/internal/logging"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/auth"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

// AuthService is the slice of services.AuthService the handlers need.
type AuthService interface {
	Register(ctx context.Context, p services.RegisterParams) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateRefreshToken(ctx context.Context, refreshToken string) (bool, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error
	RequestEmailVerification(ctx context.Context, email string) error
	VerifyEmail(ctx context.Context, email, code string) (bool, error)
	Authenticate(ctx context.Context, accessToken string) (auth.Principal, error)
	Profile(ctx context.Context, userID string) (*models.User, error)
}

type HTTPServer struct {
	address  string
	auth     AuthService
	logger   logging.Logger
	validate *validator.Validate
	trans    ut.Translator
}

func NewHTTPServer(address string, l logging.Logger, as AuthService) (*HTTPServer, error) {
	v, trans, err := newValidator()
	if err != nil {
		return nil, err
	}
	return &HTTPServer{
		address:  address,
		auth:     as,
		logger:   l.With("module", "http_server"),
		validate: v,
		trans:    trans,
	}, nil
}

func newValidator() (*validator.Validate, ut.Translator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	locale := en.New()
	trans, _ := ut.New(locale, locale).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, nil, err
	}
	return v, trans, nil
}

// Routes builds the router. Exposed for tests.
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)
		r.Post("/refresh", s.refresh)
		r.Post("/refresh/validate", s.validateRefresh)
		r.Post("/otp/send", s.sendOTP)
		r.Post("/otp/verify", s.verifyOTP)
		r.Post("/password", s.changePassword)

		r.Group(func(r chi.Router) {
			r.Use(s.accessTokenMiddleware)
			r.Get("/me", s.me)
		})
	})

	return r
}

func (s *HTTPServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

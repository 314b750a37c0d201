// Package echoapi exposes the application over HTTP with echo.
package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/rkabuya/evaldesk/core"
	"github.com/rkabuya/evaldesk/core/evaluation"
	"github.com/rkabuya/evaldesk/core/hierarchy"
	"github.com/rkabuya/evaldesk/core/participant"
	"github.com/rkabuya/evaldesk/core/setting"
	"github.com/rkabuya/evaldesk/core/user"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool

		// Shutdown receives a SIGTERM when an unrecoverable error is caught;
		// main listens on it to stop the server gracefully. Optional.
		Shutdown chan<- os.Signal

		UserSvc        *user.Service
		HierarchySvc   *hierarchy.Service
		ParticipantSvc *participant.Service
		SettingSvc     *setting.Service
		Engine         *evaluation.Engine

		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf
	initAuth(conf)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerAuthAPI(v1, s.opts.UserSvc, s.opts.Validate)
	registerResultsAPI(v1, s.opts.Engine, s.opts.ParticipantSvc, s.opts.SettingSvc, s.opts.Validate)

	admin := v1.Group("/admin", jwt, adminMiddleware())
	registerHierarchyAPI(admin, s.opts.HierarchySvc, s.opts.Validate)
	registerParticipantAPI(admin, s.opts.ParticipantSvc, s.opts.HierarchySvc, s.opts.Validate)
	registerAdminResultsAPI(admin, s.opts.Engine)
	registerSettingAPI(admin, s.opts.SettingSvc)
}

func (s *server) signalShutdown() {
	if s.opts.Shutdown != nil {
		s.opts.Shutdown <- syscall.SIGTERM
	}
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Conf.Server.Addr()))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Evaldesk API!")
}

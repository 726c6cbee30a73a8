package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shinyyama/directchat/internal/handler"
	"github.com/shinyyama/directchat/internal/media"
	appmw "github.com/shinyyama/directchat/internal/middleware"
	"github.com/shinyyama/directchat/internal/presence"
	"github.com/shinyyama/directchat/internal/realtime"
	"github.com/shinyyama/directchat/internal/repository"
	"github.com/shinyyama/directchat/internal/service"
	"gorm.io/gorm"
)

type Options struct {
	Logger   zerolog.Logger
	Verifier appmw.Verifier
	// Uploader and Limiter are optional.
	Uploader media.Uploader
	Limiter  appmw.Limiter

	SendRateLimit  int
	AllowedOrigins []string
	BodyLimit      string
	SHA            string
	BuildTime      string
}

type Server struct {
	e        *echo.Echo
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
	hub      *realtime.Hub
	dbReady  atomic.Bool
	sha      string
	build    string
}

// New wires the HTTP surface. db may be nil and injected later with SetDB;
// store-backed routes answer 500 until then.
func New(db *gorm.DB, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmw.RequestLogger(opts.Logger))
	e.Use(appmw.Metrics)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc:  originAllowed(opts.AllowedOrigins),
	}))
	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	registry := presence.NewRegistry()
	hub := realtime.NewHub(registry, opts.Logger, opts.AllowedOrigins)

	msgRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)
	msgSvc := service.NewMessageService(msgRepo, userRepo, registry, hub, opts.Uploader, opts.Logger)
	userSvc := service.NewUserService(userRepo, registry, opts.Logger)

	msgHandler := handler.NewMessageHandler(msgSvc)
	userHandler := handler.NewUserHandler(userSvc)
	authMw := appmw.NewAuthMiddleware(opts.Verifier, userSvc)
	sendLimiter := appmw.NewRateLimiter(opts.Limiter, "send", opts.SendRateLimit, time.Minute, opts.Logger)

	s := &Server{e: e, msgRepo: msgRepo, userRepo: userRepo, hub: hub, sha: opts.SHA, build: opts.BuildTime}
	s.dbReady.Store(db != nil)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"db_ready":   boolString(s.dbReady.Load()),
			"git_sha":    s.sha,
			"build_time": s.build,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/ws", hub.Handle, authMw.RequireAuth)

	api := e.Group("/api", authMw.RequireAuth)
	api.GET("/messages/users", msgHandler.Sidebar)
	api.GET("/messages/:id", msgHandler.Conversation)
	api.POST("/messages/send/:id", msgHandler.Send, sendLimiter.Middleware)
	api.PUT("/messages/seen/:id", msgHandler.MarkSeen)
	api.DELETE("/messages/:id", msgHandler.Delete)
	api.GET("/users/me", userHandler.Me)
	api.GET("/users/online", userHandler.Online)
	api.GET("/users/:uid/public", userHandler.GetPublic)

	return s
}

// originAllowed accepts local development origins plus the configured list.
func originAllowed(allowed []string) func(string) (bool, error) {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	return func(origin string) (bool, error) {
		low := strings.ToLower(origin)
		if set[low] {
			return true, nil
		}
		u, err := url.Parse(low)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return false, nil
		}
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1", nil
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

// Shutdown closes websocket connections before draining HTTP requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.e.Shutdown(ctx)
}

func (s *Server) SetDB(db *gorm.DB) {
	s.msgRepo.SetDB(db)
	s.userRepo.SetDB(db)
	s.dbReady.Store(db != nil)
}

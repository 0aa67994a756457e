package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estate-inbox/internal/apiclient"
	"estate-inbox/internal/audit"
	"estate-inbox/internal/auth"
	"estate-inbox/internal/config"
	"estate-inbox/internal/endpoints"
	"estate-inbox/internal/events"
	"estate-inbox/internal/httpapi"
	"estate-inbox/internal/i18n"
	"estate-inbox/internal/inbox"
	"estate-inbox/internal/media"
	"estate-inbox/internal/notify"
	"estate-inbox/internal/property"
	"estate-inbox/internal/realtime"
	"estate-inbox/internal/session"
	"estate-inbox/internal/validation"
	"estate-inbox/internal/whatsapp"
	"estate-inbox/pkg/logger"
	"estate-inbox/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)
	rootCtx = logger.With(rootCtx, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.RegisterGin()

	var db *sql.DB
	if cfg.Session.PostgresDSN != "" {
		db, err = utils.OpenPostgres(rootCtx, cfg.Session.PostgresDSN)
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	store, closeStore, err := openSessionStore(rootCtx, cfg.Session, db)
	if err != nil {
		log.Error("session store init failed", "backend", cfg.Session.Backend, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	state := session.New(store, auth.ParseClaims)

	pub, err := openEvents(cfg.Events)
	if err != nil {
		log.Error("amqp init failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Warn("event publisher close failed", "err", err)
		}
	}()

	var auditRepo audit.Repository = audit.NewMemoryRepo(1000)
	if db != nil {
		pg := audit.NewPostgresRepo(db)
		if err := pg.EnsureSchema(rootCtx); err != nil {
			log.Error("audit schema failed", "err", err)
			os.Exit(1)
		}
		auditRepo = pg
	}
	auditSvc := audit.NewService(auditRepo)

	toasts := notify.NewMemory(100)
	reporter := notify.NewReporter(notify.Multi{toasts, notify.Log{}}, i18n.Default(), state.Locale)
	ep := endpoints.New(cfg.API.Prefix)

	// The navigator closes over authSvc, which needs the client first.
	var authSvc *auth.Service
	nav := apiclient.NavigatorFunc(func(ctx context.Context, route string) {
		logger.From(ctx).Warn("session rejected by backend", "route", route)
		if authSvc != nil {
			_ = authSvc.EndSession(ctx, "unauthorized")
		}
	})
	client, err := apiclient.New(cfg.API, state, nav)
	if err != nil {
		log.Error("api client init failed", "err", err)
		os.Exit(1)
	}
	authSvc = auth.NewService(client, client, ep, state, reporter, pub)
	if err := authSvc.Restore(rootCtx); err != nil && !errors.Is(err, session.ErrNoSession) {
		log.Warn("session restore failed", "err", err)
	}

	deps := whatsapp.Deps{API: client, Endpoints: ep, Reporter: reporter, Audit: auditSvc, Events: pub}
	accounts := whatsapp.NewAccountManager(deps)
	conversations := whatsapp.NewConversationService(deps, inbox.NewStore())
	inboxSvc := inbox.NewService(client, ep, conversations.Store())
	properties := property.NewService(client, ep, reporter)

	sdk := whatsapp.NewGraphLoginSDK(cfg.Meta, whatsapp.BrowserOpener{})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sdk.Close(ctx)
	}()
	// Linking 401s are reported by the flow itself and must not end the session.
	linkDeps := deps
	linkDeps.API = client.WithoutLogoutRedirect()
	linker := whatsapp.NewLinker(linkDeps, whatsapp.NewLoader(sdk), accounts, cfg.Meta)

	var stager *media.Stager
	if cfg.Media.Endpoint != "" {
		stager, err = media.Open(rootCtx, cfg.Media)
		if err != nil {
			log.Error("media storage init failed", "err", err)
			os.Exit(1)
		}
	}

	if cfg.Realtime.Enabled {
		l, err := realtime.New(client.BaseURL(), ep.InboxSocket(), state, conversations, accounts)
		if err != nil {
			log.Error("realtime init failed", "err", err)
			os.Exit(1)
		}
		go func() {
			if err := l.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("realtime listener stopped", "err", err)
			}
		}()
	}

	h := httpapi.Handlers{
		Auth:          authSvc,
		Session:       state,
		Accounts:      accounts,
		Conversations: conversations,
		Inbox:         inboxSvc,
		Properties:    properties,
		Activity:      auditSvc,
		Toasts:        toasts,
	}
	if cfg.LinkingEnabled() {
		h.Linker = linker
	}
	if stager != nil {
		h.Media = stager
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, h, state, sdk.Handler())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Linking holds the request open while the user is in the dialog.
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("inboxd listening", "addr", srv.Addr, "env", cfg.App.Env, "backend", client.BaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// openSessionStore picks the durable token store. The returned func releases
// connections the store owns.
func openSessionStore(ctx context.Context, cfg config.SessionConfig, db *sql.DB) (session.Store, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case "file":
		return session.NewFileStore(cfg.FilePath), noop, nil
	case "redis":
		rdb, err := utils.OpenRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, noop, err
		}
		return session.NewRedisStore(rdb, "estate-inbox:session:", 0), func() { _ = rdb.Close() }, nil
	case "postgres":
		if db == nil {
			return nil, noop, errors.New("DATABASE_URL is required for the postgres session backend")
		}
		pg := session.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, noop, err
		}
		return pg, noop, nil
	default:
		return session.NewMemoryStore(), noop, nil
	}
}

func openEvents(cfg config.EventsConfig) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.Nop{}, nil
	}
	return events.DialAMQP(cfg.AMQPURL, cfg.Exchange, auth.Actor)
}

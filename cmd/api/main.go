package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "rentdesk/internal/adapters/http_server"
	"rentdesk/internal/adapters/observability"
	redisad "rentdesk/internal/adapters/redis"
	"rentdesk/internal/adapters/sms"
	"rentdesk/internal/app"
	"rentdesk/internal/auth"
	"rentdesk/internal/domain"
	"rentdesk/internal/shared"
	mysqlrepo "rentdesk/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := observability.InitRegistry()
	observability.Serve(ctx, cfg.MetricsAddr, reg)

	// db
	if cfg.MigrateOnStart {
		mg, err := mysqlrepo.NewMigrator(cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("migrator init failed")
		}
		if err := mg.Up(); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
		v, _, _ := mg.Version()
		_ = mg.Close()
		log.Info().Uint("version", v).Msg("schema up to date")
	}
	db, err := mysqlrepo.Open(cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// cache + change feed
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	feed := redisad.NewChangeFeed(cache.Client())
	inv := app.NewInvalidator(cache)
	hub := app.NewHub(32)
	done, err := feed.Subscribe(ctx, func(ev domain.ChangeEvent) {
		inv.Handle(ctx, ev)
		hub.Broadcast(ev)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("change feed subscribe failed")
	}

	// deps
	plans, err := shared.LoadPlans(cfg.PlansFile)
	if err != nil {
		log.Fatal().Err(err).Msg("plan catalog")
	}
	tokens, err := auth.NewIssuer(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("token issuer")
	}
	var sender domain.SMSSender = sms.LogSender{}
	if cfg.SMSAPIKey != "" {
		cl, err := sms.New(cfg.SMSBaseURL, cfg.SMSAPIKey, cfg.SMSSenderID, cfg.SMSRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize SMS client")
		}
		sender = cl
	} else {
		log.Warn().Msg("SMS_API_KEY not set, messages are only logged")
	}

	repo := mysqlrepo.New(db)
	d := app.Deps{Cache: cache, Publisher: feed, CacheTTL: cfg.CacheTTL}
	subs := app.NewSubscriptions(repo, repo, plans, d)
	h := &server.Handlers{
		Accounts:      app.NewAccounts(repo, tokens, plans, d),
		Admin:         app.NewAdmin(repo, d),
		Properties:    app.NewProperties(repo, subs, d),
		Units:         app.NewUnits(repo, subs, d),
		Tenants:       app.NewTenants(repo, d),
		Billing:       app.NewBilling(repo, cfg.InvoiceDueDays, cfg.BillingWorkers, d),
		Expenses:      app.NewExpenses(repo, d),
		Maintenance:   app.NewMaintenance(repo, d),
		Utilities:     app.NewUtilities(repo, d),
		Subscriptions: subs,
		Notifications: app.NewNotifications(repo, sender, subs, d),
		Dashboards:    app.NewDashboards(repo, d),
		Hub:           hub,
		Ready: func(ctx context.Context) error {
			return errors.Join(db.PingContext(ctx), cache.Ping(ctx))
		},
	}

	// http
	srv := server.New(15 * time.Second)
	srv.MountHandlers(h)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// open change streams never go idle; end them when shutdown starts
	httpSrv.RegisterOnShutdown(hub.Close)
	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
	<-done
	log.Info().Msg("API stopped")
}

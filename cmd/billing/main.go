package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rentdesk/internal/adapters/observability"
	redisad "rentdesk/internal/adapters/redis"
	"rentdesk/internal/adapters/sms"
	"rentdesk/internal/app"
	"rentdesk/internal/domain"
	"rentdesk/internal/shared"
	mysqlrepo "rentdesk/internal/storage/mysql"
)

var (
	period string
	remind bool
)

var rootCmd = &cobra.Command{
	Use:   "billing",
	Short: "Run the monthly billing pass",
	Long: `Run the monthly billing pass over every active account.

For each account the job rolls an ended subscription period forward, flags
overdue invoices, issues the period's rent invoices (one per active tenant)
and, with --remind, texts tenants that have an overdue balance. Re-running for the same period is safe.

Example:
  billing --period 2025-03 --remind`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&period, "period", domain.PeriodOf(time.Now().UTC()), "billing period (YYYY-MM)")
	rootCmd.Flags().BoolVar(&remind, "remind", false, "text tenants with overdue invoices")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "billing", cfg.LogLevel)

	log.Info().
		Str("period", period).
		Bool("remind", remind).
		Int("workers", cfg.BillingWorkers).
		Msg("billing starting")

	reg := observability.InitRegistry()
	observability.Serve(ctx, cfg.MetricsAddr, reg)

	db, err := mysqlrepo.Open(cfg.MySQLDSN)
	if err != nil {
		log.Error().Err(err).Msg("sql.Open failed")
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("db.Ping failed")
		return err
	}
	log.Info().Msg("db ping ok")

	// writes are published so running API instances drop their cached copies
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	d := app.Deps{Cache: cache, Publisher: redisad.NewChangeFeed(cache.Client()), CacheTTL: cfg.CacheTTL}

	repo := mysqlrepo.New(db)
	billing := app.NewBilling(repo, cfg.InvoiceDueDays, cfg.BillingWorkers, d)

	plans, err := shared.LoadPlans(cfg.PlansFile)
	if err != nil {
		log.Error().Err(err).Msg("plan catalog")
		return err
	}
	subs := app.NewSubscriptions(repo, repo, plans, d)

	var notify *app.Notifications
	if remind {
		var sender domain.SMSSender = sms.LogSender{}
		if cfg.SMSAPIKey != "" {
			cl, err := sms.New(cfg.SMSBaseURL, cfg.SMSAPIKey, cfg.SMSSenderID, cfg.SMSRPS)
			if err != nil {
				log.Error().Err(err).Msg("failed to initialize SMS client")
				return err
			}
			sender = cl
		}
		notify = app.NewNotifications(repo, sender, subs, d)
	}

	cycle := app.NewBillingCycle(app.NewAdmin(repo, d), billing, subs, notify, cfg.BillingWorkers)
	start := time.Now()
	rep, err := cycle.Run(ctx, period, remind)
	observability.BillingRunDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).Msg("billing aborted")
		return err
	}

	log.Info().
		Str("period", rep.Period).
		Int("accounts", rep.Accounts).
		Int("skipped_accounts", rep.Skipped).
		Int("failed_accounts", rep.Failed).
		Int("renewed", rep.Renewed).
		Int("invoices_created", rep.Invoices.Created).
		Int("invoices_skipped", rep.Invoices.Skipped).
		Int("invoices_failed", rep.Invoices.Failed).
		Int64("overdue", rep.Overdue).
		Int("reminders_sent", rep.Reminders.Sent).
		Dur("took", time.Since(start)).
		Msg("billing completed")
	return nil
}

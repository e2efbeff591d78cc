package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/portfolio-cli/internal/api"
	"github.com/sells-group/portfolio-cli/internal/monitoring"
	"github.com/sells-group/portfolio-cli/internal/resilience"
	"github.com/sells-group/portfolio-cli/internal/scheduler"
)

var (
	servePort     int
	serveSchedule bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored snapshots over HTTP",
	Long:  "Starts the HTTP API. With --schedule (or schedule.enabled) it also takes snapshots on the configured cron schedule.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		scheduled := serveSchedule || cfg.Schedule.Enabled

		repo, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer repo.Close() //nolint:errcheck

		g, gctx := errgroup.WithContext(ctx)

		if scheduled {
			if err := cfg.Validate("schedule"); err != nil {
				return err
			}
			scraper, err := initScraper()
			if err != nil {
				return err
			}
			breaker := resilience.NewCircuitBreaker(resilience.LoginBreakerConfig(
				cfg.Schedule.FailureThreshold,
				time.Duration(cfg.Schedule.ResetTimeoutSecs)*time.Second,
			))
			sched := scheduler.New(gctx, scraper, repo, credentials(), breaker)
			if cfg.Alert.WebhookURL != "" {
				sched.SetNotifier(monitoring.NewAlerter(monitoring.Config{
					WebhookURL:       cfg.Alert.WebhookURL,
					WarningThreshold: cfg.Alert.WarningThreshold,
				}))
			}
			if err := sched.Register(cfg.Schedule.Cron); err != nil {
				return err
			}
			sched.Start()
			g.Go(func() error {
				<-gctx.Done()
				sched.Stop()
				return nil
			})
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewRouter(repo),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			zap.L().Info("starting server",
				zap.Int("port", cfg.Server.Port),
				zap.Bool("scheduled", scheduled),
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		// Graceful shutdown
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 15*time.Second)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveSchedule, "schedule", false, "also take snapshots on the configured cron schedule")
	rootCmd.AddCommand(serveCmd)
}

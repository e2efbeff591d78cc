package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/portfolio-cli/internal/browser/chrome"
	"github.com/sells-group/portfolio-cli/internal/pipeline"
	"github.com/sells-group/portfolio-cli/internal/resilience"
	"github.com/sells-group/portfolio-cli/internal/session"
	"github.com/sells-group/portfolio-cli/internal/store"
)

const dateLayout = "2006-01-02"

// initStore opens the configured repository and applies its migration.
// Callers should defer Close.
func initStore(ctx context.Context) (store.PortfolioRepository, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	repo, err := store.Open(ctx, store.Config{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
	})
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return repo, nil
}

// initScraper wires the browser, login state machine and extraction
// pipeline from config.
func initScraper() (*pipeline.Scraper, error) {
	if err := cfg.Validate("scrape"); err != nil {
		return nil, err
	}

	launcher := chrome.NewLauncher(chrome.Options{
		Headless:     cfg.Browser.Headless,
		ExecPath:     cfg.Browser.ExecPath,
		UserAgent:    cfg.Browser.UserAgent,
		NavTimeout:   cfg.Browser.NavTimeout(),
		NavPerMinute: cfg.Browser.NavPerMinute,
	})

	sessCfg := session.DefaultConfig()
	sessCfg.LoginURL = cfg.Broker.LoginURL
	sessCfg.PostLoginPattern = cfg.Broker.PostLoginPattern
	sessCfg.AuthenticatedHost = cfg.Broker.AuthenticatedHost
	sessCfg.LoginWait = cfg.Auth.LoginWait()
	sessCfg.LoadWait = cfg.Browser.LoadTimeout()
	sessCfg.DeviceAuthTimeout = cfg.Auth.DeviceAuthTimeout()
	sessCfg.PollInterval = cfg.Auth.PollInterval()
	sessCfg.Retry = resilience.NavigationRetry(cfg.Browser.NavAttempts, cfg.Broker.LoginURL)

	manager, err := session.NewManager(sessCfg, session.NewFileStore(cfg.Session.Dir))
	if err != nil {
		return nil, err
	}

	return pipeline.NewScraper(pipeline.Config{
		DomesticURL: cfg.Broker.DomesticURL,
		ForeignURL:  cfg.Broker.ForeignURL,
		LoadWait:    cfg.Browser.LoadTimeout(),
		NavAttempts: cfg.Browser.NavAttempts,
	}, launcher, manager, pipeline.NewDumper(cfg.Debug.Enabled, cfg.Debug.Dir)), nil
}

func credentials() session.Credentials {
	return session.Credentials{
		Username: cfg.Broker.Username,
		Password: cfg.Broker.Password,
	}
}

// parseDateRange parses inclusive YYYY-MM-DD bounds as UTC days. An empty
// from means the Unix epoch; an empty to means today.
func parseDateRange(from, to string, now time.Time) (time.Time, time.Time, error) {
	start := time.Unix(0, 0).UTC()
	end := now.UTC()
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return time.Time{}, time.Time{}, eris.Wrapf(err, "invalid --from %q (want YYYY-MM-DD)", from)
		}
		start = t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return time.Time{}, time.Time{}, eris.Wrapf(err, "invalid --to %q (want YYYY-MM-DD)", to)
		}
		end = t
	}
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1).Add(-time.Millisecond)
	if end.Before(start) {
		return time.Time{}, time.Time{}, eris.Errorf("--from %s is after --to %s", from, to)
	}
	return start, end, nil
}

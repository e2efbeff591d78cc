// Package pipeline runs one portfolio scrape end to end: open a browser
// page, authenticate, fetch each holdings page and extract a snapshot.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/browser"
	"github.com/sells-group/portfolio-cli/internal/extract"
	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/resilience"
	"github.com/sells-group/portfolio-cli/internal/session"
)

// Authenticator leaves a page logged in to the portal.
type Authenticator interface {
	Establish(ctx context.Context, page browser.Page, creds session.Credentials) (*session.Session, error)
}

// Config configures a Scraper.
type Config struct {
	DomesticURL string
	// ForeignURL is skipped when empty.
	ForeignURL  string
	LoadWait    time.Duration
	NavAttempts int
}

// Result is a completed scrape.
type Result struct {
	Portfolio *model.Portfolio
	Warnings  []extract.Warning
	Session   *session.Session
}

// Scraper takes portfolio snapshots.
type Scraper struct {
	cfg      Config
	launcher browser.Launcher
	auth     Authenticator
	dumper   *Dumper
	now      func() time.Time
}

// NewScraper creates a Scraper. dumper may be nil.
func NewScraper(cfg Config, launcher browser.Launcher, auth Authenticator, dumper *Dumper) *Scraper {
	if cfg.LoadWait <= 0 {
		cfg.LoadWait = 10 * time.Second
	}
	return &Scraper{cfg: cfg, launcher: launcher, auth: auth, dumper: dumper, now: time.Now}
}

// Scrape takes one snapshot. Authentication and navigation failures abort
// it with a *model.Error; rows that cannot be parsed are skipped and
// reported in Result.Warnings. The browser page is closed on every path.
func (s *Scraper) Scrape(ctx context.Context, creds session.Credentials) (*Result, error) {
	page, err := s.launcher.Open(ctx)
	if err != nil {
		return nil, model.NewError(model.KindSiteUnreachable, "pipeline: open browser", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			zap.L().Warn("pipeline: close browser", zap.Error(cerr))
		}
	}()

	sess, err := s.auth.Establish(ctx, page, creds)
	s.dumper.Capture(ctx, page, "04-current-page", "")
	if err != nil {
		return nil, err
	}

	ex := extract.NewExtractor()

	doc, err := s.fetch(ctx, page, s.cfg.DomesticURL, "05-domestic-portfolio")
	if err != nil {
		return nil, model.NewError(model.KindSiteUnreachable, "pipeline: fetch domestic holdings", err)
	}
	domestic := ex.Domestic(doc)

	holdings := domestic.Holdings
	warnings := domestic.Warnings

	if s.cfg.ForeignURL != "" {
		doc, err := s.fetch(ctx, page, s.cfg.ForeignURL, "06-foreign-portfolio")
		if err != nil {
			return nil, model.NewError(model.KindSiteUnreachable, "pipeline: fetch foreign holdings", err)
		}
		foreign := ex.Foreign(doc)
		holdings = append(holdings, foreign.Holdings...)
		warnings = append(warnings, foreign.Warnings...)
	}

	snapshot := model.NewPortfolio(holdings, s.now().UTC().Truncate(time.Millisecond))
	zap.L().Info("pipeline: snapshot taken",
		zap.Int("holdings", snapshot.Len()),
		zap.Int("warnings", len(warnings)),
		zap.Float64("total_value", snapshot.TotalValue()),
		zap.Bool("session_restored", sess.Restored),
	)

	return &Result{Portfolio: snapshot, Warnings: warnings, Session: sess}, nil
}

func (s *Scraper) fetch(ctx context.Context, page browser.Page, url, step string) (string, error) {
	zap.L().Info("pipeline: fetching", zap.String("step", step))

	retry := resilience.NavigationRetry(s.cfg.NavAttempts, url)
	if err := browser.Visit(ctx, page, url, retry, s.cfg.LoadWait); err != nil {
		return "", err
	}
	html, err := page.Content(ctx)
	if err != nil {
		return "", err
	}
	s.dumper.Capture(ctx, page, step, html)
	return html, nil
}

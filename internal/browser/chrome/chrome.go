// Package chrome implements browser.Page on a headless Chrome driven over
// the DevTools protocol.
package chrome

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/portfolio-cli/internal/browser"
	"github.com/sells-group/portfolio-cli/internal/resilience"
)

// Options configures the Chrome launcher.
type Options struct {
	Headless   bool
	ExecPath   string
	UserAgent  string
	NavTimeout time.Duration
	// NavPerMinute limits navigations across all pages of the launcher.
	// Zero means unlimited.
	NavPerMinute int
}

// Launcher starts one Chrome process per page, so pages never share
// cookies or storage.
type Launcher struct {
	opts    Options
	limiter *rate.Limiter
}

// NewLauncher creates a Launcher.
func NewLauncher(opts Options) *Launcher {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.NavPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.NavPerMinute)), 1)
	}
	return &Launcher{opts: opts, limiter: limiter}
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", l.opts.Headless))
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}
	if l.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.opts.UserAgent))
	}
	return opts
}

// Open starts a browser and returns its first tab. The browser is tied to
// the page, not to ctx: it lives until Close.
func (l *Launcher) Open(ctx context.Context) (browser.Page, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), l.allocatorOptions()...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	p := &page{tab: tabCtx, limiter: l.limiter, navTimeout: l.opts.NavTimeout}
	p.cancel = func() {
		cancelTab()
		cancelAlloc()
	}

	// The first Run starts the browser process.
	if err := p.run(ctx); err != nil {
		p.cancel()
		return nil, eris.Wrap(err, "chrome: start browser")
	}
	zap.L().Debug("chrome: page opened", zap.Bool("headless", l.opts.Headless))
	return p, nil
}

type page struct {
	tab        context.Context
	cancel     context.CancelFunc
	limiter    *rate.Limiter
	navTimeout time.Duration
}

// run executes actions on the tab, aborting when the caller's ctx is done.
func (p *page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *page) Navigate(ctx context.Context, url string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "chrome: navigation rate limit")
	}

	navCtx, cancel := context.WithTimeout(ctx, p.navTimeout)
	defer cancel()

	err := p.run(navCtx, chromedp.Navigate(url))
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case navCtx.Err() != nil:
		return resilience.Transient(eris.Wrapf(navCtx.Err(), "chrome: navigate %s", url))
	}
	return eris.Wrapf(err, "chrome: navigate %s", url)
}

func (p *page) WaitForLoad(ctx context.Context, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.run(waitCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return eris.Wrap(err, "chrome: wait for load")
	}
	return nil
}

// bounded limits a DOM action to the navigation timeout. Visibility waits
// otherwise block until ctx ends when an element exists but stays hidden.
func (p *page) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.navTimeout)
}

func (p *page) Fill(ctx context.Context, selector, value string) error {
	ctx, cancel := p.bounded(ctx)
	defer cancel()
	err := p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return eris.Wrapf(err, "chrome: fill %s", selector)
	}
	return nil
}

func (p *page) Click(ctx context.Context, selector string) error {
	ctx, cancel := p.bounded(ctx)
	defer cancel()
	if err := p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return eris.Wrapf(err, "chrome: click %s", selector)
	}
	return nil
}

func (p *page) Count(ctx context.Context, selector string) (int, error) {
	ctx, cancel := p.bounded(ctx)
	defer cancel()
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return 0, eris.Wrapf(err, "chrome: count %s", selector)
	}
	return len(nodes), nil
}

func (p *page) Content(ctx context.Context) (string, error) {
	ctx, cancel := p.bounded(ctx)
	defer cancel()
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", eris.Wrap(err, "chrome: content")
	}
	return html, nil
}

func (p *page) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", eris.Wrap(err, "chrome: location")
	}
	return url, nil
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, eris.Wrap(err, "chrome: screenshot")
	}
	return buf, nil
}

func (p *page) SaveState(ctx context.Context) (*browser.State, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, eris.Wrap(err, "chrome: read cookies")
	}
	return &browser.State{Cookies: fromNetwork(cookies)}, nil
}

func (p *page) RestoreState(ctx context.Context, state *browser.State) error {
	live := state.Live(time.Now())
	if len(live) == 0 {
		return nil
	}
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(toNetwork(live)).Do(ctx)
	}))
	if err != nil {
		return eris.Wrap(err, "chrome: set cookies")
	}
	return nil
}

func (p *page) Close() error {
	p.cancel()
	return nil
}

func fromNetwork(cookies []*network.Cookie) []browser.Cookie {
	out := make([]browser.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, browser.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out
}

func toNetwork(cookies []browser.Cookie) []*network.CookieParam {
	out := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: network.CookieSameSite(c.SameSite),
		}
		if c.Expires > 0 {
			sec := int64(c.Expires)
			exp := cdp.TimeSinceEpoch(time.Unix(sec, int64((c.Expires-float64(sec))*1e9)))
			param.Expires = &exp
		}
		out = append(out, param)
	}
	return out
}

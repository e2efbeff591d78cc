package session

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portfolio-cli/internal/browser"
	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/resilience"
)

// Login form selectors of the portal top page.
const (
	UserField     = `input[name="user_id"]`
	PasswordField = `input[name="user_password"]`
	LoginButton   = `input[name="ACT_login"]`
)

// rejectionMarkers appear on the page when the portal refuses a login.
var rejectionMarkers = []string{"ログインできません", "パスワードが正しくありません"}

// Config configures a Manager.
type Config struct {
	LoginURL string
	// PostLoginPattern matches the URL the portal redirects to after a
	// submitted login.
	PostLoginPattern string
	// AuthenticatedHost is the host reached once device authentication is
	// complete.
	AuthenticatedHost string

	LoginWait         time.Duration
	LoadWait          time.Duration
	DeviceAuthTimeout time.Duration
	PollInterval      time.Duration

	Retry resilience.RetryConfig
}

// DefaultConfig returns the portal's login settings.
func DefaultConfig() Config {
	return Config{
		LoginURL:          "https://www.sbisec.co.jp/ETGate",
		PostLoginPattern:  `/Default|_PageID=DefaultPID`,
		AuthenticatedHost: "site1.sbisec.co.jp",
		LoginWait:         30 * time.Second,
		LoadWait:          10 * time.Second,
		DeviceAuthTimeout: 5 * time.Minute,
		PollInterval:      time.Second,
		Retry:             resilience.DefaultRetryConfig(),
	}
}

// Manager drives the login state machine for one portal.
type Manager struct {
	cfg       Config
	store     BlobStore
	postLogin *regexp.Regexp
	now       func() time.Time
}

// NewManager creates a Manager that persists sessions in store.
func NewManager(cfg Config, store BlobStore) (*Manager, error) {
	re, err := regexp.Compile(cfg.PostLoginPattern)
	if err != nil {
		return nil, eris.Wrap(err, "session: compile post-login pattern")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Manager{cfg: cfg, store: store, postLogin: re, now: time.Now}, nil
}

// Establish leaves page authenticated against the portal. Stored cookies
// are tried first; if the portal still shows the login form they are
// discarded and a full login is performed. A login that completes persists
// the new cookies.
//
// Failures are returned as *model.Error. The returned Session is non-nil
// in every case and records the path taken.
func (m *Manager) Establish(ctx context.Context, page browser.Page, creds Credentials) (*Session, error) {
	s := newSession(m.now)

	stored, err := m.store.Exists(ctx, creds.Username)
	if err != nil {
		zap.L().Warn("session: cannot check stored session, logging in", zap.Error(err))
	}
	if stored {
		ok, err := m.restore(ctx, page, s, creds.Username)
		if err != nil || ok {
			return s, err
		}
	}
	return s, m.login(ctx, page, s, creds)
}

// restore reuses stored cookies. It reports false, with the session moved
// to StateAwaitingCredentials, when the cookies no longer authenticate.
func (m *Manager) restore(ctx context.Context, page browser.Page, s *Session, user string) (bool, error) {
	s.moveTo(StateRestoringSession)

	state, err := m.loadState(ctx, user)
	if err != nil {
		zap.L().Warn("session: stored session unusable", zap.Error(err))
		return false, m.expire(ctx, s, user)
	}
	if err := page.RestoreState(ctx, state); err != nil {
		zap.L().Warn("session: stored cookies rejected by browser", zap.Error(err))
		return false, m.expire(ctx, s, user)
	}

	if err := m.visit(ctx, page, m.cfg.LoginURL); err != nil {
		s.moveTo(StateSiteUnreachable)
		return false, model.NewError(model.KindSiteUnreachable, "session: open portal", err)
	}

	forms, err := page.Count(ctx, UserField)
	if err != nil {
		s.moveTo(StateSiteUnreachable)
		return false, model.NewError(model.KindSiteUnreachable, "session: inspect portal", err)
	}
	if forms > 0 {
		zap.L().Info("session: stored session expired")
		return false, m.expire(ctx, s, user)
	}

	s.Restored = true
	s.moveTo(StateAuthenticated)
	return true, nil
}

func (m *Manager) loadState(ctx context.Context, user string) (*browser.State, error) {
	blob, err := m.store.Load(ctx, user)
	if err != nil {
		return nil, err
	}
	return browser.ParseState(blob)
}

func (m *Manager) expire(ctx context.Context, s *Session, user string) error {
	if err := m.store.Delete(ctx, user); err != nil {
		zap.L().Warn("session: delete expired session", zap.Error(err))
	}
	s.moveTo(StateAwaitingCredentials)
	return nil
}

func (m *Manager) login(ctx context.Context, page browser.Page, s *Session, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		s.moveTo(StateLoginFailed)
		return model.NewError(model.KindInvalidCredentials, "session: establish", err)
	}
	if s.State != StateAwaitingCredentials {
		s.moveTo(StateAwaitingCredentials)
	}

	if err := m.visit(ctx, page, m.cfg.LoginURL); err != nil {
		s.moveTo(StateSiteUnreachable)
		return model.NewError(model.KindSiteUnreachable, "session: open login page", err)
	}

	forms, err := page.Count(ctx, UserField)
	if err != nil || forms == 0 {
		s.moveTo(StateLoginFailed)
		return model.NewError(model.KindLoginFormMissing, "session: find login form", err)
	}

	if err := m.submit(ctx, page, creds); err != nil {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "session: submit login form")
		}
		s.moveTo(StateLoginFailed)
		return model.NewError(model.KindLoginFormMissing, "session: submit login form", err)
	}
	s.moveTo(StateLoginSubmitted)

	if _, err := m.waitForURL(ctx, page, m.postLogin.MatchString, m.cfg.LoginWait); err != nil {
		return eris.Wrap(err, "session: wait for login")
	}
	if err := page.WaitForLoad(ctx, m.cfg.LoadWait); err != nil {
		zap.L().Warn("session: post-login load wait expired", zap.Error(err))
	}

	if rejected, err := m.rejected(ctx, page); err != nil {
		s.moveTo(StateSiteUnreachable)
		return model.NewError(model.KindSiteUnreachable, "session: read login result", err)
	} else if rejected {
		s.moveTo(StateLoginFailed)
		return model.NewError(model.KindAuthenticationRejected, "session: login", nil)
	}

	s.moveTo(StateAwaitingDeviceAuth)
	zap.L().Info("session: waiting for device authentication",
		zap.Duration("timeout", m.cfg.DeviceAuthTimeout),
	)
	ok, err := m.waitForURL(ctx, page, m.onAuthenticatedHost, m.cfg.DeviceAuthTimeout)
	if err != nil {
		return eris.Wrap(err, "session: wait for device authentication")
	}
	if !ok {
		s.moveTo(StateDeviceAuthTimeout)
		return model.NewError(model.KindDeviceAuthTimeout, "session: device authentication", nil)
	}

	s.moveTo(StateAuthenticated)
	m.persist(ctx, page, creds.Username)
	return nil
}

// submit fills and posts the login form. A form that is present but never
// becomes usable fails after the login wait.
func (m *Manager) submit(ctx context.Context, page browser.Page, creds Credentials) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.LoginWait)
	defer cancel()
	if err := page.Fill(ctx, UserField, creds.Username); err != nil {
		return err
	}
	if err := page.Fill(ctx, PasswordField, creds.Password); err != nil {
		return err
	}
	return page.Click(ctx, LoginButton)
}

func (m *Manager) rejected(ctx context.Context, page browser.Page) (bool, error) {
	html, err := page.Content(ctx)
	if err != nil {
		return false, err
	}
	for _, marker := range rejectionMarkers {
		if strings.Contains(html, marker) {
			return true, nil
		}
	}
	return false, nil
}

// persist saves the page cookies. A failed save costs a login next run,
// not this one, so it is only logged.
func (m *Manager) persist(ctx context.Context, page browser.Page, user string) {
	state, err := page.SaveState(ctx)
	if err != nil {
		zap.L().Warn("session: read cookies", zap.Error(err))
		return
	}
	blob, err := state.Marshal()
	if err == nil {
		err = m.store.Save(ctx, user, blob)
	}
	if err != nil {
		zap.L().Warn("session: save session", zap.Error(err))
		return
	}
	zap.L().Info("session: saved", zap.Int("cookies", len(state.Cookies)))
}

func (m *Manager) visit(ctx context.Context, page browser.Page, url string) error {
	retry := m.cfg.Retry
	retry.OnRetry = resilience.RetryLogger("navigate", url)
	return browser.Visit(ctx, page, url, retry, m.cfg.LoadWait)
}

func (m *Manager) onAuthenticatedHost(url string) bool {
	return strings.Contains(url, "://"+m.cfg.AuthenticatedHost+"/") ||
		strings.HasSuffix(url, "://"+m.cfg.AuthenticatedHost)
}

// waitForURL polls the page URL until match accepts it or timeout elapses.
// It reports whether the URL matched. Only cancellation of ctx is an error;
// a URL read that fails is retried on the next poll.
func (m *Manager) waitForURL(ctx context.Context, page browser.Page, match func(string) bool, timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(m.cfg.PollInterval)
	defer tick.Stop()

	for {
		url, err := page.URL(ctx)
		if err == nil && match(url) {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-tick.C:
		}
	}
}

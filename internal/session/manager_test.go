package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/portfolio-cli/internal/browser"
	"github.com/sells-group/portfolio-cli/internal/browser/mocks"
	"github.com/sells-group/portfolio-cli/internal/model"
	"github.com/sells-group/portfolio-cli/internal/resilience"
)

const (
	loginURL     = "https://www.sbisec.co.jp/ETGate"
	postLoginURL = "https://www.sbisec.co.jp/ETGate/?_ControlID=WPLETlgR001Control&_PageID=DefaultPID"
	homeURL      = "https://site1.sbisec.co.jp/ETGate/?_ControlID=WPLETsmR001Control&_PageID=DefaultPID"
)

var creds = Credentials{Username: "investor", Password: "secret"}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LoginWait = 50 * time.Millisecond
	cfg.LoadWait = time.Second
	cfg.DeviceAuthTimeout = 50 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	cfg.Retry = resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	return cfg
}

func newTestManager(t *testing.T) (*Manager, *FileStore) {
	t.Helper()
	store := NewFileStore(t.TempDir())
	m, err := NewManager(testConfig(), store)
	require.NoError(t, err)
	return m, store
}

func savedState() *browser.State {
	return &browser.State{Cookies: []browser.Cookie{{Name: "JSESSIONID", Value: "abc", Domain: ".sbisec.co.jp", Path: "/"}}}
}

// expectLoginForm sets up navigation to the login page and a successful
// form submission.
func expectLoginForm(page *mocks.MockPage) {
	page.On("Navigate", mock.Anything, loginURL).Return(nil).Once()
	page.On("WaitForLoad", mock.Anything, mock.Anything).Return(nil)
	page.On("Count", mock.Anything, UserField).Return(1, nil).Once()
	page.On("Fill", mock.Anything, UserField, creds.Username).Return(nil).Once()
	page.On("Fill", mock.Anything, PasswordField, creds.Password).Return(nil).Once()
	page.On("Click", mock.Anything, LoginButton).Return(nil).Once()
}

func TestEstablish_EmptyPasswordFailsBeforeNavigation(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	page := mocks.NewMockPage(t)

	s, err := m.Establish(context.Background(), page, Credentials{Username: "investor"})

	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindInvalidCredentials))
	assert.Equal(t, StateLoginFailed, s.State)
	page.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
}

func TestEstablish_FullLogin(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(t)
	page := mocks.NewMockPage(t)

	expectLoginForm(page)
	page.On("URL", mock.Anything).Return(homeURL, nil)
	page.On("Content", mock.Anything).Return("<html>ようこそ</html>", nil).Once()
	page.On("SaveState", mock.Anything).Return(savedState(), nil).Once()

	s, err := m.Establish(context.Background(), page, creds)
	require.NoError(t, err)

	assert.True(t, s.Authenticated())
	assert.False(t, s.Restored)
	assert.Equal(t, []State{
		StateNoSession,
		StateAwaitingCredentials,
		StateLoginSubmitted,
		StateAwaitingDeviceAuth,
		StateAuthenticated,
	}, s.Path())

	blob, err := store.Load(context.Background(), creds.Username)
	require.NoError(t, err)
	state, err := browser.ParseState(blob)
	require.NoError(t, err)
	assert.Equal(t, savedState(), state)
}

func TestEstablish_LoginFormMissing(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	page := mocks.NewMockPage(t)

	page.On("Navigate", mock.Anything, loginURL).Return(nil).Once()
	page.On("WaitForLoad", mock.Anything, mock.Anything).Return(nil).Once()
	page.On("Count", mock.Anything, UserField).Return(0, nil).Once()

	s, err := m.Establish(context.Background(), page, creds)

	assert.True(t, model.IsKind(err, model.KindLoginFormMissing))
	assert.Equal(t, StateLoginFailed, s.State)
	page.AssertNotCalled(t, "Fill", mock.Anything, mock.Anything, mock.Anything)
}

func TestEstablish_HiddenLoginFormTimesOut(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	page := mocks.NewMockPage(t)

	page.On("Navigate", mock.Anything, loginURL).Return(nil).Once()
	page.On("WaitForLoad", mock.Anything, mock.Anything).Return(nil).Once()
	page.On("Count", mock.Anything, UserField).Return(1, nil).Once()
	// The input exists but never becomes visible.
	page.On("Fill", mock.Anything, UserField, creds.Username).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(context.DeadlineExceeded).Once()

	done := make(chan struct{})
	var (
		s   *Session
		err error
	)
	go func() {
		defer close(done)
		s, err = m.Establish(context.Background(), page, creds)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Establish did not return while the login form stayed hidden")
	}
	assert.True(t, model.IsKind(err, model.KindLoginFormMissing))
	assert.Equal(t, StateLoginFailed, s.State)
	page.AssertNotCalled(t, "Click", mock.Anything, mock.Anything)
}

func TestEstablish_AuthenticationRejected(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(t)
	page := mocks.NewMockPage(t)

	expectLoginForm(page)
	page.On("URL", mock.Anything).Return(postLoginURL, nil)
	page.On("Content", mock.Anything).Return("<p>ユーザーネームまたはパスワードが正しくありません。</p>", nil).Once()

	s, err := m.Establish(context.Background(), page, creds)

	assert.True(t, model.IsKind(err, model.KindAuthenticationRejected))
	assert.False(t, model.IsKind(err, model.KindLoginFormMissing))
	assert.Equal(t, StateLoginFailed, s.State)

	ok, err := store.Exists(context.Background(), creds.Username)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEstablish_DeviceAuthTimeout(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	page := mocks.NewMockPage(t)

	expectLoginForm(page)
	page.On("URL", mock.Anything).Return(postLoginURL, nil)
	page.On("Content", mock.Anything).Return("<html>デバイス認証</html>", nil).Once()

	s, err := m.Establish(context.Background(), page, creds)

	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindDeviceAuthTimeout))
	kind, _ := model.KindOf(err)
	assert.True(t, kind.Retryable())
	assert.Equal(t, StateDeviceAuthTimeout, s.State)
	page.AssertNotCalled(t, "SaveState", mock.Anything)
}

func TestEstablish_LoginWaitMissIsNotFatal(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	page := mocks.NewMockPage(t)

	expectLoginForm(page)
	// Never matches the post-login pattern, so the login wait runs out;
	// the authenticated host still satisfies device authentication.
	page.On("URL", mock.Anything).Return("https://site1.sbisec.co.jp/account/top", nil)
	page.On("Content", mock.Anything).Return("<html></html>", nil).Once()
	page.On("SaveState", mock.Anything).Return(savedState(), nil).Once()

	s, err := m.Establish(context.Background(), page, creds)
	require.NoError(t, err)
	assert.True(t, s.Authenticated())
}

func TestEstablish_SiteUnreachable(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	page := mocks.NewMockPage(t)

	page.On("Navigate", mock.Anything, loginURL).Return(errors.New("net::ERR_NAME_NOT_RESOLVED")).Times(2)

	s, err := m.Establish(context.Background(), page, creds)

	assert.True(t, model.IsKind(err, model.KindSiteUnreachable))
	assert.Equal(t, StateSiteUnreachable, s.State)
}

func TestEstablish_RestoresStoredSession(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(t)
	blob, err := savedState().Marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), creds.Username, blob))

	page := mocks.NewMockPage(t)
	page.On("RestoreState", mock.Anything, savedState()).Return(nil).Once()
	page.On("Navigate", mock.Anything, loginURL).Return(nil).Once()
	page.On("WaitForLoad", mock.Anything, mock.Anything).Return(nil).Once()
	page.On("Count", mock.Anything, UserField).Return(0, nil).Once()

	// Restoring needs no password.
	s, err := m.Establish(context.Background(), page, Credentials{Username: creds.Username})
	require.NoError(t, err)

	assert.True(t, s.Authenticated())
	assert.True(t, s.Restored)
	assert.Equal(t, []State{StateNoSession, StateRestoringSession, StateAuthenticated}, s.Path())
	page.AssertNotCalled(t, "Fill", mock.Anything, mock.Anything, mock.Anything)
	page.AssertNotCalled(t, "SaveState", mock.Anything)
}

func TestEstablish_ExpiredSessionFallsBackToLogin(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(t)
	blob, err := (&browser.State{}).Marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), creds.Username, blob))

	page := mocks.NewMockPage(t)
	page.On("RestoreState", mock.Anything, mock.Anything).Return(nil).Once()
	// Restore navigation lands on the login form.
	page.On("Navigate", mock.Anything, loginURL).Return(nil).Once()
	page.On("Count", mock.Anything, UserField).Return(1, nil).Once()
	expectLoginForm(page)
	page.On("URL", mock.Anything).Return(homeURL, nil)
	page.On("Content", mock.Anything).Return("<html></html>", nil).Once()
	page.On("SaveState", mock.Anything).Return(savedState(), nil).Once()

	s, err := m.Establish(context.Background(), page, creds)
	require.NoError(t, err)

	assert.False(t, s.Restored)
	assert.Equal(t, []State{
		StateNoSession,
		StateRestoringSession,
		StateAwaitingCredentials,
		StateLoginSubmitted,
		StateAwaitingDeviceAuth,
		StateAuthenticated,
	}, s.Path())

	stored, err := store.Load(context.Background(), creds.Username)
	require.NoError(t, err)
	state, err := browser.ParseState(stored)
	require.NoError(t, err)
	assert.Len(t, state.Cookies, 1)
}

func TestEstablish_RejectedCookiesFallBackToLogin(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(t)
	blob, err := savedState().Marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), creds.Username, blob))

	page := mocks.NewMockPage(t)
	page.On("RestoreState", mock.Anything, savedState()).Return(errors.New("invalid cookie fields")).Once()
	expectLoginForm(page)
	page.On("URL", mock.Anything).Return(homeURL, nil)
	page.On("Content", mock.Anything).Return("<html></html>", nil).Once()
	page.On("SaveState", mock.Anything).Return(savedState(), nil).Once()

	s, err := m.Establish(context.Background(), page, creds)
	require.NoError(t, err)

	assert.False(t, s.Restored)
	assert.Equal(t, []State{
		StateNoSession,
		StateRestoringSession,
		StateAwaitingCredentials,
		StateLoginSubmitted,
		StateAwaitingDeviceAuth,
		StateAuthenticated,
	}, s.Path())
}

func TestEstablish_CorruptBlobFallsBackToLogin(t *testing.T) {
	t.Parallel()
	m, store := newTestManager(t)
	require.NoError(t, store.Save(context.Background(), creds.Username, []byte("{corrupt")))

	page := mocks.NewMockPage(t)
	page.On("Navigate", mock.Anything, loginURL).Return(nil).Once()
	page.On("WaitForLoad", mock.Anything, mock.Anything).Return(nil).Once()
	page.On("Count", mock.Anything, UserField).Return(0, nil).Once()

	s, err := m.Establish(context.Background(), page, creds)

	assert.True(t, model.IsKind(err, model.KindLoginFormMissing))
	assert.Equal(t, []State{StateNoSession, StateRestoringSession, StateAwaitingCredentials, StateLoginFailed}, s.Path())
	page.AssertNotCalled(t, "RestoreState", mock.Anything, mock.Anything)

	ok, err := store.Exists(context.Background(), creds.Username)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEstablish_CancelledDuringDeviceAuth(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	m.cfg.DeviceAuthTimeout = time.Minute
	page := mocks.NewMockPage(t)

	ctx, cancel := context.WithCancel(context.Background())
	expectLoginForm(page)
	page.On("URL", mock.Anything).Return(postLoginURL, nil)
	page.On("Content", mock.Anything).Return("<html></html>", nil).Run(func(mock.Arguments) {
		time.AfterFunc(20*time.Millisecond, cancel)
	}).Once()

	s, err := m.Establish(ctx, page, creds)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	_, isKind := model.KindOf(err)
	assert.False(t, isKind)
	assert.Equal(t, StateAwaitingDeviceAuth, s.State)
}

func TestNewManager_BadPattern(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.PostLoginPattern = "("
	_, err := NewManager(cfg, NewFileStore(t.TempDir()))
	assert.Error(t, err)
}

func TestState_Terminal(t *testing.T) {
	t.Parallel()
	assert.True(t, StateAuthenticated.Terminal())
	assert.True(t, StateDeviceAuthTimeout.Terminal())
	assert.False(t, StateLoginSubmitted.Terminal())
	assert.False(t, StateRestoringSession.Terminal())
}

func TestOnAuthenticatedHost(t *testing.T) {
	t.Parallel()
	m, _ := newTestManager(t)
	assert.True(t, m.onAuthenticatedHost(homeURL))
	assert.True(t, m.onAuthenticatedHost("https://site1.sbisec.co.jp"))
	assert.False(t, m.onAuthenticatedHost(postLoginURL))
	assert.False(t, m.onAuthenticatedHost("https://evil.example/?r=https://site1.sbisec.co.jp/"))
}

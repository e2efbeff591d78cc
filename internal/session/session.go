// Package session establishes an authenticated brokerage session on a
// browser page, reusing persisted cookies when they are still valid.
package session

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// State is a step of the login state machine.
type State string

const (
	StateNoSession           State = "no_session"
	StateRestoringSession    State = "restoring_session"
	StateAwaitingCredentials State = "awaiting_credentials"
	StateLoginSubmitted      State = "login_submitted"
	StateAwaitingDeviceAuth  State = "awaiting_device_auth"
	StateAuthenticated       State = "authenticated"
	StateLoginFailed         State = "login_failed"
	StateDeviceAuthTimeout   State = "device_auth_timeout"
	StateSiteUnreachable     State = "site_unreachable"
)

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateAuthenticated, StateLoginFailed, StateDeviceAuthTimeout, StateSiteUnreachable:
		return true
	}
	return false
}

// Credentials are the portal login.
type Credentials struct {
	Username string
	Password string
}

// Validate checks that both fields are present.
func (c Credentials) Validate() error {
	if c.Username == "" || c.Password == "" {
		return eris.New("session: username and password are required")
	}
	return nil
}

// Transition is one recorded state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Session is the outcome of Establish.
type Session struct {
	State State `json:"state"`
	// Restored is set when persisted cookies were reused without a login.
	Restored    bool         `json:"restored"`
	Transitions []Transition `json:"transitions"`

	now func() time.Time
}

func newSession(now func() time.Time) *Session {
	return &Session{State: StateNoSession, now: now}
}

// Authenticated reports whether the session reached its success state.
func (s *Session) Authenticated() bool {
	return s.State == StateAuthenticated
}

// Path returns the visited states in order, starting at StateNoSession.
func (s *Session) Path() []State {
	path := []State{StateNoSession}
	for _, t := range s.Transitions {
		path = append(path, t.To)
	}
	return path
}

func (s *Session) moveTo(to State) {
	t := Transition{From: s.State, To: to, At: s.now()}
	s.Transitions = append(s.Transitions, t)
	s.State = to
	zap.L().Info("session: transition", zap.String("from", string(t.From)), zap.String("to", string(t.To)))
}

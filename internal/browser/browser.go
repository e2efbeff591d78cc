// Package browser defines the browsing capability the scraper drives: one
// isolated page with navigation, form input, markup access and cookie
// state.
package browser

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Page is a single isolated browser tab. Implementations are not safe for
// concurrent use.
type Page interface {
	// Navigate loads url and waits for the document to start loading.
	Navigate(ctx context.Context, url string) error
	// WaitForLoad waits up to timeout for the document body to be ready.
	WaitForLoad(ctx context.Context, timeout time.Duration) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	// Count returns how many elements match selector. Zero is not an error.
	Count(ctx context.Context, selector string) (int, error)
	// Content returns the current document markup.
	Content(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	SaveState(ctx context.Context) (*State, error)
	RestoreState(ctx context.Context, state *State) error
	Close() error
}

// Launcher opens isolated pages. Pages from one Launcher share no cookies.
type Launcher interface {
	Open(ctx context.Context) (Page, error)
}

// Cookie is one browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// State is the persisted authentication state of a page.
type State struct {
	Cookies []Cookie `json:"cookies"`
}

// Marshal encodes the state as the session blob format.
func (s *State) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "browser: marshal state")
	}
	return b, nil
}

// ParseState decodes a session blob.
func ParseState(b []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, eris.Wrap(err, "browser: parse state")
	}
	return &s, nil
}

// Live returns the cookies that have not expired at now. Session cookies
// (no expiry) are always live.
func (s *State) Live(now time.Time) []Cookie {
	var out []Cookie
	for _, c := range s.Cookies {
		if c.Expires <= 0 || c.Expires > float64(now.Unix()) {
			out = append(out, c)
		}
	}
	return out
}

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/freshen/internal/browser"
	"github.com/v0xg/freshen/internal/locator"
	"github.com/v0xg/freshen/internal/wait"
)

// ErrProfileUnreachable is returned when the step budget runs out before
// the profile page is reached.
var ErrProfileUnreachable = errors.New("session: profile page not reached")

// LoginFailedError covers a login form that never appeared and a
// submission that never redirected to the profile. It is never retried:
// repeating a rejected password only risks locking the account.
type LoginFailedError struct {
	Reason string
	Err    error
}

func (e *LoginFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: login failed: %s: %v", e.Reason, e.Err)
	}
	return "session: login failed: " + e.Reason
}

func (e *LoginFailedError) Unwrap() error { return e.Err }

// Credentials are the account identifier and secret.
type Credentials struct {
	Username string
	Password string
}

// String keeps the secret out of logs.
func (c Credentials) String() string {
	return fmt.Sprintf("{%s ****}", c.Username)
}

// Options configures a Navigator.
type Options struct {
	ProfileURL string
	Markers    Markers

	// LoginFormTimeout bounds the wait for a visible username field.
	LoginFormTimeout time.Duration
	// RedirectTimeout bounds the wait for the profile URL after submitting.
	RedirectTimeout time.Duration
	// SettleDelay follows every explicit profile navigation; the page is
	// client-rendered and offers nothing to poll.
	SettleDelay  time.Duration
	PollInterval time.Duration
	// MaxSteps bounds classify/correct iterations in ReachProfile.
	MaxSteps int
}

func (o *Options) defaults() {
	if o.Markers == (Markers{}) {
		o.Markers = DefaultMarkers
	}
	if o.LoginFormTimeout <= 0 {
		o.LoginFormTimeout = 10 * time.Second
	}
	if o.RedirectTimeout <= 0 {
		o.RedirectTimeout = 10 * time.Second
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = 4
	}
}

// Navigator drives one page towards the authenticated profile.
type Navigator struct {
	page  browser.Page
	loc   *locator.Locator
	cat   *locator.Catalog
	creds Credentials
	opts  Options
	log   *zap.Logger
}

// New returns a Navigator for page.
func New(page browser.Page, loc *locator.Locator, cat *locator.Catalog, creds Credentials, opts Options, log *zap.Logger) *Navigator {
	opts.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Navigator{page: page, loc: loc, cat: cat, creds: creds, opts: opts, log: log}
}

// State classifies the page as it is right now.
func (n *Navigator) State(ctx context.Context) (State, error) {
	url, err := n.page.CurrentURL(ctx)
	if err != nil {
		return Unknown, err
	}
	text, err := n.page.PageText(ctx)
	if err != nil {
		return Unknown, err
	}
	st := Classify(url, text, n.opts.Markers)
	n.log.Debug("session state", zap.String("state", st.String()), zap.String("url", url), zap.Int("text_len", len(text)))
	if st == AtProfile && len(text) < n.opts.Markers.MinContent {
		n.log.Warn("page has little content, it may not be fully rendered",
			zap.Int("text_len", len(text)),
			zap.String("head", head(text, 200)))
	}
	return st, nil
}

// ReachProfile opens the profile URL and corrects course until the page
// classifies as the profile. Login is attempted at most once.
func (n *Navigator) ReachProfile(ctx context.Context) (State, error) {
	n.log.Info("navigating to profile", zap.String("url", n.opts.ProfileURL))
	if err := n.page.Navigate(ctx, n.opts.ProfileURL); err != nil {
		return Unknown, fmt.Errorf("session: open profile: %w", err)
	}

	loggedIn := false
	for step := 0; step < n.opts.MaxSteps; step++ {
		st, err := n.State(ctx)
		if err != nil {
			return Unknown, fmt.Errorf("session: classify: %w", err)
		}

		switch st {
		case AtProfile, Authenticated:
			return st, nil
		case AtLogin:
			if loggedIn {
				return st, &LoginFailedError{Reason: "still on the login page after submitting credentials"}
			}
			if err := n.Login(ctx); err != nil {
				return st, err
			}
			loggedIn = true
		default:
			n.log.Info("not on profile page", zap.String("state", st.String()))
		}

		if err := n.openProfile(ctx); err != nil {
			return Unknown, err
		}
	}
	return Unknown, fmt.Errorf("%w after %d steps", ErrProfileUnreachable, n.opts.MaxSteps)
}

func (n *Navigator) openProfile(ctx context.Context) error {
	n.log.Info("navigating to profile page explicitly")
	if err := n.page.Navigate(ctx, n.opts.ProfileURL); err != nil {
		return fmt.Errorf("session: open profile: %w", err)
	}
	return wait.Settle(ctx, n.opts.SettleDelay)
}

// Login fills and submits the login form on the current page, then waits
// for the redirect to the profile route.
func (n *Navigator) Login(ctx context.Context) error {
	n.log.Info("attempting to log in", zap.String("username", n.creds.Username))

	user, err := n.loc.Locate(ctx, n.page, n.cat.UsernameTarget(n.opts.LoginFormTimeout))
	if err != nil {
		return &LoginFailedError{Reason: "login form not found", Err: err}
	}
	if err := fill(user, n.creds.Username); err != nil {
		return &LoginFailedError{Reason: "username field rejected input", Err: err}
	}

	pass, err := n.loc.Locate(ctx, n.page, n.cat.PasswordTarget())
	if err != nil {
		return &LoginFailedError{Reason: "password field not found", Err: err}
	}
	if err := fill(pass, n.creds.Password); err != nil {
		return &LoginFailedError{Reason: "password field rejected input", Err: err}
	}

	submit, err := n.loc.Locate(ctx, n.page, n.cat.SubmitTarget())
	if err != nil {
		return &LoginFailedError{Reason: "login control not found", Err: err}
	}
	if err := n.loc.Activate(ctx, n.page, submit); err != nil {
		return &LoginFailedError{Reason: "login control rejected click", Err: err}
	}
	n.log.Info("credentials submitted, waiting for redirect")

	// A URL read issued mid-navigation can block; keep it inside the
	// redirect budget too.
	rctx, cancel := context.WithTimeout(ctx, n.opts.RedirectTimeout)
	defer cancel()
	err = wait.Until(rctx, n.opts.RedirectTimeout, n.opts.PollInterval, func() (bool, error) {
		url, err := n.page.CurrentURL(rctx)
		if err != nil {
			// Mid-navigation reads fail; keep polling.
			return false, nil
		}
		return strings.Contains(url, n.opts.Markers.Profile), nil
	})
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = wait.ErrTimeout
	}
	if err != nil {
		return &LoginFailedError{Reason: "no redirect to the profile page", Err: err}
	}
	n.log.Info("login successful")
	return nil
}

func fill(el browser.Element, text string) error {
	if err := el.Clear(); err != nil {
		return err
	}
	return el.SendKeys(text)
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

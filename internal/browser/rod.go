package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// Options configures the Chrome session.
type Options struct {
	Headless    bool
	Bin         string // Chrome/Chromium binary; looked up when empty
	UserDataDir string // profile directory reused across runs to keep cookies
	UserAgent   string
	Width       int
	Height      int
	// ActionTimeout bounds every single CDP round trip.
	ActionTimeout time.Duration
}

func (o *Options) defaults() {
	if o.Width == 0 {
		o.Width = 1920
	}
	if o.Height == 0 {
		o.Height = 1080
	}
	if o.ActionTimeout == 0 {
		o.ActionTimeout = 30 * time.Second
	}
}

// Session is a launched Chrome with a single stealth page. It implements Page.
type Session struct {
	opts     Options
	log      *zap.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	quitOnce sync.Once
	quitErr  error
}

// Launch starts Chrome and opens one stealth page.
func Launch(ctx context.Context, opts Options, log *zap.Logger) (*Session, error) {
	opts.defaults()
	if log == nil {
		log = zap.NewNop()
	}

	bin := opts.Bin
	if bin == "" {
		bin, _ = launcher.LookPath()
	}

	l := launcher.New().Context(ctx).Headless(opts.Headless).
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-features", "IsolateOrigins,site-per-process").
		Set("window-size", fmt.Sprintf("%d,%d", opts.Width, opts.Height))
	if bin != "" {
		l = l.Bin(bin)
	}
	if opts.UserDataDir != "" {
		l = l.UserDataDir(opts.UserDataDir)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	log.Debug("chrome launched", zap.String("control_url", u), zap.Bool("headless", opts.Headless))

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	s := &Session{opts: opts, log: log, launcher: l, browser: b}

	page, err := stealth.Page(b)
	if err != nil {
		_ = s.Quit()
		return nil, fmt.Errorf("browser: stealth page: %w", err)
	}
	s.page = page

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.Width,
		Height:            opts.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = s.Quit()
		return nil, fmt.Errorf("browser: viewport: %w", err)
	}

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			_ = s.Quit()
			return nil, fmt.Errorf("browser: user agent: %w", err)
		}
	}

	return s, nil
}

// Quit closes the page and the browser. A temporary profile is removed;
// a configured UserDataDir is kept. Safe to call more than once.
func (s *Session) Quit() error {
	s.quitOnce.Do(func() {
		if s.page != nil {
			_ = s.page.Close()
		}
		if s.browser != nil {
			s.quitErr = s.browser.Close()
		}
		if s.launcher != nil && s.opts.UserDataDir == "" {
			// Cleanup deletes the user data dir, only safe for the temporary one.
			s.launcher.Cleanup()
		}
	})
	return s.quitErr
}

func (s *Session) scoped(ctx context.Context) *rod.Page {
	return s.page.Context(ctx).Timeout(s.opts.ActionTimeout)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.scoped(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	return nil
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	res, err := s.scoped(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", fmt.Errorf("browser: current url: %w", err)
	}
	return res.Value.String(), nil
}

func (s *Session) PageText(ctx context.Context) (string, error) {
	res, err := s.scoped(ctx).Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", fmt.Errorf("browser: page text: %w", err)
	}
	return res.Value.String(), nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	html, err := s.scoped(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: html: %w", err)
	}
	return html, nil
}

func (s *Session) FindElement(ctx context.Context, q Query) (Element, error) {
	els, err := s.FindElements(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, q)
	}
	return els[0], nil
}

// FindElements returns every current match without waiting.
func (s *Session) FindElements(ctx context.Context, q Query) ([]Element, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	p := s.scoped(ctx)

	var (
		found rod.Elements
		err   error
	)
	switch q.By {
	case ByXPath:
		found, err = p.ElementsX(q.Value)
	default:
		found, err = p.Elements(cssFor(q))
	}
	if err != nil {
		return nil, fmt.Errorf("browser: find %s: %w", q, err)
	}
	return wrapAll(found), nil
}

func (s *Session) ExecuteScript(ctx context.Context, js string, target Element) error {
	var args []interface{}
	if target != nil {
		re, ok := target.(*rodElement)
		if !ok {
			return fmt.Errorf("browser: script target %T is not a rod element", target)
		}
		args = append(args, re.el.Object)
	}
	if _, err := s.scoped(ctx).Eval(js, args...); err != nil {
		return fmt.Errorf("browser: execute script: %w", err)
	}
	return nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := s.scoped(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

func cssFor(q Query) string {
	if q.By == ByID {
		return "#" + q.Value
	}
	return q.Value
}

func wrapAll(found rod.Elements) []Element {
	out := make([]Element, 0, len(found))
	for _, el := range found {
		out = append(out, &rodElement{el: el})
	}
	return out
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Visible() (bool, error) {
	return e.el.Visible()
}

func (e *rodElement) Enabled() (bool, error) {
	disabled, err := e.el.Property("disabled")
	if err != nil {
		return false, err
	}
	return !disabled.Bool(), nil
}

// Clear empties an input or textarea and fires an input event so
// framework bindings pick the change up.
func (e *rodElement) Clear() error {
	_, err := e.el.Eval(`() => {
		this.value = '';
		this.dispatchEvent(new Event('input', { bubbles: true }));
	}`)
	return err
}

func (e *rodElement) SendKeys(text string) error {
	return e.el.Input(text)
}

// clickTimeout bounds a direct click. rod's Click waits for the element to
// become interactable, which never happens under a persistent overlay.
const clickTimeout = 5 * time.Second

func (e *rodElement) Click() error {
	return directClick(
		func() error { _, err := e.el.Interactable(); return err },
		func() error {
			el := e.el.Timeout(clickTimeout)
			defer el.CancelTimeout()
			return el.Click(proto.InputMouseButtonLeft, 1)
		},
	)
}

// directClick fails at once when the element is covered by another node,
// leaving the caller to fall back to a script click. Any other
// interactability problem, such as being outside the viewport, is left to
// click, which scrolls first.
func directClick(interactable, click func() error) error {
	if err := interactable(); errors.Is(err, &rod.CoveredError{}) {
		return err
	}
	return click()
}

func (e *rodElement) HTML() (string, error) {
	return e.el.HTML()
}

func (e *rodElement) Attribute(name string) (string, error) {
	if name == "value" {
		v, err := e.el.Property("value")
		if err != nil {
			return "", err
		}
		if v.Nil() {
			return "", nil
		}
		return v.String(), nil
	}
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

func (e *rodElement) Top() (float64, error) {
	res, err := e.el.Eval(`() => this.getBoundingClientRect().top + window.scrollY`)
	if err != nil {
		return 0, err
	}
	return res.Value.Num(), nil
}

func (e *rodElement) Parent() (Element, error) {
	p, err := e.el.Parent()
	if err != nil {
		return nil, err
	}
	return &rodElement{el: p}, nil
}

func (e *rodElement) FindElements(q Query) ([]Element, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var (
		found rod.Elements
		err   error
	)
	switch q.By {
	case ByXPath:
		found, err = e.el.ElementsX(q.Value)
	default:
		found, err = e.el.Elements(cssFor(q))
	}
	if err != nil {
		return nil, err
	}
	return wrapAll(found), nil
}

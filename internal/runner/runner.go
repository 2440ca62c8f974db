// Package runner sequences one headline refresh from browser launch to
// notification and turns every way it can end into a single Result.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/freshen/internal/browser"
	"github.com/v0xg/freshen/internal/diag"
	"github.com/v0xg/freshen/internal/headline"
	"github.com/v0xg/freshen/internal/locator"
	"github.com/v0xg/freshen/internal/notify"
	"github.com/v0xg/freshen/internal/session"
	"github.com/v0xg/freshen/internal/wait"
)

// captureTimeout bounds failure capture, which runs on a context detached
// from the run's so an interrupted run still leaves evidence.
const captureTimeout = 15 * time.Second

// LaunchFunc opens the browser page a run owns.
type LaunchFunc func(ctx context.Context) (browser.Page, error)

// Timing holds the orchestrator's own waits and delays.
type Timing struct {
	EditWait  time.Duration
	FieldWait time.Duration
	SaveWait  time.Duration

	RenderDelay time.Duration // after reaching the profile
	EditorDelay time.Duration // after opening the editor
	SaveDelay   time.Duration // after saving
}

type Config struct {
	Launch      LaunchFunc
	Catalog     *locator.Catalog
	Credentials session.Credentials
	Session     session.Options
	Locator     locator.Options
	Headline    headline.Options
	Timing      Timing

	// Snapshot saves a screenshot right before the edit control search.
	Snapshot       bool
	ThumbnailWidth uint
	Recorder       *diag.Recorder
	Notifier       notify.Notifier
	Log            *zap.Logger
}

// Result is the outcome of one run.
type Result struct {
	OldValue string
	NewValue string
	Err      error
	// DiagnosticsRequested is false only for failures evidence cannot
	// explain, i.e. a rejected login.
	DiagnosticsRequested bool
	Artifacts            []string
}

func (r Result) Success() bool { return r.Err == nil }

type Runner struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config) *Runner {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewLog(log)
	}
	return &Runner{cfg: cfg, log: log}
}

// Run performs one refresh. The page is released on every path, exactly
// once, after any failure evidence has been captured.
func (r *Runner) Run(ctx context.Context) Result {
	r.log.Info("starting headline refresh")

	page, err := r.cfg.Launch(ctx)
	if err != nil {
		r.log.Error("browser launch failed", zap.Error(err))
		return Result{Err: fmt.Errorf("runner: launch browser: %w", err), DiagnosticsRequested: true}
	}
	defer func() {
		if err := page.Quit(); err != nil {
			r.log.Warn("browser quit failed", zap.Error(err))
		}
	}()

	res := r.guarded(ctx, page)
	if res.Success() {
		r.log.Info("update successful", zap.String("old", res.OldValue), zap.String("new", res.NewValue))
		r.notify(ctx, page, &res)
		return res
	}

	r.log.Error("update failed", zap.Error(res.Err))
	r.capture(ctx, page, &res)
	return res
}

// guarded converts a panic anywhere in the sequence into a failure.
func (r *Runner) guarded(ctx context.Context, page browser.Page) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("panic during run", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			res.Err = fmt.Errorf("runner: panic: %v", p)
			res.DiagnosticsRequested = true
		}
	}()

	change, err := r.refresh(ctx, page)
	res = Result{OldValue: change.Old, NewValue: change.New, Err: err}
	if err != nil {
		var lf *session.LoginFailedError
		res.DiagnosticsRequested = !errors.As(err, &lf)
	}
	return res
}

func (r *Runner) refresh(ctx context.Context, page browser.Page) (headline.Change, error) {
	t := r.cfg.Timing
	loc := locator.New(r.cfg.Locator, r.log.Named("locator"))
	nav := session.New(page, loc, r.cfg.Catalog, r.cfg.Credentials, r.cfg.Session, r.log.Named("session"))

	if _, err := nav.ReachProfile(ctx); err != nil {
		return headline.Change{}, err
	}
	r.log.Info("waiting for profile to render", zap.Duration("delay", t.RenderDelay))
	if err := wait.Settle(ctx, t.RenderDelay); err != nil {
		return headline.Change{}, err
	}
	// The profile may not be what it claims; re-reading after the render
	// delay logs the thin-content warning if so.
	if _, err := nav.State(ctx); err != nil {
		return headline.Change{}, fmt.Errorf("runner: classify: %w", err)
	}

	if r.cfg.Snapshot {
		r.record(ctx, page, nil, diag.BeforeEditSearch, false)
	}

	r.log.Info("searching for the headline edit control")
	edit, err := loc.Locate(ctx, page, r.cfg.Catalog.EditControlTarget(t.EditWait))
	if err != nil {
		r.logAnchorContext(ctx, page)
		return headline.Change{}, err
	}
	if err := loc.Activate(ctx, page, edit); err != nil {
		return headline.Change{}, fmt.Errorf("runner: open editor: %w", err)
	}
	if err := wait.Settle(ctx, t.EditorDelay); err != nil {
		return headline.Change{}, err
	}

	field, err := loc.Locate(ctx, page, r.cfg.Catalog.HeadlineFieldTarget(t.FieldWait))
	if err != nil {
		return headline.Change{}, err
	}
	hopts := r.cfg.Headline
	if hopts.Log == nil {
		hopts.Log = r.log.Named("headline")
	}
	change, err := headline.Apply(ctx, field, hopts)
	if err != nil {
		return change, err
	}
	if err := wait.Settle(ctx, hopts.TypeDelay); err != nil {
		return change, err
	}

	save, err := loc.Locate(ctx, page, r.cfg.Catalog.SaveControlTarget(t.SaveWait))
	if err != nil {
		return change, err
	}
	if err := loc.Activate(ctx, page, save); err != nil {
		return change, fmt.Errorf("runner: save: %w", err)
	}
	r.log.Info("clicked save")
	if err := wait.Settle(ctx, t.SaveDelay); err != nil {
		return change, err
	}
	return change, nil
}

// logAnchorContext shows the markup around the headline heading when the
// edit control next to it could not be found.
func (r *Runner) logAnchorContext(ctx context.Context, page browser.Page) {
	if ce := r.log.Check(zap.DebugLevel, "edit control search context"); ce != nil {
		html, ok := locator.AnchorContext(ctx, page, r.cfg.Catalog.EditControl.Anchors)
		if !ok {
			ce.Write(zap.Bool("anchor_found", false))
			return
		}
		ce.Write(zap.Bool("anchor_found", true), zap.String("anchor_parent", html))
	}
}

// capture applies the failure evidence policy: a screenshot for every
// requested failure, plus the raw page for unresolved elements.
func (r *Runner) capture(ctx context.Context, page browser.Page, res *Result) {
	if !res.DiagnosticsRequested {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()

	var nf *locator.ElementNotFoundError
	if errors.As(res.Err, &nf) {
		r.record(cctx, page, res, missingArtifact(nf.Target), false)
		r.record(cctx, page, res, diag.DebugPageSource, true)
		return
	}
	r.record(cctx, page, res, diag.ErrorScreenshot, false)
}

// record writes one artifact. Failures are logged and never change the
// run's result.
func (r *Runner) record(ctx context.Context, page browser.Page, res *Result, name string, dump bool) {
	rec := r.cfg.Recorder
	if !rec.Enabled() {
		return
	}
	var (
		path string
		err  error
	)
	if dump {
		path, err = rec.PageDump(ctx, page, name)
	} else {
		path, err = rec.Screenshot(ctx, page, name)
	}
	if err != nil {
		r.log.Warn("diagnostic capture failed", zap.String("artifact", name), zap.Error(err))
		return
	}
	if res != nil {
		res.Artifacts = append(res.Artifacts, path)
	}
}

func (r *Runner) notify(ctx context.Context, page browser.Page, res *Result) {
	var icon string
	if rec := r.cfg.Recorder; rec.Enabled() && r.cfg.ThumbnailWidth > 0 {
		path, err := rec.Thumbnail(ctx, page, diag.ProfileThumbnail, r.cfg.ThumbnailWidth)
		if err != nil {
			r.log.Debug("thumbnail failed", zap.Error(err))
		} else {
			icon = path
			res.Artifacts = append(res.Artifacts, path)
		}
	}

	if err := r.cfg.Notifier.Notify(notify.Updated(res.NewValue, icon)); err != nil {
		r.log.Warn("notification failed", zap.Error(err))
		return
	}
	r.log.Info("notification sent")
}

func missingArtifact(target string) string {
	if target == "edit control" {
		return diag.EditButtonMissing
	}
	return strings.ReplaceAll(target, " ", "_") + "_missing"
}

// Package locator resolves semantic targets ("the headline edit control",
// "the save button") to live elements on a page whose markup freshen does
// not control.
//
// A Target is an ordered cascade of strategies, most precise first. Each
// strategy either yields a visible element or reports no match, and the
// first match wins. Invisible nodes are never returned: the target site
// keeps hidden duplicates of most widgets in the DOM.
package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/freshen/internal/browser"
	"github.com/v0xg/freshen/internal/wait"
)

// Strategy is one resolution attempt. ok is false when nothing matched;
// err is reserved for failures that should stop the whole cascade, such as
// a cancelled context.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, page browser.Page) (el browser.Element, ok bool, err error)
}

// Target is a named cascade. With Wait > 0 the cascade is re-run until a
// pass succeeds or Wait elapses.
type Target struct {
	Name       string
	Strategies []Strategy
	Wait       time.Duration
}

// ElementNotFoundError means every strategy of a target came up empty.
type ElementNotFoundError struct {
	Target     string
	Strategies []string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("locator: %s not found (tried %s)", e.Target, strings.Join(e.Strategies, ", "))
}

// Options tunes a Locator.
type Options struct {
	// PollInterval is the delay between cascade passes of a waiting target.
	PollInterval time.Duration
	// ScrollSettle is slept between scrolling an element into view and
	// clicking it.
	ScrollSettle time.Duration
}

// Locator runs target cascades against a page.
type Locator struct {
	opts Options
	log  *zap.Logger
}

// New returns a Locator. A nil logger discards output.
func New(opts Options, log *zap.Logger) *Locator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Locator{opts: opts, log: log}
}

// Locate returns the first visible element produced by t's cascade.
func (l *Locator) Locate(ctx context.Context, page browser.Page, t Target) (browser.Element, error) {
	var (
		found  browser.Element
		winner string
		passes int
	)

	err := wait.Until(ctx, t.Wait, l.opts.PollInterval, func() (bool, error) {
		passes++
		for _, s := range t.Strategies {
			el, ok, err := s.Attempt(ctx, page)
			if err != nil {
				return false, err
			}
			if ok {
				found, winner = el, s.Name()
				return true, nil
			}
			l.log.Debug("strategy found nothing", zap.String("target", t.Name), zap.String("strategy", s.Name()))
		}
		return false, nil
	})

	switch {
	case err == nil:
		l.log.Debug("target resolved",
			zap.String("target", t.Name),
			zap.String("strategy", winner),
			zap.Int("passes", passes))
		return found, nil
	case errors.Is(err, wait.ErrTimeout):
		return nil, &ElementNotFoundError{Target: t.Name, Strategies: strategyNames(t.Strategies)}
	default:
		return nil, fmt.Errorf("locator: %s: %w", t.Name, err)
	}
}

func strategyNames(ss []Strategy) []string {
	names := make([]string, 0, len(ss))
	for _, s := range ss {
		names = append(names, s.Name())
	}
	return names
}

// visible treats a node whose visibility cannot be read, usually a stale
// handle, as invisible.
func visible(el browser.Element) bool {
	ok, err := el.Visible()
	return err == nil && ok
}

func clickable(el browser.Element) bool {
	if !visible(el) {
		return false
	}
	ok, err := el.Enabled()
	return err == nil && ok
}

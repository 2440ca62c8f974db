package locator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/v0xg/freshen/internal/browser"
	"github.com/v0xg/freshen/internal/wait"
)

const (
	scrollIntoViewJS = `(el) => el.scrollIntoView({ block: 'center' })`
	scriptClickJS    = `(el) => el.click()`
)

// InteractionError is a located element refusing an action. Err is the
// direct attempt; Fallback is the programmatic one, nil when it worked.
type InteractionError struct {
	Action   string
	Err      error
	Fallback error
}

func (e *InteractionError) Error() string {
	if e.Fallback != nil {
		return fmt.Sprintf("locator: %s rejected: %v; script fallback: %v", e.Action, e.Err, e.Fallback)
	}
	return fmt.Sprintf("locator: %s rejected: %v", e.Action, e.Err)
}

func (e *InteractionError) Unwrap() error { return e.Err }

// Activate centres el in the viewport, clicks it, and when the click is
// intercepted (sticky headers, overlays) clicks it from script instead.
// An error is returned only when both ways fail.
func (l *Locator) Activate(ctx context.Context, page browser.Page, el browser.Element) error {
	if err := page.ExecuteScript(ctx, scrollIntoViewJS, el); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.log.Debug("scroll into view failed", zap.Error(err))
	}
	if err := wait.Settle(ctx, l.opts.ScrollSettle); err != nil {
		return err
	}

	err := el.Click()
	if err == nil {
		return nil
	}

	ie := &InteractionError{Action: "click", Err: err}
	l.log.Info("direct click intercepted, using script click", zap.Error(err))
	if ferr := page.ExecuteScript(ctx, scriptClickJS, el); ferr != nil {
		ie.Fallback = ferr
		return ie
	}
	return nil
}

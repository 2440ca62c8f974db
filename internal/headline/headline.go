// Package headline computes and writes the toggled resume headline.
package headline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/freshen/internal/browser"
	"github.com/v0xg/freshen/internal/wait"
)

const mark = "."

// Toggle flips the trailing period of v. A value ending in one or more
// periods loses all of them; any other value, the empty string included,
// gains exactly one.
func Toggle(v string) string {
	if strings.HasSuffix(v, mark) {
		return strings.TrimRight(v, mark)
	}
	return v + mark
}

// Change is the before and after of one headline edit.
type Change struct {
	Old string
	New string
}

// Options configures Apply.
type Options struct {
	// TypeDelay separates clearing the field from typing into it. The
	// portal's editor re-renders on clear and drops keys sent too early.
	TypeDelay time.Duration
	Log       *zap.Logger
}

// Apply reads the field's live value, replaces it with its toggle and
// returns both. The field is expected to be a visible, enabled control.
func Apply(ctx context.Context, field browser.Element, opts Options) (Change, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	old, err := field.Attribute("value")
	if err != nil {
		return Change{}, fmt.Errorf("headline: read value: %w", err)
	}
	c := Change{Old: old, New: Toggle(old)}
	log.Info("current headline", zap.String("value", c.Old))

	if err := field.Clear(); err != nil {
		return c, fmt.Errorf("headline: clear: %w", err)
	}
	if err := wait.Settle(ctx, opts.TypeDelay); err != nil {
		return c, err
	}
	if err := field.SendKeys(c.New); err != nil {
		return c, fmt.Errorf("headline: type: %w", err)
	}
	log.Info("new headline", zap.String("value", c.New))
	return c, nil
}

// Preview is Toggle for a dry run; it reports what a run would write.
func Preview(v string) Change {
	return Change{Old: v, New: Toggle(v)}
}

func (c Change) String() string {
	return fmt.Sprintf("%q -> %q", c.Old, c.New)
}

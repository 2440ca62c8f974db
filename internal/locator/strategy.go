package locator

import (
	"context"
	"strings"

	"github.com/v0xg/freshen/internal/browser"
)

// DefaultMaxAnchors bounds how many matches of one anchor selector
// Contextual inspects.
const DefaultMaxAnchors = 10

// Contextual finds an anchor (usually a section heading) and then a
// companion control in the anchor's parent or grandparent. Keeping the
// companion search inside the anchor's lineage is what makes it precise.
type Contextual struct {
	Anchors    []browser.Query
	Companions []browser.Query
	MaxAnchors int
}

func (Contextual) Name() string { return "contextual" }

func (c Contextual) Attempt(ctx context.Context, page browser.Page) (browser.Element, bool, error) {
	maxAnchors := c.MaxAnchors
	if maxAnchors <= 0 {
		maxAnchors = DefaultMaxAnchors
	}

	for _, aq := range c.Anchors {
		anchors, err := page.FindElements(ctx, aq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			continue
		}
		for i, anchor := range anchors {
			if i == maxAnchors {
				break
			}
			if el, ok := c.companionOf(anchor); ok {
				return el, true, nil
			}
		}
	}
	return nil, false, nil
}

// companionOf searches the parent's candidates before the grandparent's.
// Inside one container selectors go in rank order, matches in document
// order.
func (c Contextual) companionOf(anchor browser.Element) (browser.Element, bool) {
	for _, container := range lineage(anchor, 2) {
		for _, q := range c.Companions {
			cands, err := container.FindElements(q)
			if err != nil {
				continue
			}
			for _, cand := range cands {
				if visible(cand) {
					return cand, true
				}
			}
		}
	}
	return nil, false
}

// AnchorContext returns the outer HTML of the first visible anchor's
// parent. It is what a companion selector has to match, so it is logged
// when the contextual search comes up empty.
func AnchorContext(ctx context.Context, page browser.Page, anchors []browser.Query) (string, bool) {
	for _, aq := range anchors {
		els, err := page.FindElements(ctx, aq)
		if err != nil {
			continue
		}
		for _, el := range els {
			if !visible(el) {
				continue
			}
			p, err := el.Parent()
			if err != nil || p == nil {
				continue
			}
			html, err := p.HTML()
			if err != nil {
				continue
			}
			return html, true
		}
	}
	return "", false
}

// lineage returns up to depth ancestors of el, nearest first.
func lineage(el browser.Element, depth int) []browser.Element {
	var out []browser.Element
	cur := el
	for i := 0; i < depth; i++ {
		p, err := cur.Parent()
		if err != nil || p == nil {
			break
		}
		out = append(out, p)
		cur = p
	}
	return out
}

// Global scans the whole document for anything resembling the target,
// preferring visible candidates above PreferAbove (document y, px). It is
// the lossy last resort.
type Global struct {
	Candidates  []browser.Query
	PreferAbove float64
}

func (Global) Name() string { return "global" }

func (g Global) Attempt(ctx context.Context, page browser.Page) (browser.Element, bool, error) {
	var shown []browser.Element
	for _, q := range g.Candidates {
		els, err := page.FindElements(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			continue
		}
		for _, el := range els {
			if visible(el) {
				shown = append(shown, el)
			}
		}
	}
	if len(shown) == 0 {
		return nil, false, nil
	}

	if g.PreferAbove > 0 {
		for _, el := range shown {
			if top, err := el.Top(); err == nil && top < g.PreferAbove {
				return el, true, nil
			}
		}
	}
	return shown[0], true, nil
}

// Ranked returns the first visible match in selector rank order. With
// RequireEnabled the match must also be enabled, i.e. clickable.
type Ranked struct {
	Selectors      []browser.Query
	RequireEnabled bool
}

func (Ranked) Name() string { return "ranked" }

func (r Ranked) Attempt(ctx context.Context, page browser.Page) (browser.Element, bool, error) {
	for _, q := range r.Selectors {
		els, err := page.FindElements(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			continue
		}
		for _, el := range els {
			if r.RequireEnabled && clickable(el) || !r.RequireEnabled && visible(el) {
				return el, true, nil
			}
		}
	}
	return nil, false, nil
}

// Scoped looks for a control inside visible modal-like containers.
type Scoped struct {
	Containers []browser.Query
	Controls   []browser.Query
}

func (Scoped) Name() string { return "scoped" }

func (s Scoped) Attempt(ctx context.Context, page browser.Page) (browser.Element, bool, error) {
	for _, cq := range s.Containers {
		containers, err := page.FindElements(ctx, cq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			continue
		}
		for _, container := range containers {
			if !visible(container) {
				continue
			}
			for _, q := range s.Controls {
				els, err := container.FindElements(q)
				if err != nil {
					continue
				}
				for _, el := range els {
					if visible(el) {
						return el, true, nil
					}
				}
			}
		}
	}
	return nil, false, nil
}

// Label matches visible elements by their trimmed text. Exact requires
// equality; otherwise the label only has to be contained.
type Label struct {
	Selector browser.Query
	Label    string
	Exact    bool
}

func (l Label) Name() string { return "label:" + l.Label }

func (l Label) Attempt(ctx context.Context, page browser.Page) (browser.Element, bool, error) {
	els, err := page.FindElements(ctx, l.Selector)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, nil
	}
	for _, el := range els {
		if !visible(el) {
			continue
		}
		text, err := el.Text()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if l.Exact && text == l.Label || !l.Exact && strings.Contains(text, l.Label) {
			return el, true, nil
		}
	}
	return nil, false, nil
}

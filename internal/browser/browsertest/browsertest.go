// Package browsertest provides an in-memory browser.Page for tests.
//
// The fake does not evaluate selectors. Tests register which nodes a query
// returns, at document level with Page.Add and below a node with Node.Add,
// and script how the page reacts to navigation and clicks through hooks.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/v0xg/freshen/internal/browser"
)

// Page is a scripted browser.Page.
type Page struct {
	URL  string
	Text string
	Doc  string

	// Redirects maps a navigated URL to the URL the page lands on.
	Redirects map[string]string
	// OnNavigate runs after every navigation with the landed URL.
	OnNavigate func(p *Page, url string)

	NavigateErr   error
	ScreenshotErr error
	HTMLErr       error
	ScriptErr     error

	Navigations []string
	Scripts     []string
	Screenshots int
	Quits       int

	matches map[browser.Query][]*Node
}

// NewPage returns an empty page at about:blank.
func NewPage() *Page {
	return &Page{URL: "about:blank", Redirects: map[string]string{}}
}

// Add registers nodes returned for q, appended in document order.
func (p *Page) Add(q browser.Query, nodes ...*Node) *Page {
	if p.matches == nil {
		p.matches = map[browser.Query][]*Node{}
	}
	p.matches[q] = append(p.matches[q], nodes...)
	return p
}

// Clear drops all registered nodes, as when the document is replaced.
func (p *Page) Clear() {
	p.matches = nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.Navigations = append(p.Navigations, url)
	landed := url
	if to, ok := p.Redirects[url]; ok {
		landed = to
	}
	p.URL = landed
	if p.OnNavigate != nil {
		p.OnNavigate(p, landed)
	}
	return nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) { return p.URL, ctx.Err() }
func (p *Page) PageText(ctx context.Context) (string, error)   { return p.Text, ctx.Err() }

func (p *Page) HTML(ctx context.Context) (string, error) {
	if p.HTMLErr != nil {
		return "", p.HTMLErr
	}
	return p.Doc, ctx.Err()
}

func (p *Page) FindElement(ctx context.Context, q browser.Query) (browser.Element, error) {
	els, err := p.FindElements(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", browser.ErrNotFound, q)
	}
	return els[0], nil
}

func (p *Page) FindElements(ctx context.Context, q browser.Query) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return toElements(p.matches[q]), nil
}

// ExecuteScript records js. A script containing "click()" activates the
// target node programmatically.
func (p *Page) ExecuteScript(ctx context.Context, js string, target browser.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Scripts = append(p.Scripts, js)
	if p.ScriptErr != nil {
		return p.ScriptErr
	}
	n, ok := target.(*Node)
	if target != nil && !ok {
		return fmt.Errorf("browsertest: script target %T", target)
	}
	if n != nil && strings.Contains(js, "click()") {
		n.ScriptClicks++
		if n.OnClick != nil {
			n.OnClick()
		}
	}
	return nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	p.Screenshots++
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return PNG(), ctx.Err()
}

func (p *Page) Quit() error {
	p.Quits++
	return nil
}

// ErrDetached is returned by Node.Parent for a node without a parent.
var ErrDetached = errors.New("browsertest: node has no parent")

// Node is a scripted browser.Element.
type Node struct {
	Name     string
	Label    string // text content
	Value    string
	Hidden   bool
	Disabled bool
	Y        float64
	Markup   string // outer HTML

	ClickErr error
	// OnClick runs on a successful direct click or a scripted one.
	OnClick func()

	Clicks       int
	ScriptClicks int
	Cleared      int
	Typed        []string

	parent   *Node
	children map[browser.Query][]*Node
}

// NewNode returns a visible node named name.
func NewNode(name string) *Node {
	return &Node{Name: name}
}

// Under sets n's parent and returns n.
func (n *Node) Under(parent *Node) *Node {
	n.parent = parent
	return n
}

// Add registers nodes returned by n.FindElements(q).
func (n *Node) Add(q browser.Query, nodes ...*Node) *Node {
	if n.children == nil {
		n.children = map[browser.Query][]*Node{}
	}
	n.children[q] = append(n.children[q], nodes...)
	return n
}

// Activated reports whether the node was clicked either way.
func (n *Node) Activated() bool { return n.Clicks+n.ScriptClicks > 0 }

func (n *Node) String() string { return n.Name }

func (n *Node) Visible() (bool, error) { return !n.Hidden, nil }
func (n *Node) Enabled() (bool, error) { return !n.Disabled, nil }

func (n *Node) Clear() error {
	n.Cleared++
	n.Value = ""
	return nil
}

func (n *Node) SendKeys(text string) error {
	n.Typed = append(n.Typed, text)
	n.Value += text
	return nil
}

func (n *Node) Click() error {
	if n.ClickErr != nil {
		return n.ClickErr
	}
	n.Clicks++
	if n.OnClick != nil {
		n.OnClick()
	}
	return nil
}

func (n *Node) Attribute(name string) (string, error) {
	if name == "value" {
		return n.Value, nil
	}
	return "", nil
}

func (n *Node) Text() (string, error) { return n.Label, nil }
func (n *Node) HTML() (string, error) { return n.Markup, nil }
func (n *Node) Top() (float64, error) { return n.Y, nil }

func (n *Node) Parent() (browser.Element, error) {
	if n.parent == nil {
		return nil, ErrDetached
	}
	return n.parent, nil
}

func (n *Node) FindElements(q browser.Query) ([]browser.Element, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return toElements(n.children[q]), nil
}

func toElements(nodes []*Node) []browser.Element {
	out := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	return out
}

// Package browser defines the narrow page/element contract the rest of
// freshen drives, and a Chrome implementation of it built on Rod.
package browser

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by FindElement when nothing matches the query.
var ErrNotFound = errors.New("browser: element not found")

// By names the selector dialect of a Query.
type By string

const (
	ByCSS   By = "css"
	ByXPath By = "xpath"
	ByID    By = "id"
	ByTag   By = "tag"
)

// Query is a single selector in a given dialect.
type Query struct {
	By    By     `yaml:"by" json:"by"`
	Value string `yaml:"value" json:"value"`
}

// CSS, XPath, ID and Tag build queries.
func CSS(v string) Query   { return Query{By: ByCSS, Value: v} }
func XPath(v string) Query { return Query{By: ByXPath, Value: v} }
func ID(v string) Query    { return Query{By: ByID, Value: v} }
func Tag(v string) Query   { return Query{By: ByTag, Value: v} }

func (q Query) String() string {
	return fmt.Sprintf("%s=%s", q.By, q.Value)
}

// Validate reports an unknown dialect or an empty value.
func (q Query) Validate() error {
	switch q.By {
	case ByCSS, ByXPath, ByID, ByTag:
	default:
		return fmt.Errorf("browser: unknown selector kind %q", q.By)
	}
	if q.Value == "" {
		return fmt.Errorf("browser: empty %s selector", q.By)
	}
	return nil
}

// Page is one browser tab. Implementations own the underlying session;
// Quit releases it.
type Page interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// PageText returns the rendered text of <body>.
	PageText(ctx context.Context) (string, error)
	// HTML returns the full serialized document.
	HTML(ctx context.Context) (string, error)
	FindElement(ctx context.Context, q Query) (Element, error)
	FindElements(ctx context.Context, q Query) ([]Element, error)
	// ExecuteScript evaluates js, a function expression such as
	// `(el) => el.click()`, passing target as its only argument.
	ExecuteScript(ctx context.Context, js string, target Element) error
	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	Quit() error
}

// Element is a live DOM node. Handles go stale after navigation, so
// callers should not keep them past the step that found them.
type Element interface {
	Visible() (bool, error)
	Enabled() (bool, error)
	Clear() error
	SendKeys(text string) error
	Click() error
	// Attribute returns the named attribute. "value" reads the live
	// property so edits made by scripts are seen.
	Attribute(name string) (string, error)
	Text() (string, error)
	// Top is the document-relative y of the element's bounding box.
	Top() (float64, error)
	Parent() (Element, error)
	FindElements(q Query) ([]Element, error)
	// HTML returns the node's outer HTML.
	HTML() (string, error)
}

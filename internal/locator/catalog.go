package locator

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/v0xg/freshen/internal/browser"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog holds the site-specific selector lists. It is data, not logic:
// the cascade shapes in Targets stay fixed while the strings change with
// the site.
type Catalog struct {
	EditControl   EditControlSelectors   `yaml:"edit_control"`
	HeadlineField HeadlineFieldSelectors `yaml:"headline_field"`
	SaveControl   SaveControlSelectors   `yaml:"save_control"`
	Login         LoginSelectors         `yaml:"login"`
}

type EditControlSelectors struct {
	Anchors     []browser.Query `yaml:"anchors"`
	Companions  []browser.Query `yaml:"companions"`
	Global      []browser.Query `yaml:"global"`
	PreferAbove float64         `yaml:"prefer_above"`
	MaxAnchors  int             `yaml:"max_anchors,omitempty"`
}

type HeadlineFieldSelectors struct {
	Selectors []browser.Query `yaml:"selectors"`
}

type SaveControlSelectors struct {
	Containers []browser.Query `yaml:"containers"`
	Controls   []browser.Query `yaml:"controls"`
	Fallback   []browser.Query `yaml:"fallback"`
	Label      string          `yaml:"label"`
}

type LoginSelectors struct {
	Username    []browser.Query `yaml:"username"`
	Password    []browser.Query `yaml:"password"`
	Submit      []browser.Query `yaml:"submit"`
	SubmitLabel string          `yaml:"submit_label"`
}

// DefaultCatalog returns the embedded Naukri selectors.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalogue from path, or the default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("locator: read catalog: %w", err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes and validates YAML catalogue data.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("locator: parse catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Marshal renders the catalogue back to YAML.
func (c *Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks that every list a target needs is present and every
// selector is well formed.
func (c *Catalog) Validate() error {
	lists := []struct {
		name string
		qs   []browser.Query
	}{
		{"edit_control.anchors", c.EditControl.Anchors},
		{"edit_control.companions", c.EditControl.Companions},
		{"edit_control.global", c.EditControl.Global},
		{"headline_field.selectors", c.HeadlineField.Selectors},
		{"save_control.fallback", c.SaveControl.Fallback},
		{"login.username", c.Login.Username},
		{"login.password", c.Login.Password},
		{"login.submit", c.Login.Submit},
	}

	var errs []error
	for _, l := range lists {
		if len(l.qs) == 0 {
			errs = append(errs, fmt.Errorf("%s: no selectors", l.name))
			continue
		}
		for i, q := range l.qs {
			if err := q.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("%s[%d]: %w", l.name, i, err))
			}
		}
	}
	for i, q := range c.SaveControl.Containers {
		if err := q.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("save_control.containers[%d]: %w", i, err))
		}
	}
	for i, q := range c.SaveControl.Controls {
		if err := q.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("save_control.controls[%d]: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("locator: invalid catalog: %w", err)
	}
	return nil
}

// EditControlTarget is the pencil icon of the resume headline widget: contextual
// search around the heading first, document-wide scan second.
func (c *Catalog) EditControlTarget(wait time.Duration) Target {
	return Target{
		Name: "edit control",
		Wait: wait,
		Strategies: []Strategy{
			Contextual{
				Anchors:    c.EditControl.Anchors,
				Companions: c.EditControl.Companions,
				MaxAnchors: c.EditControl.MaxAnchors,
			},
			Global{
				Candidates:  c.EditControl.Global,
				PreferAbove: c.EditControl.PreferAbove,
			},
		},
	}
}

// HeadlineFieldTarget is the textarea of the open editor; it must be
// clickable, not merely visible.
func (c *Catalog) HeadlineFieldTarget(wait time.Duration) Target {
	return Target{
		Name:       "headline field",
		Wait:       wait,
		Strategies: []Strategy{Ranked{Selectors: c.HeadlineField.Selectors, RequireEnabled: true}},
	}
}

// SaveControlTarget prefers a save button inside the editor modal, then
// document-wide selectors, then any visible button labelled like one.
func (c *Catalog) SaveControlTarget(wait time.Duration) Target {
	ss := []Strategy{}
	if len(c.SaveControl.Containers) > 0 && len(c.SaveControl.Controls) > 0 {
		ss = append(ss, Scoped{Containers: c.SaveControl.Containers, Controls: c.SaveControl.Controls})
	}
	ss = append(ss, Ranked{Selectors: c.SaveControl.Fallback})
	if c.SaveControl.Label != "" {
		ss = append(ss, Label{Selector: browser.Tag("button"), Label: c.SaveControl.Label})
	}
	return Target{Name: "save control", Wait: wait, Strategies: ss}
}

func (c *Catalog) UsernameTarget(wait time.Duration) Target {
	return Target{Name: "username field", Wait: wait, Strategies: []Strategy{Ranked{Selectors: c.Login.Username}}}
}

func (c *Catalog) PasswordTarget() Target {
	return Target{Name: "password field", Strategies: []Strategy{Ranked{Selectors: c.Login.Password}}}
}

func (c *Catalog) SubmitTarget() Target {
	ss := []Strategy{Ranked{Selectors: c.Login.Submit}}
	if c.Login.SubmitLabel != "" {
		ss = append(ss, Label{Selector: browser.Tag("button"), Label: c.Login.SubmitLabel})
	}
	return Target{Name: "login control", Strategies: ss}
}

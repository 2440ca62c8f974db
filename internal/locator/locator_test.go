package locator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/freshen/internal/browser"
	"github.com/v0xg/freshen/internal/browser/browsertest"
)

var (
	qHeading   = browser.XPath("//span[contains(text(), 'Resume Headline')]")
	qLoose     = browser.XPath("//*[contains(text(), 'Resume')]")
	qEdit      = browser.CSS(".edit")
	qIcon      = browser.XPath(".//i")
	qAnyEdit   = browser.CSS("[class*='edit']")
	qTextarea  = browser.Tag("textarea")
	qHeadlineI = browser.ID("resumeHeadlineTxt")
)

// widget builds heading -> parent -> grandparent and returns all three.
func widget() (heading, parent, grand *browsertest.Node) {
	grand = browsertest.NewNode("widget")
	parent = browsertest.NewNode("widget-head").Under(grand)
	heading = browsertest.NewNode("heading").Under(parent)
	return heading, parent, grand
}

func editTarget() Target {
	return Target{
		Name: "edit control",
		Strategies: []Strategy{
			Contextual{Anchors: []browser.Query{qHeading, qLoose}, Companions: []browser.Query{qEdit, qIcon}},
			Global{Candidates: []browser.Query{qAnyEdit}, PreferAbove: 1000},
		},
	}
}

func TestLocateCascadeOrdering(t *testing.T) {
	page := browsertest.NewPage()
	heading, parent, _ := widget()
	contextual := browsertest.NewNode("contextual-edit")
	parent.Add(qEdit, contextual)
	page.Add(qHeading, heading)

	global := browsertest.NewNode("global-edit")
	global.Y = 10
	page.Add(qAnyEdit, global)

	el, err := New(Options{}, nil).Locate(context.Background(), page, editTarget())
	require.NoError(t, err)
	assert.Same(t, contextual, el)
}

func TestLocateFallsBackToGlobal(t *testing.T) {
	page := browsertest.NewPage()
	heading, parent, _ := widget()
	parent.Add(qEdit, &browsertest.Node{Name: "hidden-edit", Hidden: true})
	page.Add(qHeading, heading)

	low := &browsertest.Node{Name: "low", Y: 2400}
	high := &browsertest.Node{Name: "high", Y: 320}
	page.Add(qAnyEdit, &browsertest.Node{Name: "invisible", Hidden: true, Y: 5}, low, high)

	el, err := New(Options{}, nil).Locate(context.Background(), page, editTarget())
	require.NoError(t, err)
	assert.Same(t, high, el, "candidate nearer the top wins")
}

func TestGlobalWithoutPositionalPreference(t *testing.T) {
	page := browsertest.NewPage()
	first := &browsertest.Node{Name: "first", Y: 2400}
	second := &browsertest.Node{Name: "second", Y: 1800}
	page.Add(qAnyEdit, first, second)

	t.Run("no candidate above the cut-off", func(t *testing.T) {
		el, ok, err := Global{Candidates: []browser.Query{qAnyEdit}, PreferAbove: 1000}.Attempt(context.Background(), page)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, first, el)
	})

	t.Run("cut-off disabled", func(t *testing.T) {
		page.Add(qAnyEdit, &browsertest.Node{Name: "top", Y: 1})
		el, ok, err := Global{Candidates: []browser.Query{qAnyEdit}}.Attempt(context.Background(), page)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, first, el)
	})
}

func TestContextualSearchOrder(t *testing.T) {
	t.Run("parent candidates before grandparent", func(t *testing.T) {
		page := browsertest.NewPage()
		heading, parent, grand := widget()
		inGrand := browsertest.NewNode("grand-edit")
		inParent := browsertest.NewNode("parent-icon")
		grand.Add(qEdit, inGrand)
		parent.Add(qIcon, inParent)
		page.Add(qHeading, heading)

		el, ok, err := Contextual{Anchors: []browser.Query{qHeading}, Companions: []browser.Query{qEdit, qIcon}}.
			Attempt(context.Background(), page)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, inParent, el)
	})

	t.Run("document order inside a container", func(t *testing.T) {
		page := browsertest.NewPage()
		heading, parent, _ := widget()
		a, b := browsertest.NewNode("a"), browsertest.NewNode("b")
		parent.Add(qEdit, a, b)
		page.Add(qHeading, heading)

		el, ok, err := Contextual{Anchors: []browser.Query{qHeading}, Companions: []browser.Query{qEdit}}.
			Attempt(context.Background(), page)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, a, el)
	})

	t.Run("later anchor selector when the first has no companion", func(t *testing.T) {
		page := browsertest.NewPage()
		bare, _, _ := widget()
		page.Add(qHeading, bare)

		loose, parent, _ := widget()
		want := browsertest.NewNode("edit")
		parent.Add(qEdit, want)
		page.Add(qLoose, loose)

		el, ok, err := Contextual{Anchors: []browser.Query{qHeading, qLoose}, Companions: []browser.Query{qEdit}}.
			Attempt(context.Background(), page)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, want, el)
	})

	t.Run("detached anchor yields nothing", func(t *testing.T) {
		page := browsertest.NewPage().Add(qHeading, browsertest.NewNode("orphan"))
		_, ok, err := Contextual{Anchors: []browser.Query{qHeading}, Companions: []browser.Query{qEdit}}.
			Attempt(context.Background(), page)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestAnchorContext(t *testing.T) {
	page := browsertest.NewPage()
	hidden, hiddenParent, _ := widget()
	hidden.Hidden = true
	hiddenParent.Markup = "<div>hidden</div>"
	heading, parent, _ := widget()
	parent.Markup = `<div class="widgetHead"><span>Resume Headline</span></div>`
	page.Add(qHeading, hidden, browsertest.NewNode("orphan"), heading)

	html, ok := AnchorContext(context.Background(), page, []browser.Query{qLoose, qHeading})
	require.True(t, ok)
	assert.Equal(t, parent.Markup, html)

	_, ok = AnchorContext(context.Background(), browsertest.NewPage(), []browser.Query{qHeading})
	assert.False(t, ok)
}

func TestVisibilityGate(t *testing.T) {
	page := browsertest.NewPage()
	hidden := &browsertest.Node{Name: "hidden", Hidden: true}
	shown := browsertest.NewNode("shown")
	page.Add(qHeadlineI, hidden)
	page.Add(qTextarea, shown)

	target := Target{
		Name:       "headline field",
		Strategies: []Strategy{Ranked{Selectors: []browser.Query{qHeadlineI, qTextarea}}},
	}
	el, err := New(Options{}, nil).Locate(context.Background(), page, target)
	require.NoError(t, err)
	assert.Same(t, shown, el)
}

func TestRankedRequireEnabled(t *testing.T) {
	page := browsertest.NewPage()
	disabled := &browsertest.Node{Name: "disabled", Disabled: true}
	enabled := browsertest.NewNode("enabled")
	page.Add(qTextarea, disabled, enabled)

	el, ok, err := Ranked{Selectors: []browser.Query{qTextarea}, RequireEnabled: true}.Attempt(context.Background(), page)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, enabled, el)

	el, ok, err = Ranked{Selectors: []browser.Query{qTextarea}}.Attempt(context.Background(), page)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, disabled, el)
}

func TestScopedAndLabel(t *testing.T) {
	qModal := browser.CSS(".lightbox")
	qSave := browser.CSS("button.blue-btn")
	qButton := browser.Tag("button")

	t.Run("scoped skips hidden containers", func(t *testing.T) {
		page := browsertest.NewPage()
		ghost := (&browsertest.Node{Name: "ghost-modal", Hidden: true}).Add(qSave, browsertest.NewNode("ghost-save"))
		modal := browsertest.NewNode("modal")
		save := browsertest.NewNode("save")
		modal.Add(qSave, save)
		page.Add(qModal, ghost, modal)

		el, ok, err := Scoped{Containers: []browser.Query{qModal}, Controls: []browser.Query{qSave}}.Attempt(context.Background(), page)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, save, el)
	})

	t.Run("label contains and exact", func(t *testing.T) {
		page := browsertest.NewPage()
		cancel := &browsertest.Node{Name: "cancel", Label: "Cancel"}
		hidden := &browsertest.Node{Name: "hidden", Label: "Save", Hidden: true}
		saveAll := &browsertest.Node{Name: "save-all", Label: " Save changes "}
		save := &browsertest.Node{Name: "save", Label: "Save"}
		page.Add(qButton, cancel, hidden, saveAll, save)

		el, ok, err := Label{Selector: qButton, Label: "Save"}.Attempt(context.Background(), page)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, saveAll, el)

		el, ok, err = Label{Selector: qButton, Label: "Save", Exact: true}.Attempt(context.Background(), page)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, save, el)
	})
}

func TestLocateNotFound(t *testing.T) {
	page := browsertest.NewPage()
	page.Add(qAnyEdit, &browsertest.Node{Name: "hidden", Hidden: true})

	_, err := New(Options{}, nil).Locate(context.Background(), page, editTarget())
	var nf *ElementNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "edit control", nf.Target)
	assert.Equal(t, []string{"contextual", "global"}, nf.Strategies)
	assert.Contains(t, err.Error(), "edit control not found")
}

func TestLocateWaitIsBounded(t *testing.T) {
	page := browsertest.NewPage()
	target := editTarget()
	target.Wait = 60 * time.Millisecond

	start := time.Now()
	_, err := New(Options{PollInterval: 5 * time.Millisecond}, nil).Locate(context.Background(), page, target)
	var nf *ElementNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLocateWaitsForLateElement(t *testing.T) {
	page := browsertest.NewPage()
	late := browsertest.NewNode("late")
	passes := 0
	target := Target{
		Name: "late",
		Wait: time.Second,
		Strategies: []Strategy{strategyFunc(func(ctx context.Context, p browser.Page) (browser.Element, bool, error) {
			passes++
			if passes < 3 {
				return nil, false, nil
			}
			return late, true, nil
		})},
	}

	el, err := New(Options{PollInterval: time.Millisecond}, nil).Locate(context.Background(), page, target)
	require.NoError(t, err)
	assert.Same(t, late, el)
	assert.Equal(t, 3, passes)
}

func TestLocateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	target := editTarget()
	target.Wait = time.Minute

	_, err := New(Options{}, nil).Locate(ctx, browsertest.NewPage(), target)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	var nf *ElementNotFoundError
	assert.False(t, errors.As(err, &nf))
}

func TestActivate(t *testing.T) {
	l := New(Options{}, nil)

	t.Run("direct click", func(t *testing.T) {
		page := browsertest.NewPage()
		btn := browsertest.NewNode("btn")
		require.NoError(t, l.Activate(context.Background(), page, btn))
		assert.Equal(t, 1, btn.Clicks)
		assert.Zero(t, btn.ScriptClicks)
		assert.Len(t, page.Scripts, 1, "only the scroll")
	})

	t.Run("intercepted click falls back to script", func(t *testing.T) {
		page := browsertest.NewPage()
		btn := &browsertest.Node{Name: "btn", ClickErr: errors.New("element click intercepted")}
		require.NoError(t, l.Activate(context.Background(), page, btn))
		assert.Zero(t, btn.Clicks)
		assert.Equal(t, 1, btn.ScriptClicks)
		require.Len(t, page.Scripts, 2)
		for _, js := range page.Scripts {
			assert.True(t, strings.HasPrefix(js, "(el) =>"), "script takes the element as its parameter: %s", js)
		}
	})

	t.Run("both fail", func(t *testing.T) {
		page := browsertest.NewPage()
		page.ScriptErr = errors.New("detached")
		btn := &browsertest.Node{Name: "btn", ClickErr: errors.New("element click intercepted")}
		err := l.Activate(context.Background(), page, btn)
		var ie *InteractionError
		require.ErrorAs(t, err, &ie)
		assert.EqualError(t, ie.Fallback, "detached")
		assert.Contains(t, err.Error(), "script fallback")
	})
}

type strategyFunc func(ctx context.Context, p browser.Page) (browser.Element, bool, error)

func (strategyFunc) Name() string { return "func" }

func (f strategyFunc) Attempt(ctx context.Context, p browser.Page) (browser.Element, bool, error) {
	return f(ctx, p)
}

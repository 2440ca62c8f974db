package headline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/freshen/internal/browser/browsertest"
)

func TestToggle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Java Developer", "Java Developer."},
		{"Java Developer.", "Java Developer"},
		{"Java Developer...", "Java Developer"},
		{"", "."},
		{".", ""},
		{"v1.2 engineer", "v1.2 engineer."},
		{"Senior. Engineer", "Senior. Engineer."},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Toggle(tt.in))
		})
	}
}

func TestToggleTwiceRestoresSingleMark(t *testing.T) {
	for _, v := range []string{"Java Developer", "Java Developer.", "", ".", "a.b"} {
		assert.Equal(t, v, Toggle(Toggle(v)), v)
	}
	// Runs of marks collapse and do not come back.
	assert.Equal(t, "x.", Toggle(Toggle("x...")))
}

func TestApply(t *testing.T) {
	field := browsertest.NewNode("headline")
	field.Value = "Java Developer."

	c, err := Apply(context.Background(), field, Options{TypeDelay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, Change{Old: "Java Developer.", New: "Java Developer"}, c)
	assert.Equal(t, "Java Developer", field.Value)
	assert.Equal(t, 1, field.Cleared)
	assert.Equal(t, []string{"Java Developer"}, field.Typed)
}

type stuckField struct {
	*browsertest.Node
}

func (stuckField) Clear() error { return errors.New("element is not interactable") }

func TestApplyClearFails(t *testing.T) {
	field := stuckField{browsertest.NewNode("headline")}
	field.Value = "Java Developer"

	c, err := Apply(context.Background(), field, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "headline: clear")
	assert.Equal(t, "Java Developer.", c.New)
	assert.Empty(t, field.Typed)
}

func TestApplyCancelledBeforeTyping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	field := browsertest.NewNode("headline")
	field.Value = "Java Developer"

	_, err := Apply(ctx, field, Options{TypeDelay: time.Second})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, field.Typed)
}

func TestPreview(t *testing.T) {
	c := Preview("Java Developer")
	assert.Equal(t, "Java Developer.", c.New)
	assert.Equal(t, `"Java Developer" -> "Java Developer."`, c.String())
}

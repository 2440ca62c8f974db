package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestUpdated(t *testing.T) {
	m := Updated("Java Developer", "/tmp/icon.png")
	assert.Equal(t, "Naukri Profile Updater", m.Title)
	assert.Equal(t, "Headline updated successfully!\nNew: Java Developer", m.Body)
	assert.Equal(t, "/tmp/icon.png", m.Icon)
}

func TestDesktop(t *testing.T) {
	var got []string
	d := &Desktop{send: func(title, message string, icon any) error {
		got = append(got, title, message, icon.(string))
		return nil
	}}
	require.NoError(t, d.Notify(Updated("x", "")))
	assert.Equal(t, []string{Title, "Headline updated successfully!\nNew: x", ""}, got)
}

func TestDesktopFailure(t *testing.T) {
	cause := errors.New("dbus: no session bus")
	d := &Desktop{send: func(string, string, any) error { return cause }}

	err := d.Notify(Updated("x", ""))
	var ne *NotificationError
	require.ErrorAs(t, err, &ne)
	assert.ErrorIs(t, err, cause)
}

func TestLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, NewLog(zap.New(core)).Notify(Updated("x", "")))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, Title, entries[0].Message)
	assert.Equal(t, "Headline updated successfully!\nNew: x", entries[0].ContextMap()["message"])
}

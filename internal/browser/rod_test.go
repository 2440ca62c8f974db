package browser

import (
	"errors"
	"testing"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
)

func TestDirectClick(t *testing.T) {
	offscreen := errors.New("element has no visible shape or outside the viewport")
	intercepted := errors.New("click intercepted")

	tests := []struct {
		name        string
		interactErr error
		clickErr    error
		wantClicked bool
		wantErr     error
	}{
		{name: "interactable", wantClicked: true},
		{name: "covered fails without clicking", interactErr: &rod.CoveredError{}, wantErr: &rod.CoveredError{}},
		{name: "offscreen still clicks", interactErr: offscreen, wantClicked: true},
		{name: "click error is returned", clickErr: intercepted, wantClicked: true, wantErr: intercepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clicked := false
			err := directClick(
				func() error { return tt.interactErr },
				func() error { clicked = true; return tt.clickErr },
			)
			assert.Equal(t, tt.wantClicked, clicked)
			if tt.wantErr == nil {
				assert.Nil(t, err)
				return
			}
			// CoveredError cannot be printed without a live element, so
			// compare through errors.Is only.
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

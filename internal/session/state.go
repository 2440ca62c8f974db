// Package session classifies where the browser is in the portal's
// login/profile flow and drives it to the authenticated profile page.
package session

import "strings"

// State is the session's location as derived from the current URL and the
// rendered text. It is recomputed after every navigation; never cache it.
type State int

const (
	Unknown State = iota
	AtLogin
	AtHomepage
	// AtProfile is assumed whenever neither the login nor the homepage
	// marker is present. It is a precondition for locating elements, not
	// proof that the profile rendered.
	AtProfile
	// Authenticated is AtProfile on the profile route with enough rendered
	// content to be a real profile page.
	Authenticated
)

func (s State) String() string {
	switch s {
	case AtLogin:
		return "at-login"
	case AtHomepage:
		return "at-homepage"
	case AtProfile:
		return "at-profile"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// OnProfile reports whether s is a terminal state of ReachProfile.
func (s State) OnProfile() bool {
	return s == AtProfile || s == Authenticated
}

// Markers are the URL fragments that identify each route.
type Markers struct {
	Login    string
	Homepage string
	Profile  string
	// MinContent is the rendered text length below which a profile route
	// is considered not (yet) rendered.
	MinContent int
}

// DefaultMarkers match naukri.com.
var DefaultMarkers = Markers{
	Login:      "login",
	Homepage:   "mnjuser/homepage",
	Profile:    "mnjuser/profile",
	MinContent: 500,
}

// Classify maps a URL and page text to a State. The login marker wins over
// everything, including page text. Anything that is neither login nor
// homepage is optimistically taken to be the profile.
func Classify(url, text string, m Markers) State {
	switch {
	case m.Login != "" && strings.Contains(url, m.Login):
		return AtLogin
	case m.Homepage != "" && strings.Contains(url, m.Homepage):
		return AtHomepage
	case url == "" || url == "about:blank":
		return Unknown
	case m.Profile != "" && strings.Contains(url, m.Profile) && len(text) >= m.MinContent:
		return Authenticated
	default:
		return AtProfile
	}
}

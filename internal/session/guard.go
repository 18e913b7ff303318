// Package session decides how a client should react when its cached idea of
// being signed in disagrees with the server.
package session

import "strings"

// State is either side's view of whether the caller is signed in.
type State bool

const (
	Authenticated   State = true
	Unauthenticated State = false
)

// Action is what the client must do next.
type Action string

const (
	ActionProceed       Action = "proceed"
	ActionRedirectLogin Action = "redirect_login"
	ActionOutOfSync     Action = "session_out_of_sync"
)

type Decision struct {
	Action             Action `json:"action"`
	RefreshLocalBelief bool   `json:"refresh_local_belief"`
	RedirectTo         string `json:"redirect_to,omitempty"`
	Message            string `json:"message,omitempty"`
}

// Guard maps {local belief, server verdict} to a Decision. It never answers a
// disagreement with a redirect, so a redirect loop cannot form.
type Guard struct {
	LoginURL string
}

func NewGuard(loginURL string) *Guard {
	if loginURL == "" {
		loginURL = "/login"
	}
	return &Guard{LoginURL: loginURL}
}

func (g *Guard) Decide(local, verdict State) Decision {
	switch {
	case verdict == Authenticated:
		return Decision{Action: ActionProceed, RefreshLocalBelief: local != verdict}
	case local == Unauthenticated:
		return Decision{Action: ActionRedirectLogin, RedirectTo: g.LoginURL}
	default:
		return Decision{
			Action:  ActionOutOfSync,
			Message: "Your session is out of sync. Refresh the page or sign in again.",
		}
	}
}

// ParseState reads a client-reported belief such as an X-Local-Auth header.
// Anything unrecognised counts as unauthenticated.
func ParseState(v string) State {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "authenticated":
		return Authenticated
	}
	return Unauthenticated
}

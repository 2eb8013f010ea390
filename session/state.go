package session

import (
	"fmt"

	"github.com/jrsteele09/bookclub-admin/auth"
	liberrors "github.com/jrsteele09/bookclub-admin/internal/errors"
)

// Phase is where the session is in its lifecycle.
type Phase int

const (
	Initializing Phase = iota
	Authenticating
	Authenticated
	Unauthenticated
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "initializing"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is a snapshot of the session. User is non-nil exactly when Phase is
// Authenticated.
type State struct {
	Phase Phase
	User  *auth.User
}

// IsAuthenticated reports whether protected content may be shown.
func (s State) IsAuthenticated() bool {
	return s.Phase == Authenticated && s.User != nil
}

// IsLoading reports whether the session outcome is not yet known.
func (s State) IsLoading() bool {
	return s.Phase == Initializing || s.Phase == Authenticating
}

func (s State) clone() State {
	return State{Phase: s.Phase, User: s.User.Clone()}
}

var transitions = map[Phase][]Phase{
	Initializing:    {Authenticating, Unauthenticated},
	Authenticating:  {Authenticated, Unauthenticated},
	Authenticated:   {Unauthenticated},
	Unauthenticated: {Authenticating, Unauthenticated},
}

// next validates a move from s to phase and returns the resulting state.
func (s State) next(phase Phase, user *auth.User) (State, error) {
	if phase == Unauthenticated {
		return State{Phase: Unauthenticated}, nil
	}
	allowed := false
	for _, p := range transitions[s.Phase] {
		if p == phase {
			allowed = true
			break
		}
	}
	if !allowed {
		return s, fmt.Errorf("[session.transition] %s -> %s: %w", s.Phase, phase, liberrors.ErrInvalidTransition)
	}
	switch {
	case phase == Authenticated && user == nil:
		return s, fmt.Errorf("[session.transition] %s without a user: %w", phase, liberrors.ErrInvalidTransition)
	case phase != Authenticated:
		user = nil
	}
	return State{Phase: phase, User: user.Clone()}, nil
}

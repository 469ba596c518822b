package authz

import "github.com/openlearn/sessionkit/core"

// Evaluator derives authorization booleans from the current session state.
// It is a pure read layer: no I/O, no error conditions, and no writes to the
// session store.
type Evaluator struct {
	sessions *core.Store
}

func NewEvaluator(sessions *core.Store) *Evaluator {
	return &Evaluator{sessions: sessions}
}

// IsAuthenticated reports whether a profile is present in the session state.
func (e *Evaluator) IsAuthenticated() bool {
	return e.sessions.Snapshot().Phase == core.PhaseAuthenticated
}

// IsAdmin reports whether the current profile's role carries admin standing.
// False when no profile is present.
func (e *Evaluator) IsAdmin() bool {
	st := e.sessions.Snapshot()
	if st.Phase != core.PhaseAuthenticated {
		return false
	}
	return IsAdminRole(st.Profile.Role)
}

// HasPermission reports whether the current profile's role grants the
// permission. False when no profile is present.
func (e *Evaluator) HasPermission(permission string) bool {
	st := e.sessions.Snapshot()
	if st.Phase != core.PhaseAuthenticated {
		return false
	}
	return RoleHasPermission(st.Profile.Role, permission)
}

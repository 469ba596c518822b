package authhttp

import (
	"context"
	"net/http"

	"github.com/openlearn/sessionkit/authz"
	"github.com/openlearn/sessionkit/core"
)

type profileCtxKey struct{}

// ProfileFrom returns the authenticated profile a guard stored on the
// request context.
func ProfileFrom(ctx context.Context) (core.Profile, bool) {
	p, ok := ctx.Value(profileCtxKey{}).(core.Profile)
	return p, ok
}

// guard resolves the session once per request and dispatches on its phase.
// While resolution is still pending it answers 503 with Retry-After rather
// than guessing; a failed session also answers 503 so the client can render
// the stored error.
func guard(sessions *core.Store, authorize func(core.Profile) (string, int, bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := sessions.Snapshot()
			switch st.Phase {
			case core.PhaseLoading:
				w.Header().Set("Retry-After", "1")
				sendErr(w, http.StatusServiceUnavailable, "session_pending")
				return
			case core.PhaseFailed:
				sendErr(w, http.StatusServiceUnavailable, "session_failed")
				return
			case core.PhaseUnauthenticated:
				unauthorized(w, "not_authenticated")
				return
			}
			if code, status, ok := authorize(*st.Profile); !ok {
				sendErr(w, status, code)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), profileCtxKey{}, *st.Profile)))
		})
	}
}

// RequireAuth admits any authenticated profile.
func RequireAuth(sessions *core.Store) func(http.Handler) http.Handler {
	return guard(sessions, func(core.Profile) (string, int, bool) {
		return "", 0, true
	})
}

// RequireAdmin admits profiles whose role carries admin standing.
func RequireAdmin(sessions *core.Store) func(http.Handler) http.Handler {
	return guard(sessions, func(p core.Profile) (string, int, bool) {
		if !authz.IsAdminRole(p.Role) {
			return "admin_role_required", http.StatusForbidden, false
		}
		return "", 0, true
	})
}

// RequireRole admits profiles holding any of the given role slugs. The
// rejection names the missing requirement instead of a generic forbidden.
func RequireRole(sessions *core.Store, roles ...string) func(http.Handler) http.Handler {
	return guard(sessions, func(p core.Profile) (string, int, bool) {
		for _, role := range roles {
			if p.Role == role {
				return "", 0, true
			}
		}
		return "role_required", http.StatusForbidden, false
	})
}

// RequirePermission admits profiles whose role grants the permission.
func RequirePermission(sessions *core.Store, permission string) func(http.Handler) http.Handler {
	return guard(sessions, func(p core.Profile) (string, int, bool) {
		if !authz.RoleHasPermission(p.Role, permission) {
			return "permission_required:" + permission, http.StatusForbidden, false
		}
		return "", 0, true
	})
}

package authhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/openlearn/sessionkit/authz"
	"github.com/openlearn/sessionkit/core"
	"github.com/openlearn/sessionkit/identity"
	memorystore "github.com/openlearn/sessionkit/storage/memory"
)

type fixture struct {
	svc      *core.Service
	provider *identity.MemoryProvider
	kv       *memorystore.KV
	docs     *memorystore.DocStore
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider: identity.NewMemoryProvider("native"),
		kv:       memorystore.NewKV(),
		docs:     memorystore.NewDocStore(),
	}
	svc, err := core.NewService(f.provider, core.Config{
		Documents: f.docs,
		Ephemeral: f.kv,
		ExternalOAuth: oauth2.Config{
			ClientID:    "client-1",
			RedirectURL: "http://app.local/auth/external/callback",
			Endpoint:    oauth2.Endpoint{AuthURL: "https://auth.example.com/authorize"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Close)
	f.svc = svc
	f.handler = NewService(svc, nil).Handler()
	return f
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func (f *fixture) post(path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	f.handler.ServeHTTP(w, r)
	return w
}

func TestExternalLoginRedirectsWithState(t *testing.T) {
	f := newFixture(t)

	w := f.get("/auth/external/login?return_to=/news/today")
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "auth.example.com", loc.Host)
	require.Equal(t, "code", loc.Query().Get("response_type"))
	require.NotEmpty(t, loc.Query().Get("state"))
}

func TestExternalLoginRejectsAbsoluteReturnTo(t *testing.T) {
	f := newFixture(t)
	w := f.get("/auth/external/login?return_to=https://evil.example/")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"invalid_return_to"}`, w.Body.String())
}

func TestExternalCallbackRoundTrip(t *testing.T) {
	f := newFixture(t)

	w := f.get("/auth/external/login?return_to=/news/today")
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")

	// The upstream redirect target authenticated the user and left a record.
	require.NoError(t, core.PutBridgeRecord(context.Background(), f.kv, core.BridgeRecord{
		SubjectID: "x1", Email: "x@ext.example", Name: "Xavier", Provider: "external",
	}))

	cb := f.get("/auth/external/callback?code=abc&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusFound, cb.Code)
	require.Equal(t, "/news/today", cb.Header().Get("Location"))

	sess := f.get("/auth/session")
	require.Equal(t, http.StatusOK, sess.Code)
	require.Contains(t, sess.Body.String(), `"phase":"authenticated"`)
	require.Contains(t, sess.Body.String(), `"x1"`)
}

func TestExternalCallbackRejectsForgedState(t *testing.T) {
	f := newFixture(t)

	w := f.get("/auth/external/login")
	require.Equal(t, http.StatusFound, w.Code)

	require.NoError(t, core.PutBridgeRecord(context.Background(), f.kv, core.BridgeRecord{
		SubjectID: "x1", Provider: "external",
	}))

	cb := f.get("/auth/external/callback?code=abc&state=forged")
	require.Equal(t, http.StatusBadRequest, cb.Code)
	require.JSONEq(t, `{"error":"invalid_state"}`, cb.Body.String())

	sess := f.get("/auth/session")
	require.Contains(t, sess.Body.String(), `"phase":"unauthenticated"`)
}

func TestExternalCallbackPropagatesProviderError(t *testing.T) {
	f := newFixture(t)
	cb := f.get("/auth/external/callback?error=access_denied")
	require.Equal(t, http.StatusBadRequest, cb.Code)
	require.JSONEq(t, `{"error":"access_denied"}`, cb.Body.String())
}

func TestPasswordSignUpAndSignIn(t *testing.T) {
	f := newFixture(t)

	w := f.post("/auth/signup", `{"email":"a@b.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"phase":"authenticated"`)

	require.NoError(t, f.svc.SignOut(context.Background()))

	w = f.post("/auth/signin", `{"email":"a@b.com","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.post("/auth/signin", `{"email":"a@b.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"phase":"authenticated"`)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := ProfileFrom(r.Context()); ok {
			writeJSON(w, http.StatusOK, map[string]string{"id": p.ID})
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuardsDistinguishRejections(t *testing.T) {
	f := newFixture(t)

	// Seed an existing plain-user profile, then sign in as it.
	_, err := f.docs.Create(context.Background(), core.CollectionProfiles,
		"u1", core.Profile{ID: "u1", Email: "a@b.com", Provider: "native", Role: authz.RoleUser})
	require.NoError(t, err)
	f.provider.SetPopupIdentity(identity.Assertion{SubjectID: "u1", Email: "a@b.com"})
	require.NoError(t, f.svc.PopupSignIn(context.Background()))

	sessions := f.svc.Sessions()
	run := func(mw func(http.Handler) http.Handler) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
		return w
	}

	w := run(RequireAuth(sessions))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"u1"`)

	w = run(RequireAdmin(sessions))
	require.Equal(t, http.StatusForbidden, w.Code)
	require.JSONEq(t, `{"error":"admin_role_required"}`, w.Body.String())

	w = run(RequirePermission(sessions, authz.PermManageUsers))
	require.Equal(t, http.StatusForbidden, w.Code)
	require.JSONEq(t, `{"error":"permission_required:users:manage"}`, w.Body.String())

	w = run(RequirePermission(sessions, authz.PermReadContent))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGuardsWhileUnauthenticatedAndLoading(t *testing.T) {
	f := newFixture(t)

	// Loading: the service has not been started in this store yet.
	pending := core.NewStore()
	w := httptest.NewRecorder()
	RequireAuth(pending)(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))

	// Unauthenticated after start.
	w = httptest.NewRecorder()
	RequireAuth(f.svc.Sessions())(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"not_authenticated"}`, w.Body.String())
}

func TestSignOutEndpoint(t *testing.T) {
	f := newFixture(t)
	w := f.post("/auth/signup", `{"email":"a@b.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.post("/auth/signout", "")
	require.Equal(t, http.StatusOK, w.Code)

	sess := f.get("/auth/session")
	require.Contains(t, sess.Body.String(), `"phase":"unauthenticated"`)
}

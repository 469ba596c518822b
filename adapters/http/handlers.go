package authhttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/openlearn/sessionkit/core"
	"github.com/openlearn/sessionkit/identity"
)

// Service exposes the session core over HTTP: the external OAuth redirect
// legs, session snapshot for UI, and the native sign-in/sign-out triggers.
type Service struct {
	core *core.Service
	log  *zap.Logger
}

func NewService(c *core.Service, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{core: c, log: log}
}

// Handler returns the auth route set:
//
//	GET  /auth/external/login     start the external provider redirect flow
//	GET  /auth/external/callback  return leg; state validated before anything else
//	GET  /auth/session            session snapshot for UI polling
//	POST /auth/signin             email/password sign-in
//	POST /auth/signup             email/password sign-up
//	POST /auth/signout            sign out of the native provider
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/external/login", s.handleExternalLoginGET)
	mux.HandleFunc("GET /auth/external/callback", s.handleExternalCallbackGET)
	mux.HandleFunc("GET /auth/session", s.handleSessionGET)
	mux.HandleFunc("POST /auth/signin", s.handlePasswordSignInPOST)
	mux.HandleFunc("POST /auth/signup", s.handlePasswordSignUpPOST)
	mux.HandleFunc("POST /auth/signout", s.handleSignOutPOST)
	return mux
}

func (s *Service) handleExternalLoginGET(w http.ResponseWriter, r *http.Request) {
	returnPath := r.URL.Query().Get("return_to")
	// Relative paths only; anything else would be an open redirect.
	if returnPath != "" && (!strings.HasPrefix(returnPath, "/") || strings.HasPrefix(returnPath, "//")) {
		badRequest(w, "invalid_return_to")
		return
	}
	authURL, err := s.core.Bridge().Initiate(r.Context(), returnPath)
	if err != nil {
		s.log.Error("external sign-in initiation failed", zap.Error(err))
		serverErr(w, "initiate_failed")
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Service) handleExternalCallbackGET(w http.ResponseWriter, r *http.Request) {
	if qErr := r.URL.Query().Get("error"); qErr != "" {
		badRequest(w, qErr)
		return
	}
	state := r.URL.Query().Get("state")
	if state == "" {
		badRequest(w, "invalid_request")
		return
	}
	// The code parameter belongs to the upstream exchange; no trust is
	// extended to it here, and none before the state check either way.
	returnPath, err := s.core.Bridge().CompleteFromCallback(r.Context(), state)
	if err != nil {
		if errors.Is(err, core.ErrStateMismatch) || errors.Is(err, core.ErrNoPendingState) {
			badRequest(w, "invalid_state")
			return
		}
		serverErr(w, "callback_failed")
		return
	}
	http.Redirect(w, r, returnPath, http.StatusFound)
}

type sessionResp struct {
	Phase   string        `json:"phase"`
	Profile *core.Profile `json:"profile,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func (s *Service) handleSessionGET(w http.ResponseWriter, r *http.Request) {
	_ = r
	st := s.core.Sessions().Snapshot()
	writeJSON(w, http.StatusOK, sessionResp{
		Phase:   string(st.Phase),
		Profile: st.Profile,
		Error:   st.Message,
	})
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeCredentials(r *http.Request) (credentialsReq, bool) {
	var req credentialsReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, false
	}
	req.Email = strings.TrimSpace(req.Email)
	return req, req.Email != "" && req.Password != ""
}

func (s *Service) handlePasswordSignInPOST(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(r)
	if !ok {
		badRequest(w, "invalid_request")
		return
	}
	if err := s.core.EmailPasswordSignIn(r.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			unauthorized(w, "invalid_credentials")
			return
		}
		serverErr(w, "signin_failed")
		return
	}
	s.handleSessionGET(w, r)
}

func (s *Service) handlePasswordSignUpPOST(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(r)
	if !ok {
		badRequest(w, "invalid_request")
		return
	}
	if err := s.core.EmailPasswordSignUp(r.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			sendErr(w, http.StatusConflict, "email_taken")
			return
		}
		serverErr(w, "signup_failed")
		return
	}
	s.handleSessionGET(w, r)
}

func (s *Service) handleSignOutPOST(w http.ResponseWriter, r *http.Request) {
	if err := s.core.SignOut(r.Context()); err != nil {
		serverErr(w, "signout_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "signed_out"})
}

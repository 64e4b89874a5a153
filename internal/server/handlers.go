package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"resume-hub/auth-service/internal/auth/service"
	sessionrepo "resume-hub/auth-service/internal/session/repository"
	"resume-hub/auth-service/internal/telemetry"
)

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type logoutRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type meResponse struct {
	UserID         string     `json:"user_id"`
	Email          string     `json:"email"`
	Name           string     `json:"name,omitempty"`
	SessionID      string     `json:"session_id"`
	ExpiresAt      time.Time  `json:"token_expires_at"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	res, err := s.auth.Login(r.Context(), req.Email, req.Password, req.RememberMe, service.ClientMeta{
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		s.countOp(r.Context(), "login", false)
		s.emitEvent(r.Context(), telemetry.EventLoginFailure, "", "", r)
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, service.ErrAccountDisabled):
			writeError(w, http.StatusForbidden, "account disabled")
		case errors.Is(err, sessionrepo.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "service unavailable")
		default:
			s.logger.Error("login failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	s.countOp(r.Context(), "login", true)
	s.emitEvent(r.Context(), telemetry.EventLogin, res.UserID, res.SessionID, r)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    res.ExpiresIn,
		SessionID:    res.SessionID,
		UserID:       res.UserID,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	res, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.countOp(r.Context(), "refresh", false)
		switch {
		case errors.Is(err, sessionrepo.ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, "service unavailable")
		case errors.Is(err, service.ErrInvalidToken),
			errors.Is(err, service.ErrWrongTokenType),
			errors.Is(err, service.ErrTokenRevoked),
			errors.Is(err, service.ErrTokenExpired),
			errors.Is(err, service.ErrUserUnavailable):
			// One generic denial; the reason is not leaked to the caller.
			writeError(w, http.StatusUnauthorized, "unauthorized")
		default:
			s.logger.Error("refresh failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	s.countOp(r.Context(), "refresh", true)
	s.emitEvent(r.Context(), telemetry.EventRefresh, res.UserID, res.SessionID, r)
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   res.ExpiresIn,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	// An empty or malformed body is fine; logout works with what it gets.
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.AccessToken == "" {
		req.AccessToken = bearerToken(r)
	}

	_ = s.auth.Logout(r.Context(), req.AccessToken, req.RefreshToken)

	s.countOp(r.Context(), "logout", true)
	s.emitEvent(r.Context(), telemetry.EventLogout, "", "", r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	res := meResponse{
		UserID:    id.User.ID,
		Email:     id.User.Email,
		Name:      id.User.Name,
		SessionID: id.Claims.SessionID,
		ExpiresAt: id.Claims.ExpiresAt.Time,
	}
	// Session activity is informational; a store miss does not fail the request.
	if s.sessions != nil {
		if sess, err := s.sessions.GetSession(r.Context(), id.Claims.SessionID); err == nil && sess != nil {
			at := sess.LastActivityAt
			res.LastActivityAt = &at
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// bearerToken returns the token from an Authorization: Bearer header, or "".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireAuth authenticates the bearer token and puts the identity on the
// request context. Every failure is the same 401 so callers learn nothing
// about why a token was rejected.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.gate.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			s.countOp(r.Context(), "authenticate", false)
			if errors.Is(err, sessionrepo.ErrUnavailable) {
				writeError(w, http.StatusServiceUnavailable, "service unavailable")
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		s.countOp(r.Context(), "authenticate", true)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

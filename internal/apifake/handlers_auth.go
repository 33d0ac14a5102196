package apifake

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/go-analytics-client/apimodel"
)

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"non_field_errors": {"Username and password are required."}})
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		u, ok := s.users[req.Username]
		if !ok || !checkPasswordHash(req.Password, u.PasswordHash) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
			return
		}

		access, refresh, err := s.issuePair(u.ID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		resp := map[string]any{"access": access, "refresh": refresh}
		if !s.omitLoginUser {
			resp["user"] = u.summary()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"username": {"This field is required."}})
			return
		}

		s.mu.Lock()
		_, taken := s.users[req.Username]
		s.mu.Unlock()
		if taken {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"username": {"A user with that username already exists."}})
			return
		}

		if _, err := s.AddUser(req.Username, req.Email, req.Password); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"username": {"A user with that username already exists."}})
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		u := s.users[req.Username]
		access, refresh, err := s.issuePair(u.ID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"user":    s.profileOf(u),
			"access":  access,
			"refresh": refresh,
		})
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req apimodel.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
			writeJSON(w, http.StatusBadRequest, map[string][]string{"refresh": {"This field is required."}})
			return
		}

		s.mu.Lock()
		delay := s.refreshDelay
		s.mu.Unlock()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if !s.verify(req.Refresh, "refresh") {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		userID, ok := s.refresh[req.Refresh]
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is blacklisted", "code": "token_not_valid"})
			return
		}

		access, err := s.sign(userID, "access", accessLifetime)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if !s.refreshIssuesRevoked {
			s.access[access] = userID
		}

		resp := apimodel.RefreshResponse{Access: access}
		if s.rotateRefresh {
			rotated, err := s.sign(userID, "refresh", refreshLifetime)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			delete(s.refresh, req.Refresh)
			s.refresh[rotated] = userID
			resp.Refresh = rotated
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.failLogout {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "logout unavailable"})
			return
		}

		var req apimodel.LogoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid token."})
			return
		}
		if req.RefreshToken != "" {
			if _, ok := s.refresh[req.RefreshToken]; !ok {
				writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid token."})
				return
			}
			delete(s.refresh, req.RefreshToken)
		}
		writeJSON(w, http.StatusOK, apimodel.Detail{Detail: "Successfully logged out."})
	}
}

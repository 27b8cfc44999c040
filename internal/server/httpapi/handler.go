package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/services"
)

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Phone:    u.Phone,
		Avatar:   u.Avatar,
		Roles:    models.NormalizeRoles(u.Roles),
		Verified: u.Verified,
	}
}

func (s *HTTPServer) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *HTTPServer) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := s.decode(w, r, &req); err != nil {
		return
	}

	s.logger.Info(r.Context(), "Registration request")

	u, err := s.auth.Register(r.Context(), services.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
		Roles:    req.Roles,
	})
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := s.decode(w, r, &req); err != nil {
		return
	}

	res, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		ID:           res.ID,
		Name:         res.Name,
		Email:        res.Email,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		Roles:        models.NormalizeRoles(res.Roles),
	})
}

func (s *HTTPServer) logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := s.decode(w, r, &req); err != nil {
		return
	}

	if err := s.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		s.fail(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := s.decode(w, r, &req); err != nil {
		return
	}

	pair, err := s.auth.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *HTTPServer) validateRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := s.decode(w, r, &req); err != nil {
		return
	}

	ok, err := s.auth.ValidateRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, ValidResponse{Valid: ok})
}

func (s *HTTPServer) sendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := s.decode(w, r, &req); err != nil {
		return
	}

	if err := s.auth.RequestEmailVerification(r.Context(), req.Email); err != nil {
		s.fail(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *HTTPServer) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := s.decode(w, r, &req); err != nil {
		return
	}

	ok, err := s.auth.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, ValidResponse{Valid: ok})
}

func (s *HTTPServer) changePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := s.decode(w, r, &req); err != nil {
		return
	}

	if err := s.auth.ChangePassword(r.Context(), req.Email, req.OldPassword, req.NewPassword); err != nil {
		s.fail(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) me(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	u, err := s.auth.Profile(r.Context(), p.UserID)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

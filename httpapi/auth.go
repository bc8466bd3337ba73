package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
)

const maxBodyBytes = 1 << 20

const (
	resetRequestedMessage = "If the email exists, a reset link has been sent"
	resetConfirmedMessage = "Password reset successfully"
)

// AuthRouter sets up the /auth routes.
func AuthRouter(engine *authcore.Engine, logger *slog.Logger) http.Handler {
	routes := &authRoutes{engine: engine, logger: logger}

	r := chi.NewRouter()
	r.Post("/register", routes.register)
	r.Post("/login", routes.login)
	r.Post("/google", routes.loginGoogle)
	r.Post("/refresh", routes.refresh)
	r.Post("/reset/request", routes.requestReset)
	r.Post("/reset/confirm", routes.confirmReset)
	r.With(middleware.RequireActiveAccount(engine)).Get("/me", routes.me)
	return r
}

type authRoutes struct {
	engine *authcore.Engine
	logger *slog.Logger
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type accountResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *authRoutes) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	account, err := a.engine.Register(r.Context(), authcore.RegisterRequest{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}

	const message = "User registered successfully"
	writeOK(w, http.StatusOK, message, map[string]string{
		"message": message,
		"user_id": account.ID,
	})
}

func (a *authRoutes) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := a.engine.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "Login successful", newTokenResponse(pair))
}

func (a *authRoutes) loginGoogle(w http.ResponseWriter, r *http.Request) {
	if !a.engine.ExternalLoginEnabled() {
		writeFailure(w, http.StatusServiceUnavailable, "Google login is not configured")
		return
	}

	var req googleLoginRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := a.engine.LoginExternal(r.Context(), req.IDToken)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "Google login successful", newTokenResponse(pair))
}

func (a *authRoutes) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := a.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "Token refreshed successfully", newTokenResponse(pair))
}

func (a *authRoutes) requestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}

	if err := a.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeOK(w, http.StatusOK, resetRequestedMessage, messageResponse{Message: resetRequestedMessage})
}

func (a *authRoutes) confirmReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !decode(w, r, &req) {
		return
	}

	if err := a.engine.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeOK(w, http.StatusOK, resetConfirmedMessage, messageResponse{Message: resetConfirmedMessage})
}

func (a *authRoutes) me(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeError(w, r, a.logger, authcore.ErrEngineNotReady)
		return
	}
	writeOK(w, http.StatusOK, "Current user", accountResponse{
		ID:        account.ID,
		Email:     account.Email,
		Username:  account.Username,
		IsActive:  account.Active,
		CreatedAt: account.CreatedAt,
	})
}

// decode reads a JSON body into dst, writing a 422 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeFailure(w, http.StatusUnprocessableEntity, "Invalid request body")
		return false
	}
	return true
}

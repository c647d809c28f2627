package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/inbound"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

type AuthHandler struct {
	authService inbound.AuthService
	logger      outbound.Logger
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserApiResponse struct {
	User  *model.UserResponse `json:"user"`
	Token string              `json:"token,omitempty"`
}

func NewAuthHandler(authService inbound.AuthService, logger outbound.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// SetupRoutes registers the authentication routes
func (h *AuthHandler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/login", h.Login).Methods("POST")
	router.HandleFunc("/api/auth/logout", h.Logout).Methods("POST")
	router.HandleFunc("/api/auth/me", h.GetProfile).Methods("GET")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode login request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password required", http.StatusBadRequest)
		return
	}

	user, token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		h.logger.Warn("Login failed", "username", req.Username, "error", err)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	h.logger.Info("User logged in", "username", user.Username)

	writeJSON(w, http.StatusOK, UserApiResponse{
		User:  user.ToResponse(),
		Token: token,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	if err := h.authService.Logout(user.Username); err != nil {
		h.logger.Error("Logout failed", "username", user.Username, "error", err)
		http.Error(w, "Logout failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, UserApiResponse{User: user.ToResponse()})
}

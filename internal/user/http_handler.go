package user

import (
	"net/http"
	"strings"

	"bookshelf/internal/apperr"
	"bookshelf/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

type registerReq struct {
	Name     string `json:"name" validate:"required,min=2,max=20"`
	Email    string `json:"email" validate:"required,email,max=50"`
	Password string `json:"password" validate:"required,min=8,max=64"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerResp struct {
	Message     string `json:"message"`
	ID          string `json:"id"`
	AccessToken string `json:"accessToken"`
}

type loginResp struct {
	Message     string `json:"message"`
	AccessToken string `json:"accessToken"`
}

// RegisterUser handles POST /users/register
// @Summary Register a new user
// @Description Create an account and return an access token
// @Tags users
// @Accept json
// @Produce json
// @Param request body registerReq true "Registration request"
// @Success 201 {object} registerResp
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Failure 500 {object} httpx.ErrorResponse
// @Router /users/register [post]
func (h *HTTPHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = NormalizeEmail(req.Email)

	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.WriteError(w, r, apperr.Validation("Invalid input", details...))
		return
	}

	u, token, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, registerResp{
		Message:     "User registered successfully",
		ID:          u.ID,
		AccessToken: token,
	})
}

// Login handles POST /users/login
// @Summary Log in
// @Tags users
// @Accept json
// @Produce json
// @Param request body loginReq true "Credentials"
// @Success 200 {object} loginResp
// @Failure 400 {object} httpx.ErrorResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Router /users/login [post]
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	req.Email = NormalizeEmail(req.Email)

	if details := httpx.ValidateStruct(req); len(details) > 0 {
		httpx.WriteError(w, r, apperr.Validation("Invalid input", details...))
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	httpx.JSON(w, http.StatusOK, loginResp{
		Message:     "Login successful",
		AccessToken: token,
	})
}

// GetCurrentUser handles GET /users/me
// @Summary Get current user
// @Tags users
// @Produce json
// @Security Bearer
// @Success 200 {object} httpx.SuccessResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Router /users/me [get]
func (h *HTTPHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.WriteError(w, r, apperr.Unauthorized("Authentication required"))
		return
	}

	u, err := h.service.GetByID(r.Context(), userID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			// token outlived its account
			httpx.WriteError(w, r, apperr.Unauthorized("Authentication required"))
			return
		}
		httpx.WriteError(w, r, err)
		return
	}

	httpx.JSONSuccess(w, map[string]any{"user": u})
}

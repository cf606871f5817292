package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskradar/taskradar/internal/domain"
	"github.com/taskradar/taskradar/internal/store"
)

// Handler serves signup/login/me.
type Handler struct {
	users  store.UserStore
	secret []byte
}

// NewHandler builds the auth handler.
func NewHandler(users store.UserStore, secret []byte) *Handler {
	return &Handler{users: users, secret: secret}
}

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"` // customer | provider
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers an account and returns a token.
func (h *Handler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and a password of at least 8 characters are required"})
	}
	role := domain.Role(req.Role)
	if role != domain.RoleCustomer && role != domain.RoleProvider {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be customer or provider"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to hash password"})
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
	}
	if err := h.users.CreateUser(c.Request().Context(), user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create account"})
	}

	token, err := IssueToken(h.secret, user.ID, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"token": token, "user": user})
}

// Login verifies credentials and returns a token.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	user, err := h.users.UserByEmail(c.Request().Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := IssueToken(h.secret, user.ID, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

// Me returns the authenticated account.
func (h *Handler) Me(c echo.Context) error {
	user, err := h.users.GetUser(c.Request().Context(), UserID(c))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "account not found"})
	}
	return c.JSON(http.StatusOK, user)
}

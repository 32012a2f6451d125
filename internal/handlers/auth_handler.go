package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/campus-stories-backend/internal/httpx"
	"github.com/noteduco342/campus-stories-backend/internal/service"
	"github.com/noteduco342/campus-stories-backend/internal/validation"
)

type AuthHandler struct {
	authService *service.AuthService
	sessions    *service.FeedSessions
}

func NewAuthHandler(authService *service.AuthService, sessions *service.FeedSessions) *AuthHandler {
	return &AuthHandler{authService: authService, sessions: sessions}
}

func setAuthCookies(c *fiber.Ctx, result *service.AuthResponse) {
	c.Cookie(&fiber.Cookie{
		Name:     "cs_access",
		Value:    result.AccessToken,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  time.Now().Add(15 * time.Minute),
	})
	c.Cookie(&fiber.Cookie{
		Name:     "cs_refresh",
		Value:    result.RefreshToken,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/api/auth",
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})
}

func clearAuthCookies(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{Name: "cs_access", Value: "", Path: "/", Expires: time.Now().Add(-time.Hour)})
	c.Cookie(&fiber.Cookie{Name: "cs_refresh", Value: "", Path: "/api/auth", Expires: time.Now().Add(-time.Hour)})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input service.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	input.Username = validation.NormalizeUsername(input.Username)
	if !validation.ValidateUsername(input.Username) {
		return httpx.BadRequest(c, "invalid_username", "Invalid username")
	}
	if !validation.ValidateEmail(input.Email) {
		return httpx.BadRequest(c, "invalid_email", "Invalid email")
	}
	if !validation.ValidatePassword(input.Password) {
		return httpx.BadRequest(c, "invalid_password", "Password too short")
	}

	result, err := h.authService.Register(input)
	if err != nil {
		return httpx.FromServiceError(c, err)
	}

	setAuthCookies(c, result)
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input service.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if input.Email == "" || input.Password == "" {
		return httpx.BadRequest(c, "missing_credentials", "Email and password are required")
	}

	result, err := h.authService.Login(input)
	if err != nil {
		return httpx.Unauthorized(c, "invalid_credentials", "Invalid email or password")
	}

	setAuthCookies(c, result)
	return c.JSON(result)
}

type refreshInput struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var input refreshInput
	_ = c.BodyParser(&input)
	if input.RefreshToken == "" {
		input.RefreshToken = c.Cookies("cs_refresh")
	}
	if input.RefreshToken == "" {
		return httpx.Unauthorized(c, "missing_refresh_token", "Missing refresh token")
	}

	result, err := h.authService.Refresh(input.RefreshToken)
	if err != nil {
		return httpx.Unauthorized(c, "invalid_refresh_token", "Invalid or expired refresh token")
	}

	setAuthCookies(c, result)
	return c.JSON(result)
}

// Logout revokes the refresh token and drops the caller's feed session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token := c.Cookies("cs_refresh")
	if token == "" {
		var input refreshInput
		_ = c.BodyParser(&input)
		token = input.RefreshToken
	}
	if err := h.authService.Logout(token); err != nil {
		return httpx.Internal(c, "logout_failed")
	}

	if userID, err := httpx.LocalUint(c, "userID"); err == nil {
		h.sessions.Drop(userID)
	}

	clearAuthCookies(c)
	return c.SendStatus(fiber.StatusNoContent)
}

// CSRFToken issues a double-submit token: the value goes out both as a
// cookie and in the body, and mutating requests echo it back in X-CS-CSRF.
func (h *AuthHandler) CSRFToken(c *fiber.Ctx) error {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return httpx.Internal(c, "csrf_generation_failed")
	}
	token := hex.EncodeToString(buf)

	c.Cookie(&fiber.Cookie{
		Name:     "cs_csrf",
		Value:    token,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
		Expires:  time.Now().Add(12 * time.Hour),
	})
	return c.JSON(fiber.Map{"csrf_token": token})
}

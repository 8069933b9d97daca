package handler

import (
	"crypto/subtle"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/anipipe/api/internal/auth"
	"github.com/anipipe/api/internal/config"
	"github.com/anipipe/api/internal/model"
	"github.com/anipipe/api/pkg/response"
)

// AuthHandler issues bearer tokens for the single configured user.
type AuthHandler struct {
	cfg       *config.AuthConfig
	validator *validator.Validate
}

func NewAuthHandler(cfg *config.AuthConfig, v *validator.Validate) *AuthHandler {
	return &AuthHandler{
		cfg:       cfg,
		validator: v,
	}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req model.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if h.cfg.Password == "" {
		return response.ServiceError(c, "Authentication is not configured")
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.Password)) == 1
	if !userOK || !passOK {
		return response.Unauthorized(c, "Invalid credentials")
	}

	expiration := time.Duration(h.cfg.JWTExpiration) * time.Hour
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	token, err := auth.GenerateToken(req.Username, h.cfg.JWTSecret, expiration)
	if err != nil {
		return response.ServiceError(c, "Failed to issue token")
	}

	return response.OK(c, model.LoginResponse{Success: true, Token: token})
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}

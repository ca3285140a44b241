// AngelaMos | 2026
// dto.go

package auth

import (
	"time"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/middleware"
)

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"    validate:"required,max=256"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type SSOHandoffRequest struct {
	Platform string `json:"platform" validate:"required,oneof=teacher student"`
}

type ForgotPasswordResponse struct {
	Message string `json:"message"`
	// ResetURL is only populated outside production.
	ResetURL string `json:"reset_url,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ClaimsResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Approved  bool   `json:"approved"`
	Tier      string `json:"tier"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type SessionResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        ClaimsResponse `json:"user"`
}

type SSOHandoffResponse struct {
	URL       string    `json:"url"`
	Platform  string    `json:"platform"`
	ExpiresAt time.Time `json:"expires_at"`
}

func ToClaimsResponse(c *middleware.SessionClaims) ClaimsResponse {
	return ClaimsResponse{
		ID:        c.UserID,
		Role:      c.Role,
		Approved:  c.Approved,
		Tier:      c.Tier,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

func toSessionResponse(s *Session) SessionResponse {
	return SessionResponse{
		AccessToken: s.Token,
		TokenType:   "Bearer",
		ExpiresAt:   s.ExpiresAt,
		User:        ToClaimsResponse(&s.Claims),
	}
}

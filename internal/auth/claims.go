// AngelaMos | 2026
// claims.go

package auth

import (
	"strings"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/middleware"
)

// BuildClaims projects a user onto the session claim set. Missing or
// unrecognised role and tier fall back to the least-privileged values.
func BuildClaims(u *UserInfo) middleware.SessionClaims {
	return normalizeClaims(middleware.SessionClaims{
		UserID:    u.ID,
		Role:      u.Role,
		Approved:  u.Approved,
		Tier:      u.Tier,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	})
}

func normalizeClaims(c middleware.SessionClaims) middleware.SessionClaims {
	c.Role = normalizeRole(c.Role)
	c.Tier = normalizeTier(c.Tier)
	return c
}

func normalizeRole(role string) string {
	switch role {
	case middleware.RoleStudent, middleware.RoleTeacher:
		return role
	default:
		return middleware.RoleStudent
	}
}

func normalizeTier(tier string) string {
	if tier == middleware.TierPremium {
		return tier
	}
	return middleware.TierFree
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

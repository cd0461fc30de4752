package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

/* ============================== JWT Claims ============================== */

// Claims is the session token payload issued by the identity provider.
type Claims struct {
	Sub  string `json:"sub"`  // identity-provider user id
	Role string `json:"role"` // "client" | "lawyer" | "admin"
	jwt.RegisteredClaims
}

// Locals keys set by RequireAuth.
const (
	LocalUserID = "userID"
	LocalRole   = "role"
)

// Dev-mode headers honoured when verification is disabled.
const (
	HeaderDevUser = "X-User-Id"
	HeaderDevRole = "X-User-Role"
)

/* ============================== Middleware ============================== */

// Verifier checks identity-provider session tokens.
type Verifier struct {
	secret   []byte
	disabled bool
}

func NewVerifier(secret string, disabled bool) *Verifier {
	return &Verifier{secret: []byte(secret), disabled: disabled}
}

// Parse validates a raw token and returns its claims.
func (v *Verifier) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Sub == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireAuth validates a Bearer token and injects userID and role into the
// context. With verification disabled it trusts the dev headers instead.
func (v *Verifier) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if v.disabled {
			if id := c.Get(HeaderDevUser); id != "" {
				c.Locals(LocalUserID, id)
				c.Locals(LocalRole, c.Get(HeaderDevRole))
			}
			return c.Next()
		}

		h := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(h, "Bearer ") {
			return fiber.ErrUnauthorized
		}
		claims, err := v.Parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			return fiber.ErrUnauthorized
		}

		c.Locals(LocalUserID, claims.Sub)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}

// UserID returns the authenticated external user id, or "" when unauthenticated.
func UserID(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalUserID).(string)
	return s
}

// Role returns the authenticated role, or "".
func Role(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalRole).(string)
	return s
}

// RequireRole ensures the authenticated user has one of roles.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) == "" {
			return fiber.ErrUnauthorized
		}
		r := Role(c)
		for _, want := range roles {
			if r == want {
				return c.Next()
			}
		}
		return fiber.ErrForbidden
	}
}

// Privileged reports whether the caller may act for any user: admins, and
// an unauthenticated dev context.
func Privileged(c *fiber.Ctx) bool {
	return UserID(c) == "" || Role(c) == "admin"
}

// Owns reports whether the caller may act for externalID.
func Owns(c *fiber.Ctx, externalID string) bool {
	return Privileged(c) || UserID(c) == externalID
}

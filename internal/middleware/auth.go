package middleware

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/localnerve/jam-build-formsdb/internal/config"
	"github.com/localnerve/jam-build-formsdb/internal/services"
	"github.com/localnerve/jam-build-formsdb/internal/types"
)

const principalKey = "principal"

// Auth resolves the request principal. Bearer JWTs serve API clients;
// everything else falls through to the Authorizer session cookie.
func Auth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if strings.HasPrefix(header, "Bearer ") && cfg.JWTSecret != "" {
			p, err := principalFromJWT(strings.TrimPrefix(header, "Bearer "), cfg.JWTSecret)
			if err != nil {
				return types.NewUnauthorized(fmt.Sprintf("Invalid token: %v", err), "auth.token")
			}
			c.Locals(principalKey, p)
			return c.Next()
		}

		session := c.Cookies("cookie_session")
		if session == "" {
			return types.NewUnauthorized("Authorizer cookie \"cookie_session\" not found", "auth.credentials")
		}

		if !services.IsAuthorizerInitialized() {
			if err := services.InitAuthorizer(cfg, c.Protocol(), c.Hostname()); err != nil {
				return types.NewInternal(fmt.Sprintf("Authorizer unavailable: %v", err), "auth.init")
			}
		}

		data, err := services.ValidateSession(session, nil)
		if err != nil {
			return types.NewUnauthorized(fmt.Sprintf("Invalid session: %v", err), "auth.session")
		}

		p, err := principalFromSession(data)
		if err != nil {
			return types.NewUnauthorized(fmt.Sprintf("Invalid session user: %v", err), "auth.session")
		}
		c.Locals(principalKey, p)
		return c.Next()
	}
}

// GetPrincipal returns the principal placed by Auth. Zero value when the
// route is not behind Auth.
func GetPrincipal(c *fiber.Ctx) services.Principal {
	if p, ok := c.Locals(principalKey).(services.Principal); ok {
		return p
	}
	return services.Principal{}
}

func principalFromJWT(tokenString, secret string) (services.Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return services.Principal{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return services.Principal{}, fmt.Errorf("invalid claims")
	}

	p := services.Principal{
		Roles:  claimStrings(claims["roles"]),
		Groups: claimStrings(claims["groups"]),
	}
	if uid, ok := claims["uid"].(string); ok {
		p.UserID = uid
	} else if sub, ok := claims["sub"].(string); ok {
		p.UserID = sub
	}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	if p.UserID == "" {
		return services.Principal{}, fmt.Errorf("token has no subject")
	}
	return p, nil
}

// principalFromSession maps the Authorizer user onto a principal. Session
// principals carry roles only; group membership is a token-client concept.
func principalFromSession(data map[string]interface{}) (services.Principal, error) {
	raw, err := json.Marshal(data["user"])
	if err != nil {
		return services.Principal{}, err
	}

	var user struct {
		ID    string   `json:"id"`
		Email string   `json:"email"`
		Roles []string `json:"roles"`
	}
	if err := json.Unmarshal(raw, &user); err != nil {
		return services.Principal{}, err
	}
	if user.ID == "" {
		return services.Principal{}, fmt.Errorf("session user has no id")
	}

	return services.Principal{
		UserID: user.ID,
		Email:  user.Email,
		Roles:  user.Roles,
	}, nil
}

func claimStrings(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

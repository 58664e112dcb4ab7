package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbukum/remworker/errors"
)

const claimsKey = "claims"

// AuthConfig enables bearer-token auth on /v1. An empty secret leaves the
// API open.
type AuthConfig struct {
	// Secret is the HS256 key tokens are signed with.
	Secret   string `yaml:"secret" mapstructure:"secret"`
	Issuer   string `yaml:"issuer" mapstructure:"issuer"`
	Audience string `yaml:"audience" mapstructure:"audience"`
}

func (c *AuthConfig) Enabled() bool { return c.Secret != "" }

func (c *AuthConfig) Validate() error {
	if c.Enabled() && len(c.Secret) < 32 {
		return errors.New("server.auth.secret must be at least 32 bytes")
	}
	return nil
}

// Claims identifies the caller. A token carrying a user_id may only touch
// that user's resources; one without it is a service token.
type Claims struct {
	gojwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
}

type authenticator struct {
	cfg AuthConfig
}

func (a *authenticator) parse(token string) (*Claims, error) {
	opts := []gojwt.ParserOption{gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()})}
	if a.cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, gojwt.WithAudience(a.cfg.Audience))
	}
	claims := &Claims{}
	_, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return []byte(a.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

func (a *authenticator) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(c, apperrors.Unauthorized("bearer token required"))
			return
		}
		claims, err := a.parse(raw)
		if err != nil {
			writeError(c, apperrors.Unauthorized("invalid token"))
			return
		}
		if uid := c.Param("userId"); uid != "" && claims.UserID != "" && claims.UserID != uid {
			writeError(c, apperrors.Forbidden("token is scoped to another user"))
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// SignToken issues an HS256 token for cfg. Used by tooling and tests.
func SignToken(cfg AuthConfig, claims Claims) (string, error) {
	if cfg.Issuer != "" && claims.Issuer == "" {
		claims.Issuer = cfg.Issuer
	}
	if cfg.Audience != "" && len(claims.Audience) == 0 {
		claims.Audience = gojwt.ClaimStrings{cfg.Audience}
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

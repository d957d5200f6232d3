package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Callbox/internal/adapters/signal"
	"github.com/dkeye/Callbox/internal/domain"
)

// Keys set on the gin context by IdentityMiddleware.
const (
	IdentityKey     = "identity"
	IdentityNameKey = "identity_name"
)

const (
	sessionIdentity = "identity"
	sessionName     = "identity_name"
)

var ErrMissingToken = errors.New("missing token")

// Claims issued by the external identity provider. Subject is the identity.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 tokens from the identity provider.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	if secret == "" {
		return nil
	}
	return &TokenVerifier{secret: []byte(secret)}
}

func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token without subject")
	}
	return claims, nil
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return c.Query("token")
}

// IdentityMiddleware resolves the verified identity of the request. A valid
// token wins and is remembered in the cookie session; without a token the
// session identity is used. With a nil verifier every request passes
// unauthenticated.
func IdentityMiddleware(v *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v == nil {
			c.Next()
			return
		}
		sess := sessions.Default(c)

		if raw := bearerToken(c); raw != "" {
			claims, err := v.Verify(raw)
			if err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("token rejected")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			sess.Set(sessionIdentity, claims.Subject)
			sess.Set(sessionName, claims.Name)
			if err := sess.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
			}
			c.Set(IdentityKey, claims.Subject)
			c.Set(IdentityNameKey, claims.Name)
			c.Next()
			return
		}

		if id, ok := sess.Get(sessionIdentity).(string); ok && id != "" {
			name, _ := sess.Get(sessionName).(string)
			c.Set(IdentityKey, id)
			c.Set(IdentityNameKey, name)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
	}
}

// VerifiedIdentity is the identity IdentityMiddleware resolved; zero when
// authentication is off.
func VerifiedIdentity(c *gin.Context) signal.Identity {
	return signal.Identity{
		UserID: domain.UserID(c.GetString(IdentityKey)),
		Name:   c.GetString(IdentityNameKey),
	}
}

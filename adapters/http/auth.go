package http

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/SVAnbarasan/ZeroByX/utils/log"
)

const (
	tokenIssuer  = "zerobyx"
	tokenSubject = "agent-chat"
)

// Auth issues and checks HS256 bearer tokens. Clients trade a static API
// key/secret pair for a token at /auth/token.
type Auth struct {
	secret    []byte
	apiKey    string
	apiSecret string
	expiry    time.Duration
	now       func() time.Time
}

type Claims struct {
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

func NewAuth(secret, apiKey, apiSecret string, expiry time.Duration) *Auth {
	return &Auth{
		secret:    []byte(secret),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		expiry:    expiry,
		now:       time.Now,
	}
}

// GenerateJWT creates a token for a client presenting valid API credentials.
func (a *Auth) GenerateJWT(c echo.Context) error {
	key := c.Request().Header.Get("X-API-Key")
	secret := c.Request().Header.Get("X-API-Secret")

	if a.apiKey == "" || !equal(key, a.apiKey) || !equal(secret, a.apiSecret) {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Invalid credentials"})
	}

	now := a.now()
	claims := &Claims{
		ClientID: key,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   tokenSubject,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Signing token failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to generate token"})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"token": token,
		"type":  "Bearer",
	})
}

// JWTMiddleware rejects requests without a valid bearer token. Browsers
// cannot set headers on a websocket handshake, so a "token" query parameter
// is accepted as well.
func (a *Auth) JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenString := c.QueryParam("token")
		if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
			tokenString = strings.TrimPrefix(header, "Bearer ")
			if tokenString == header {
				return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Invalid authorization format"})
			}
		}
		if tokenString == "" {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Missing authorization header"})
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.secret, nil
		}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(a.now))
		if err != nil || !token.Valid {
			log.WithCtx(c.Request().Context()).Info("Rejected token", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: "Invalid token"})
		}

		ctx := context.WithValue(c.Request().Context(), log.ClientIDKey, claims.ClientID)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

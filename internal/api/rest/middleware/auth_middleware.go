package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/Dhoini/Entitlement-microservice/pkg/res"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// ContextKey тип для ключей контекста во избежание коллизий.
type ContextKey string

const (
	// ContextUserIDKey ключ для хранения ID пользователя в контексте.
	ContextUserIDKey ContextKey = "userID"
	// ContextUserEmailKey ключ для email пользователя
	ContextUserEmailKey ContextKey = "userEmail"
	// ContextTokenExpiryKey момент истечения токена (exp), если он задан
	ContextTokenExpiryKey ContextKey = "tokenExpiry"

	// ScopeAdmin разрешает административные операции над чужими записями
	ScopeAdmin = "admin"

	authHeaderPrefix = "Bearer "
	accessTokenParam = "access_token"
)

type TokenValidator interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims claims токена. Scope - список через пробел.
type TokenClaims struct {
	UserEmail string `json:"email"`
	Scope     string `json:"scope"`
	jwt.RegisteredClaims
}

type JWTMiddleware struct {
	log       *logger.Logger
	validator TokenValidator
}

func NewJWTMiddleware(log *logger.Logger, validator TokenValidator) *JWTMiddleware {
	return &JWTMiddleware{
		log:       log,
		validator: validator,
	}
}

// RequireAuth пропускает запрос только с валидным токеном, у которого есть
// subject и, если заданы, одна из requiredScopes.
func (m *JWTMiddleware) RequireAuth(requiredScopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, errMsg := tokenFromRequest(c)
		if errMsg != "" {
			m.handleAuthError(c, http.StatusUnauthorized, errMsg)
			return
		}

		claims, err := m.validator.Validate(tokenString)
		if err != nil {
			m.handleAuthError(c, http.StatusUnauthorized, fmt.Sprintf("Token validation failed: %v", err))
			return
		}

		userID := claims.Subject
		if userID == "" {
			m.handleAuthError(c, http.StatusUnauthorized, "User ID (sub) missing in token")
			return
		}

		if len(requiredScopes) > 0 && !hasRequiredScope(claims.Scope, requiredScopes) {
			m.handleAuthError(c, http.StatusForbidden, "Insufficient token permissions")
			return
		}

		c.Set(string(ContextUserIDKey), userID)
		c.Set(string(ContextUserEmailKey), claims.UserEmail)
		if claims.ExpiresAt != nil {
			c.Set(string(ContextTokenExpiryKey), claims.ExpiresAt.Time)
		}
		m.log.Debugw("User authenticated via HTTP", "userID", userID)
		c.Next()
	}
}

// tokenFromRequest берет токен из заголовка Authorization. Браузер не может
// выставить заголовок для WebSocket, поэтому для upgrade-запросов токен
// принимается и из параметра access_token.
func tokenFromRequest(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if websocket.IsWebSocketUpgrade(c.Request) {
			if token := c.Query(accessTokenParam); token != "" {
				return token, ""
			}
		}
		return "", "Missing authorization token"
	}
	if !strings.HasPrefix(authHeader, authHeaderPrefix) {
		return "", "Authorization header must use Bearer scheme"
	}
	return strings.TrimPrefix(authHeader, authHeaderPrefix), ""
}

// UserID возвращает subject токена, установленный RequireAuth
func UserID(c *gin.Context) string {
	return c.GetString(string(ContextUserIDKey))
}

// UserEmail возвращает email из токена
func UserEmail(c *gin.Context) string {
	return c.GetString(string(ContextUserEmailKey))
}

// TokenExpiry возвращает exp токена. ok=false, если в токене нет exp.
func TokenExpiry(c *gin.Context) (time.Time, bool) {
	exp := c.GetTime(string(ContextTokenExpiryKey))
	return exp, !exp.IsZero()
}

func hasRequiredScope(tokenScope string, requiredScopes []string) bool {
	granted := strings.Fields(tokenScope)
	for _, required := range requiredScopes {
		for _, scope := range granted {
			if scope == required {
				return true
			}
		}
	}
	return false
}

func (m *JWTMiddleware) handleAuthError(c *gin.Context, status int, message string) {
	m.log.Warnw("HTTP Authentication failed", "path", c.Request.URL.Path, "error", message)
	code := domain.CodeUnauthenticated
	if status == http.StatusForbidden {
		code = domain.CodeUnauthorized
	}
	res.JsonResponse(c.Writer, res.ErrorResponse{
		Error: message,
		Code:  code,
	}, status)
	c.Abort()
}

// DefaultTokenValidator проверяет HMAC-подписанные токены общим секретом.
type DefaultTokenValidator struct {
	Secret []byte
}

func (v *DefaultTokenValidator) Validate(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.Secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, errors.New("malformed token")
		} else if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, errors.New("invalid token signature")
		} else if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, errors.New("token expired")
		} else {
			return nil, fmt.Errorf("invalid token: %w", err)
		}
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token claims")
}

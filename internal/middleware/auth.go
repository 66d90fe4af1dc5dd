package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"github.com/swust-xl/CampusPartner-sub001/internal/repository"
)

// ClaimOpenID token 中标识用户的 claim
const ClaimOpenID = "open_id"

// ErrMissingAuthHeader 定义一个自定义错误，用于表示缺少 Authorization 头
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth 返回一个 Gin 中间件：验证 JWT，并要求缓存中存在对应的登录会话。
// 验证通过后续期会话，并把 openId 以 "user_id" 写入上下文。
func Auth(jwtSecret string, sessions repository.SessionCache, sessionTTL time.Duration) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}
	if sessions == nil {
		panic("SessionCache cannot be nil for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			} else {
				logrus.WithError(err).Warn("Auth middleware: Malformed token format")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			}
			c.Abort()
			return
		}

		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("Auth middleware: Invalid token")
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) && validationError.Errors&jwt.ValidationErrorExpired != 0 {
				logCtx.Warn("Reason: Token is expired")
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		openID, ok := claims[ClaimOpenID].(string)
		if !ok || openID == "" {
			logrus.Errorf("Auth middleware: '%s' claim missing or not a string: %v", ClaimOpenID, claims[ClaimOpenID])
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token processing error: missing open_id"})
			c.Abort()
			return
		}
		logCtx := logrus.WithField("user_id", openID)

		// 会话被删除 (登出) 后 token 即失效
		if err := sessions.Touch(c.Request.Context(), openID, sessionTTL); err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				logCtx.Warn("Auth middleware: Session not found or expired")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired, please log in again"})
			} else {
				logCtx.WithError(err).Error("Auth middleware: Failed to refresh session")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Session lookup failed"})
			}
			c.Abort()
			return
		}

		c.Set("user_id", openID)
		logCtx.Debug("Auth middleware: User authenticated via JWT")
		c.Next()
	}
}

// extractToken 从 Gin 上下文中提取 Bearer Token
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

// validateToken 解析并验证 JWT token 字符串
func validateToken(tokenStr string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token or claims type")
}

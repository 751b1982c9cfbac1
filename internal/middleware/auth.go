package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/user/curtas/internal/utils"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"

	RoleAdmin = "admin"
)

// Claims JWT 声明，由外部认证服务签发
type Claims struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RequireAuth 必须登录
func RequireAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := extractClaims(c, jwtSecret)
		if err != nil {
			utils.AbortWithError(c, http.StatusUnauthorized, "Não autenticado")
			return
		}
		setClaims(c, claims, jwtSecret)
		c.Next()
	}
}

// OptionalAuth 可选登录，token 无效时按匿名处理
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := extractClaims(c, jwtSecret); err == nil {
			setClaims(c, claims, jwtSecret)
		}
		c.Next()
	}
}

// RequireAdmin 管理员权限，需放在 RequireAuth 之后
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			utils.AbortWithError(c, http.StatusForbidden, "Acesso restrito a administradores")
			return
		}
		c.Next()
	}
}

func setClaims(c *gin.Context, claims *Claims, jwtSecret string) {
	c.Set(ctxUserID, claims.UserID)
	c.Set("email", claims.Email)
	c.Set(ctxRole, claims.Role)

	// 滑动续期：有效期消耗过半时下发新 token
	if shouldRefresh(claims, time.Now()) {
		ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
		if token, err := GenerateToken(claims.UserID, claims.Email, claims.Role, jwtSecret, ttl); err == nil {
			c.Header("X-Refreshed-Token", token)
		}
	}
}

// extractClaims 优先 Authorization header，其次 token cookie
func extractClaims(c *gin.Context, jwtSecret string) (*Claims, error) {
	var tokenString string
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	} else if cookie, err := c.Cookie("token"); err == nil {
		tokenString = cookie
	}

	if tokenString == "" {
		return nil, jwt.ErrTokenMalformed
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// GetUserID 从上下文获取用户 ID（未登录返回 0）
func GetUserID(c *gin.Context) int {
	return c.GetInt(ctxUserID)
}

// IsAdmin 当前用户是否管理员
func IsAdmin(c *gin.Context) bool {
	return c.GetString(ctxRole) == RoleAdmin
}

// GenerateToken 生成 JWT，供测试和续期使用
func GenerateToken(userID int, email, role, jwtSecret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

func shouldRefresh(claims *Claims, now time.Time) bool {
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return false
	}
	total := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	return now.Sub(claims.IssuedAt.Time) > total/2
}

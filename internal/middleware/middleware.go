package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 上下文键
const (
	CtxRequestID   = "request_id"
	CtxUserID      = "user_id"
	CtxRoles       = "roles"
	CtxPermissions = "permissions"
	CtxClaims      = "claims"
)

// quietPaths 探针与指标抓取，成功时只记 Debug
var quietPaths = map[string]bool{
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// Logger 请求日志
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("bytes", c.Writer.Size()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(CtxRequestID)),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if uid := c.GetString(CtxUserID); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}
		if sid := c.Param("sid"); sid != "" {
			fields = append(fields, zap.String("session_id", sid))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()))
		}

		switch {
		case status >= 500:
			logger.Error("Server error", fields...)
		case status >= 400:
			logger.Warn("Client error", fields...)
		case quietPaths[c.Request.URL.Path]:
			logger.Debug("Request", fields...)
		default:
			logger.Info("Request", fields...)
		}
	}
}

// CORS 跨域。导出接口需要暴露 Content-Disposition 供前端取文件名
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestID 透传或生成请求ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// JWTClaims 用户令牌，由统一认证服务签发
type JWTClaims struct {
	UserID      string   `json:"uid"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"perms"`
	jwt.RegisteredClaims
}

// JWTAuth 校验 HS256 令牌。issuer 非空时同时校验 iss。
// 令牌优先取 Authorization 头，其次取 token 参数（浏览器直接下载导出文件时使用）。
func JWTAuth(secret, issuer string) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, 40100, "Authorization is required")
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc, opts...)
		if err != nil || !token.Valid {
			abort(c, http.StatusUnauthorized, 40102, "Invalid or expired token")
			return
		}
		if claims.UserID == "" {
			claims.UserID = claims.Subject
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRoles, claims.Roles)
		c.Set(CtxPermissions, claims.Permissions)
		c.Set(CtxClaims, claims)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// 装箱单权限
const (
	PermPackingRead  = "packing:read"
	PermPackingWrite = "packing:write"
)

// AdminRole 外贸管理员，通过所有角色检查
const AdminRole = "trade_admin"

// RequirePermission 权限检查。"*" 与 "packing:*" 形式的通配均可匹配。
// 拥有写权限即可读。
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, ok := stringsFromContext(c, CtxPermissions)
		if !ok {
			abort(c, http.StatusForbidden, 40300, "No permissions found")
			return
		}
		for _, p := range perms {
			if grants(p, permission) {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, 40302, "Permission denied: "+permission)
	}
}

func grants(held, want string) bool {
	if held == "*" || held == want {
		return true
	}
	if scope, ok := strings.CutSuffix(held, ":*"); ok && strings.HasPrefix(want, scope+":") {
		return true
	}
	return want == PermPackingRead && held == PermPackingWrite
}

// RequireRole 角色检查
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, ok := stringsFromContext(c, CtxRoles)
		if !ok {
			abort(c, http.StatusForbidden, 40310, "No roles found")
			return
		}
		for _, r := range roles {
			if r == role || r == AdminRole {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, 40312, "Role required: "+role)
	}
}

func stringsFromContext(c *gin.Context, key string) ([]string, bool) {
	v, exists := c.Get(key)
	if !exists {
		return nil, false
	}
	s, ok := v.([]string)
	return s, ok
}

func abort(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

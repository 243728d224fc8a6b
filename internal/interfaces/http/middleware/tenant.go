package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const (
	// TenantIDKey is the gin.Context key holding the resolved tenant uuid.UUID
	TenantIDKey     = "tenant_id"
	TenantHeaderKey = "X-Tenant-ID"
	AuthHeaderKey   = "Authorization"
	BearerPrefix    = "Bearer "
)

// TenantClaims are the bearer token claims the document API reads
type TenantClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// TenantConfig configures tenant resolution.
// With a JWTSecret the tenant comes from an HS256 bearer token and the
// X-Tenant-ID header is ignored. Without one the header is trusted.
type TenantConfig struct {
	JWTSecret []byte
	// Issuer, when set, must match the token's iss claim
	Issuer string
	Logger *zap.Logger
}

// Tenant resolves the tenant of a request and aborts when there is none
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var parser *jwt.Parser
	if len(cfg.JWTSecret) > 0 {
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.Issuer))
		}
		parser = jwt.NewParser(opts...)
	}

	return func(c *gin.Context) {
		var (
			tenantID uuid.UUID
			code     string
			message  string
		)
		if parser != nil {
			tenantID, code, message = tenantFromToken(c, parser, cfg.JWTSecret)
		} else {
			tenantID, code, message = tenantFromHeader(c)
		}

		if code != "" {
			log.Warn("Tenant resolution failed",
				zap.String("code", code),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", GetRequestID(c)),
			)
			c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
			return
		}

		c.Set(TenantIDKey, tenantID)
		c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), tenantID.String()))
		c.Next()
	}
}

func tenantFromHeader(c *gin.Context) (uuid.UUID, string, string) {
	raw := strings.TrimSpace(c.GetHeader(TenantHeaderKey))
	if raw == "" {
		return uuid.Nil, dto.ErrCodeTenantRequired, "X-Tenant-ID header is required"
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, dto.ErrCodeTenantRequired, "X-Tenant-ID must be a valid UUID"
	}
	return id, "", ""
}

func tenantFromToken(c *gin.Context, parser *jwt.Parser, secret []byte) (uuid.UUID, string, string) {
	header := c.GetHeader(AuthHeaderKey)
	if !strings.HasPrefix(header, BearerPrefix) {
		return uuid.Nil, dto.ErrCodeUnauthorized, "Bearer token is required"
	}

	claims := &TenantClaims{}
	_, err := parser.ParseWithClaims(strings.TrimPrefix(header, BearerPrefix), claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return uuid.Nil, dto.ErrCodeTokenExpired, "Token has expired"
	case err != nil:
		return uuid.Nil, dto.ErrCodeTokenInvalid, "Token is invalid"
	}

	id, err := uuid.Parse(claims.TenantID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, dto.ErrCodeTokenInvalid, "Token carries no valid tenant_id"
	}
	return id, "", ""
}

// GetTenantID returns the tenant resolved by Tenant
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(TenantIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

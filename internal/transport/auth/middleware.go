package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"gremio-backoffice/internal/domain"
	"gremio-backoffice/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type ctxKey string

const (
	UserIDKey  ctxKey = "userID"
	TenantsKey ctxKey = "tenants"
	TenantKey  ctxKey = "tenant"
)

const DefaultTenantHeader = "X-Tenant-ID"

// Claims is the token payload. The subject carries the numeric user id. When Tenants is
// empty the user may act for any tenant.
type Claims struct {
	Tenants []string `json:"tenants,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for userID.
func IssueToken(secret []byte, userID int64, tenants []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Tenants: tenants,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// JWTMiddleware authenticates the bearer token. The token may also come in the "token" query
// parameter, which is how browsers open the websocket.
func JWTMiddleware(secret []byte, log *zap.Logger) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				log.Debug("no token", zap.String("path", r.URL.Path))
				reject(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims := &Claims{}
			_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
				return secret, nil
			})
			if err != nil {
				msg := "Unauthorized"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "Token expired"
				}
				log.Debug("token rejected", zap.String("path", r.URL.Path), zap.Error(err))
				reject(w, http.StatusUnauthorized, msg)
				return
			}

			userID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil || userID <= 0 {
				log.Debug("token subject is not a user id", zap.String("sub", claims.Subject))
				reject(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, TenantsKey, claims.Tenants)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.Int64("user_id", userID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantMiddleware resolves the tenant from header. It must run after JWTMiddleware.
func TenantMiddleware(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultTenantHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := strings.TrimSpace(r.Header.Get(header))
			if tenant == "" {
				reject(w, http.StatusBadRequest, header+" header is required")
				return
			}
			if allowed, _ := r.Context().Value(TenantsKey).([]string); len(allowed) > 0 && !slices.Contains(allowed, tenant) {
				reject(w, http.StatusForbidden, "tenant not allowed")
				return
			}

			ctx := context.WithValue(r.Context(), TenantKey, domain.TenantID(tenant))
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("tenant", tenant)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	if !ok {
		return 0, errors.New("userID not found in context")
	}
	return userID, nil
}

func GetTenant(ctx context.Context) (domain.TenantID, error) {
	tenant, ok := ctx.Value(TenantKey).(domain.TenantID)
	if !ok || tenant == "" {
		return "", domain.ErrTenantRequired
	}
	return tenant, nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if t := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); t != "" {
			return t
		}
	}
	return r.URL.Query().Get("token")
}

// reject writes the same envelope the rest package uses.
func reject(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": status,
		"status":     "error",
		"message":    message,
		"data":       nil,
	})
}

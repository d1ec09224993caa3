package middleware

import (
	"net/http"
	"strings"

	logpkg "github.com/benvon/focus-companion/internal/logger"
	"github.com/benvon/focus-companion/internal/models"
	"github.com/benvon/focus-companion/internal/request"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

// DefaultTrustedUserHeader is read when no signing secret is configured
const DefaultTrustedUserHeader = "X-User-Email"

// AuthConfig configures bearer token verification
type AuthConfig struct {
	// Secret is the HS256 signing key. When empty, every request is
	// rejected unless TrustHeader is set.
	Secret      []byte
	Issuer      string
	AdminUserID string

	// TrustHeader takes the caller from TrustedHeader when Secret is empty.
	// Only enable it behind a proxy that authenticates and sets the header.
	TrustHeader   bool
	TrustedHeader string
}

// UserFromContext extracts the user from the request context
func UserFromContext(r *http.Request) *models.User {
	return request.UserFromContext(r)
}

// Auth creates authentication middleware that validates JWT tokens
func Auth(cfg AuthConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TrustedHeader == "" {
		cfg.TrustedHeader = DefaultTrustedUserHeader
	}
	admin := strings.ToLower(cfg.AdminUserID)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var user *models.User
			if len(cfg.Secret) == 0 {
				if !cfg.TrustHeader {
					writeError(w, r, http.StatusUnauthorized, "Authentication is not configured", logger)
					return
				}
				email := strings.TrimSpace(r.Header.Get(cfg.TrustedHeader))
				if email == "" {
					writeError(w, r, http.StatusUnauthorized, "Missing "+cfg.TrustedHeader+" header", logger)
					return
				}
				user = &models.User{ID: email, Email: email}
			} else {
				header := r.Header.Get("Authorization")
				if header == "" {
					writeError(w, r, http.StatusUnauthorized, "Missing Authorization header", logger)
					return
				}
				token, ok := strings.CutPrefix(header, "Bearer ")
				if !ok || token == "" || strings.Contains(token, " ") {
					writeError(w, r, http.StatusUnauthorized, "Invalid Authorization header format", logger)
					return
				}

				var err error
				user, err = verifyToken(token, cfg)
				if err != nil {
					logger.Info("token_verification_failed",
						zap.String("error", logpkg.SanitizeError(err)),
						zap.String("request_id", request.RequestID(r.Context())),
					)
					writeError(w, r, http.StatusUnauthorized, "Invalid or expired token", logger)
					return
				}
			}

			user.ID = strings.ToLower(strings.TrimSpace(user.ID))
			if user.ID == "" {
				writeError(w, r, http.StatusUnauthorized, "Token has no subject", logger)
				return
			}
			user.IsAdmin = admin != "" && user.ID == admin
			next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), user)))
		})
	}
}

// RequireAdmin rejects callers that are not the administrator
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r)
			if user == nil || !user.IsAdmin {
				writeError(w, r, http.StatusForbidden, "Administrator access required", logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// verifyToken checks the HS256 signature and standard claims, then maps the
// token onto a caller. The email claim wins over sub as the accounting id.
func verifyToken(tokenString string, cfg AuthConfig) (*models.User, error) {
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, cfg.Secret),
		jwt.WithValidate(true),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:    token.Subject(),
		Email: stringClaim(token, "email"),
		Name:  stringClaim(token, "name"),
	}
	if user.Email != "" {
		user.ID = user.Email
	}
	return user, nil
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

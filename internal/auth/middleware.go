package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"ms-paycom/internal/config"
	"ms-paycom/internal/logger"
	"ms-paycom/internal/utils"
)

type contextKey string

const userIDKey contextKey = "user_id"

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (string, error)
}

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func (v *oidcVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", err
	}
	// Extract claims (we only need sub for now)
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to parse claims: %w", err)
	}
	return claims.Sub, nil
}

// NewVerifier picks OIDC when an issuer is configured and falls back to
// HS256 tokens signed with JWT_SECRET.
func NewVerifier(ctx context.Context, cfg config.AuthConfig) (TokenVerifier, error) {
	if cfg.OIDCIssuer == "" {
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("neither OIDC_ISSUER nor JWT_SECRET is set")
		}
		return NewHMACVerifier([]byte(cfg.JWTSecret)), nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	// Without a client id there is no audience to check.
	return &oidcVerifier{verifier: provider.Verifier(&oidc.Config{
		ClientID:          cfg.OIDCClientID,
		SkipClientIDCheck: cfg.OIDCClientID == "",
	})}, nil
}

func Middleware(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				log.LogSecurity("AUTH", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
				return
			}

			sub, err := verifier.Verify(r.Context(), rawToken)
			if err != nil || sub == "" {
				log.LogSecurity("AUTH", fmt.Sprintf("%s %s: invalid token: %v", r.Method, r.URL.Path, err))
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

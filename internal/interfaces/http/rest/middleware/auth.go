package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"scent-memory-network/pkg/auth"
	appErrors "scent-memory-network/pkg/errors"
)

// AuthenticateWithConfig validates the bearer token and stores the caller
// in the request context. The raw token is kept so the memories backend can
// be called on the caller's behalf.
func AuthenticateWithConfig(validator *auth.JWTValidator, errorHandler *appErrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				errorHandler.Handle(w, r, appErrors.NewUnauthorizedError("Missing authentication token"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)

				message := "Invalid token"
				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					message = "Token has expired"
				case errors.Is(err, auth.ErrInvalidSignature):
					message = "Invalid token signature"
				}
				errorHandler.Handle(w, r, appErrors.NewUnauthorizedError(message))
				return
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: claims.UserID,
				Email:  claims.Email,
				Token:  token,
			})

			logger.Debug("Request authenticated",
				zap.String("user_id", claims.UserID),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthenticateForLambda trusts the user headers set by the Lambda adapter
// after API Gateway validated the JWT.
func AuthenticateForLambda(errorHandler *appErrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-ID")
			if r.Header.Get("X-API-Gateway-Authorized") != "true" || userID == "" {
				errorHandler.Handle(w, r, appErrors.NewUnauthorizedError("Request not authorized by API Gateway"))
				return
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: userID,
				Email:  r.Header.Get("X-User-Email"),
				Token:  extractToken(r),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Anonymous is used when authentication is disabled. The user comes from
// the X-User-ID header, defaulting to "anonymous"; any bearer token is
// still forwarded.
func Anonymous() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				userID = "anonymous"
			}
			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: userID,
				Token:  extractToken(r),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken extracts the JWT token from multiple sources
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return authHeader
	}

	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}

	return r.URL.Query().Get("token")
}

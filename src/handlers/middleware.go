package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/entrans/backend/src/database"
	"github.com/entrans/backend/src/logger"
	"github.com/entrans/backend/src/model"
	"github.com/entrans/backend/src/models"
	"github.com/entrans/backend/src/utils"
)

// Context keys are unexported; access goes through the helpers below.
type contextKey string

const (
	userIDContextKey contextKey = "userID"
	callerContextKey contextKey = "caller"
)

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	utils.SendJSONError(w, message, statusCode)
}

// GetUserIDFromContext returns the authenticated user's id.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDContextKey).(int64)
	return id, ok
}

// GetCallerFromContext returns the authenticated caller identity
// (email + role) used for record filtering.
func GetCallerFromContext(ctx context.Context) (models.Caller, bool) {
	caller, ok := ctx.Value(callerContextKey).(models.Caller)
	return caller, ok
}

func (h *UserHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.L.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
			sendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			logger.L.Debug("AuthMiddleware: Token string empty", "path", r.URL.Path)
			sendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		claims, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			logger.L.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			sendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		_, err = model.GetSessionByToken(database.DB, tokenString)
		if err != nil {
			// Google-authenticated users have no local session row; only
			// local accounts require one.
			userIDIntCheck, _ := strconv.ParseInt(claims.UserID, 10, 64)
			user, userErr := model.GetUserByID(database.DB, userIDIntCheck)
			if userErr != nil {
				logger.L.Warn("AuthMiddleware: User not found for token after session check failed", "userID", claims.UserID, "error", userErr)
				sendJSONError(w, "Invalid session or user", http.StatusUnauthorized)
				return
			}
			if user.AuthProvider == "local" {
				logger.L.Warn("AuthMiddleware: Session validation failed for local user's access token", "path", r.URL.Path, "error", err)
				sendJSONError(w, "Invalid or expired session", http.StatusUnauthorized)
				return
			}
		}

		userIDInt, err := strconv.ParseInt(claims.UserID, 10, 64)
		if err != nil {
			logger.L.Error("AuthMiddleware: Invalid user ID format in token", "userIDStr", claims.UserID, "error", err)
			sendJSONError(w, "Invalid user ID in token", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, userIDInt)
		ctx = context.WithValue(ctx, callerContextKey, models.Caller{
			Email: claims.Email,
			Role:  models.Role(claims.Role),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// RequireRoles gates a handler to the given roles. It must run inside
// AuthMiddleware since it reads the caller from context.
func RequireRoles(next http.HandlerFunc, roles ...models.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := GetCallerFromContext(r.Context())
		if !ok {
			sendJSONError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		for _, role := range roles {
			if caller.Role == role {
				next.ServeHTTP(w, r)
				return
			}
		}
		logger.L.Warn("Role gate rejected request", "path", r.URL.Path, "role", caller.Role)
		sendJSONError(w, "insufficient permissions", http.StatusForbidden)
	}
}

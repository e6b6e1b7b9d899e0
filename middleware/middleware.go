package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	core "covergate-backend/core/cover"
	"covergate-backend/metrics"
	auth "covergate-backend/storage/auth"
)

// CORS middleware
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Logging middleware
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: 0}

		next.ServeHTTP(wrapped, r)
		if wrapped.statusCode == 0 {
			wrapped.statusCode = http.StatusOK
		}

		duration := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(r.Method, metricPath(r.URL.Path), strconv.Itoa(wrapped.statusCode)).Inc()
		entry := map[string]interface{}{
			"ts":       start.UTC().Format(time.RFC3339Nano),
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapped.statusCode,
			"duration": duration.String(),
		}
		if err := json.NewEncoder(log.Writer()).Encode(entry); err != nil {
			log.Printf("%s %s %d %v", r.Method, r.URL.Path, wrapped.statusCode, duration)
		}
	})
}

// metricPath collapses numeric path segments so ids do not mint
// unbounded label series.
func metricPath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if _, err := strconv.ParseUint(seg, 10, 64); err == nil {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

// Recovery middleware. Internal consistency failures surface here as
// core.CorruptionError panics and are logged with their ledger detail;
// either way the client sees a plain 500.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if ce, ok := err.(core.CorruptionError); ok {
					log.Printf("LEDGER CORRUPTION: %v", ce)
				} else {
					log.Printf("Panic recovered: %v", err)
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)

				errorResp := map[string]interface{}{
					"success": false,
					"error": map[string]interface{}{
						"error":   "internal_server_error",
						"message": "Internal server error occurred",
						"code":    http.StatusInternalServerError,
					},
				}

				json.NewEncoder(w).Encode(errorResp)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders middleware
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		next.ServeHTTP(w, r)
	})
}

// Timeout middleware
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)

			// Wrap response writer to track if data was sent
			tracked := &timeoutTrackingWriter{ResponseWriter: w}

			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(tracked, r)
			}()

			select {
			case <-done:
				// Request completed normally
			case <-ctx.Done():
				// Only write error if response hasn't been committed yet
				if !tracked.committed {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusRequestTimeout)

					errorResp := map[string]interface{}{
						"success": false,
						"error": map[string]interface{}{
							"error":   "request_timeout",
							"message": "Request timed out",
							"code":    http.StatusRequestTimeout,
						},
					}

					json.NewEncoder(w).Encode(errorResp)
				}
			}
		})
	}
}

type timeoutTrackingWriter struct {
	http.ResponseWriter
	committed bool
}

func (tw *timeoutTrackingWriter) WriteHeader(statusCode int) {
	tw.committed = true
	tw.ResponseWriter.WriteHeader(statusCode)
}

func (tw *timeoutTrackingWriter) Write(b []byte) (int, error) {
	if !tw.committed {
		tw.ResponseWriter.WriteHeader(http.StatusOK)
		tw.committed = true
	}
	return tw.ResponseWriter.Write(b)
}

// RateLimit middleware (simple implementation)
func RateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	type client struct {
		requests int
		window   time.Time
	}

	var mu sync.Mutex
	clients := make(map[string]*client)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := r.RemoteAddr
			now := time.Now()

			mu.Lock()
			limited := false
			if c, exists := clients[clientIP]; exists {
				if now.Sub(c.window) > window {
					c.requests = 1
					c.window = now
				} else {
					c.requests++
					limited = c.requests > requests
				}
			} else {
				clients[clientIP] = &client{
					requests: 1,
					window:   now,
				}
			}
			mu.Unlock()

			if limited {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := map[string]interface{}{
					"success": false,
					"error": map[string]interface{}{
						"error":   "rate_limit_exceeded",
						"message": "Too many requests",
						"code":    http.StatusTooManyRequests,
					},
				}

				json.NewEncoder(w).Encode(errorResp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode != 0 {
		// Headers already written, ignore superfluous calls
		return
	}
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func apiKeyFrom(r *http.Request) string {
	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		authz := r.Header.Get("Authorization")
		if strings.HasPrefix(authz, "Bearer ") {
			apiKey = strings.TrimPrefix(authz, "Bearer ")
		}
	}
	return apiKey
}

func writeAuthError(w http.ResponseWriter, code int, tag, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"error":   tag,
			"message": msg,
			"code":    code,
		},
	})
}

// RequireRole validates the API key and its role before passing the
// request on. The key record lands in the request context under
// APIKeyContextKey for handlers that need the wallet binding.
func RequireRole(validator auth.APIKeyValidator, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := apiKeyFrom(r)
			if apiKey == "" {
				writeAuthError(w, http.StatusUnauthorized, "api_key_required", "API key required")
				return
			}
			rec, ok := validator.Get(apiKey)
			if !ok {
				writeAuthError(w, http.StatusForbidden, "api_key_invalid", "Invalid API key")
				return
			}
			if rec.Role != role && rec.Role != auth.RoleAdmin {
				writeAuthError(w, http.StatusForbidden, "insufficient_role", "API key lacks required role")
				return
			}
			ctx := context.WithValue(r.Context(), APIKeyContextKey, rec)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type contextKey string

// APIKeyContextKey holds the authenticated auth.APIKey record.
const APIKeyContextKey contextKey = "api_key"

// KeyFromContext extracts the authenticated API key record, if any.
func KeyFromContext(ctx context.Context) (auth.APIKey, bool) {
	rec, ok := ctx.Value(APIKeyContextKey).(auth.APIKey)
	return rec, ok
}

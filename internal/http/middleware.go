package httpx

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/soundpipe/soundpipe/internal/domain/model"
	apperrors "github.com/soundpipe/soundpipe/internal/errors"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// VersionCheck returns a middleware that stamps the server's protocol version
// on every response and rejects requests declaring a different client version
// with 426 Upgrade Required. Requests without the header pass through, so
// plain curl and the unversioned endpoints keep working.
func VersionCheck(serverVersion string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(HeaderAPIVersion, serverVersion)

			clientVersion := r.Header.Get(HeaderAPIVersion)
			if clientVersion != "" && clientVersion != serverVersion {
				logger.Warn("version mismatch",
					slog.String("client_version", clientVersion),
					slog.String("server_version", serverVersion),
					slog.String("path", r.URL.Path))
				WriteError(w, ErrorParams{
					Code:    http.StatusUpgradeRequired,
					ErrCode: string(apperrors.ErrCodeStaleVersion),
					Err:     apperrors.StaleVersion(clientVersion, serverVersion),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserProvisioner resolves the opaque owner id carried on requests.
type UserProvisioner interface {
	GetOrCreate(id string) model.User
}

// ResolveUser returns a middleware that resolves the X-User-ID header into a
// known owner, provisioning a fresh opaque id when the header is absent or
// unknown, and exposes the owner via the request context.
func ResolveUser(users UserProvisioner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := users.GetOrCreate(r.Header.Get(HeaderUserID))
			ctx := SetUserInContext(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

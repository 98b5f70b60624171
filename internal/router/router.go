package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/account"
	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/session"
	"github.com/ovaphlow/pitchfork/service-feed-identity/pkg/utilities"
)

const (
	basePath        = "/feed-api/user"
	requestIDHeader = "X-Request-ID"
)

// statusRecorder remembers what the handler sent so the access log can
// report it. A handler that never calls WriteHeader answered 200.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	n, err := s.ResponseWriter.Write(p)
	s.written += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// LoggingMiddleware logs every request at debug level and tags it with a
// request id, reusing an incoming X-Request-ID when present.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = utilities.NewKSUID()
			}
			w.Header().Set(requestIDHeader, reqID)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			logger.Debugw("http request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", rec.status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", rec.written,
			)
		})
	}
}

// SecurityHeadersMiddleware sets the headers a JSON API carrying credentials
// should send.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			if h.Get("Content-Security-Policy") == "" {
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")
			}
			if r.TLS != nil {
				// 30 days
				h.Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts the account endpoints on an http.ServeMux. Session
// tokens are resolved for every route; email link tokens only on the route
// their link targets. Handlers that need a caller answer 401 on their own
// when none was established.
func RegisterRoutes(logger *zap.SugaredLogger, h *account.Handler, parser session.TokenParser) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST "+basePath+"/signup", h.Signup)
	mux.HandleFunc("POST "+basePath+"/login", h.Login)
	mux.Handle("GET "+basePath+"/verify/email", linkRoute(parser, session.AudienceVerifyEmail, logger, h.VerifyEmail))
	mux.HandleFunc("GET "+basePath+"/reset/{email}", h.RequestPasswordReset)
	mux.Handle("POST "+basePath+"/reset", linkRoute(parser, session.AudiencePasswordReset, logger, h.ResetPassword))
	mux.HandleFunc("GET "+basePath+"/me", h.Me)
	mux.HandleFunc("POST "+basePath+"/update", h.UpdateAccount)
	mux.HandleFunc("POST "+basePath+"/update/profile", h.UpdateProfile)
	mux.HandleFunc("GET "+basePath, h.List)
	mux.HandleFunc("GET "+basePath+"/{username}", h.Get)

	return LoggingMiddleware(logger)(SecurityHeadersMiddleware()(session.Middleware(parser, logger)(mux)))
}

func linkRoute(parser session.TokenParser, audience string, logger *zap.SugaredLogger, fn http.HandlerFunc) http.Handler {
	return session.LinkMiddleware(parser, audience, logger)(fn)
}

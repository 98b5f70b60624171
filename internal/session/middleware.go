package session

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// TokenParser validates a bearer token issued for audience and returns its
// subject.
type TokenParser interface {
	ParseFor(audience, token string) (string, error)
}

// Middleware establishes the caller from an "Authorization: Bearer" session
// token. Requests without a usable token continue anonymous; handlers that
// need a caller answer 401 themselves, so public routes stay reachable with
// a stale header.
func Middleware(parser TokenParser, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return withAudience(parser, AudienceSession, logger)
}

// LinkMiddleware additionally accepts a token minted for audience, such as
// the one carried by a verification or reset email. Mount it only on the
// route that consumes that link.
func LinkMiddleware(parser TokenParser, audience string, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return withAudience(parser, audience, logger)
}

func withAudience(parser TokenParser, audience string, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := CallerFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := bearerToken(auth)
			if !ok {
				logger.Debugw("malformed authorization header", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}
			subject, err := parser.ParseFor(audience, token)
			if err != nil {
				logger.Debugw("bearer token rejected", "path", r.URL.Path, "audience", audience, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), subject)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

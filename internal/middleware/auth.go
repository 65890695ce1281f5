// Package middleware carries the gateway's auth plumbing: Discord OAuth
// via goth, session-backed actor resolution, and owner gating.
package middleware

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/discord"

	"github.com/arenakit/arenabot/internal/httputil"
)

type ContextKey string

// PlayerIDKey holds the acting player's platform id.
const PlayerIDKey ContextKey = "playerID"

// SessionPlayerKey is the session field carrying the logged-in player id.
const SessionPlayerKey = "playerID"

// InitAuth registers the Discord OAuth provider. Left unregistered when no
// credentials are configured, which keeps header-based actors working in
// development.
func InitAuth(key, secret, callbackURL string) {
	if key == "" || secret == "" {
		return
	}
	goth.UseProviders(discord.New(key, secret, callbackURL, discord.ScopeIdentify))
}

// Actor resolves the acting player for the request: the session's
// logged-in member, falling back to the X-Player-ID header when no session
// identity exists.
func Actor(sessionManager *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			playerID := sessionManager.GetString(r.Context(), SessionPlayerKey)
			if playerID == "" {
				playerID = r.Header.Get("X-Player-ID")
			}
			if playerID != "" {
				r = r.WithContext(context.WithValue(r.Context(), PlayerIDKey, playerID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireActor rejects requests with no resolved actor.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorID(r.Context()); !ok {
			httputil.Unauthorized(w, "log in or set X-Player-ID")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwner gates a route to the configured owner.
func RequireOwner(ownerID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorID(r.Context())
			if !ok {
				httputil.Unauthorized(w, "log in or set X-Player-ID")
				return
			}
			if ownerID == "" || actor != ownerID {
				httputil.Forbidden(w, "owner only")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ActorID returns the acting player's id from the request context.
func ActorID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(PlayerIDKey).(string)
	return id, ok && id != ""
}

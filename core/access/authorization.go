/*Package access provides utilities for access control
 */
package access

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/workfit/core/logger"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context keys
const (
	contextKeyAuthorization contextKey = "_authorization_"
)

// well known roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

/*Authorization is a context object which stores authorization information
for the user who is currently signed in.

An authorization carries a list or roles and identifiers of resources, typically
the "user_id" of the signed in user.

Authorizations are added to a request context with

	ctx = auth.ContextWithAuthorization(ctx)

and retrieved with

	auth := AuthorizationFromContext(ctx)
*/
type Authorization struct {
	Roles      []string             `json:"roles"`
	Resources  map[string]uuid.UUID `json:"resources,omitempty"`
	Properties map[string]string    `json:"properties,omitempty"`
}

// ForUser returns the authorization of a regular signed in user
func ForUser(userID uuid.UUID) *Authorization {
	return &Authorization{
		Roles:     []string{RoleUser},
		Resources: map[string]uuid.UUID{"user_id": userID},
	}
}

// HasRole returns true if the authorization contains the requested role;
// otherwise it returns false.
func (a *Authorization) HasRole(role string) bool {
	if a == nil {
		return false
	}
	for _, hasRole := range a.Roles {
		if role == hasRole {
			return true
		}
	}
	return false
}

// Identifier returns the identifier for the requested resource; if the
// identifier does not exist, it returns an empty uuid and false.
func (a *Authorization) Identifier(resource string) (uuid.UUID, bool) {
	if a == nil || a.Resources == nil {
		return uuid.UUID{}, false
	}
	value, ok := a.Resources[resource+"_id"]
	return value, ok
}

// Property returns the value for the requested property; if the
// property does not exist, it returns an empty string and false.
func (a *Authorization) Property(name string) (string, bool) {
	if a == nil || a.Properties == nil {
		return "", false
	}
	value, ok := a.Properties[name]
	return value, ok
}

// ContextWithAuthorization returns a new context with this authorization added to it
func (a *Authorization) ContextWithAuthorization(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKeyAuthorization, a)
}

// AuthorizationFromContext retrieves an authorization from the context
func AuthorizationFromContext(ctx context.Context) *Authorization {
	a, _ := ctx.Value(contextKeyAuthorization).(*Authorization)
	return a
}

// UserFromContext returns the user ID of the signed in user
func UserFromContext(ctx context.Context) (uuid.UUID, bool) {
	return AuthorizationFromContext(ctx).Identifier("user")
}

// AuthorizationCache is an in-memory cache for authorizations. It is used by
// jwt middleware to cache authorization objects for bearer tokens, so that
// the account lookup happens only once per token. Entries are dropped when
// their token expires.
type AuthorizationCache struct {
	mutex sync.RWMutex
	cache map[string]cachedAuthorization
	now   func() time.Time
}

type cachedAuthorization struct {
	auth      *Authorization
	expiresAt time.Time
}

// NewAuthorizationCache creates a new authorization cache
func NewAuthorizationCache() *AuthorizationCache {
	return &AuthorizationCache{cache: make(map[string]cachedAuthorization), now: time.Now}
}

// Read returns an authorization from in-process cache, or nil if there is none
// or its token has expired.
// Token should be the temporary token the authorization was derived from, not any of the ids.
// This function is go-routine safe
func (a *AuthorizationCache) Read(token string) *Authorization {
	a.mutex.RLock()
	entry, ok := a.cache[token]
	a.mutex.RUnlock()
	if !ok {
		return nil
	}
	if !a.now().Before(entry.expiresAt) {
		a.Evict(token)
		return nil
	}
	return entry.auth
}

// Write stores an authorization in the in-memory cache until expiresAt.
// Expired entries of other tokens are purged on the way.
// This function is go-routine safe
func (a *AuthorizationCache) Write(token string, auth *Authorization, expiresAt time.Time) {
	now := a.now()
	a.mutex.Lock()
	defer a.mutex.Unlock()
	for t, entry := range a.cache {
		if !now.Before(entry.expiresAt) {
			delete(a.cache, t)
		}
	}
	a.cache[token] = cachedAuthorization{auth: auth, expiresAt: expiresAt}
}

// Evict removes an authorization from the cache
func (a *AuthorizationCache) Evict(token string) {
	a.mutex.Lock()
	delete(a.cache, token)
	a.mutex.Unlock()
}

// Len returns the number of cached authorizations
func (a *AuthorizationCache) Len() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return len(a.cache)
}

// RequireUser is a middleware which rejects requests without a signed in user
func RequireUser(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Error(w, "not authorized", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// HandleAuthorizationRoute adds a route /authorization GET to the router
//
// The route returns the current authorization for provided bearer token.
func HandleAuthorizationRoute(router *mux.Router) {
	logger.Default().Debugln("authorization")
	logger.Default().Debugln("  handle route: /authorization GET")
	router.HandleFunc("/authorization", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		auth := AuthorizationFromContext(r.Context())
		if auth == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		jsonData, _ := json.MarshalIndent(auth, "", " ")
		w.Header().Set("Content-Type", "application/json")
		w.Write(jsonData)
	}).Methods(http.MethodGet)
}

package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/workfit/core/logger"
)

// CookieName is the name of the cookie which may carry the bearer token
const CookieName = "Workfit-JWT"

// ErrUnknownAccount is returned by an account lookup when a valid token refers
// to an account which does not exist (anymore).
var ErrUnknownAccount = errors.New("unknown account")

// Claims are the claims of tokens issued by the backend
type Claims struct {
	EMail string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer issues and verifies HS256 signed bearer tokens
type TokenIssuer struct {
	secret   []byte
	issuer   string
	validity time.Duration
	now      func() time.Time
}

// NewTokenIssuer creates a token issuer. The secret must not be empty.
func NewTokenIssuer(secret, issuer string, validity time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if validity <= 0 {
		return nil, fmt.Errorf("invalid token validity %s", validity)
	}
	return &TokenIssuer{
		secret:   []byte(secret),
		issuer:   issuer,
		validity: validity,
		now:      time.Now,
	}, nil
}

// Issue returns a signed token for the user
func (t *TokenIssuer) Issue(userID uuid.UUID, email string) (string, error) {
	now := t.now()
	claims := Claims{
		EMail: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.validity)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies the token and returns its claims
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if !claims.VerifyIssuer(t.issuer, true) {
		return nil, fmt.Errorf("unexpected issuer %s", claims.Issuer)
	}
	return claims, nil
}

// JwtMiddlewareBuilder is a helper builder for JwtMiddleware
type JwtMiddlewareBuilder struct {
	// Issuer verifies the tokens. This is mandatory.
	Issuer *TokenIssuer
	// Lookup returns the authorization for an authenticated user. If it is nil, every
	// authenticated user gets the plain user role. This is optional.
	Lookup func(ctx context.Context, userID uuid.UUID) (*Authorization, error)
	// Cache keeps the looked up authorizations until their token expires.
	// Defaults to a new cache. This is optional.
	Cache *AuthorizationCache
}

func bearerToken(r *http.Request) string {
	bearer := r.Header.Get("Authorization")
	if len(bearer) > 0 && bearer != "null" {
		if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
			return bearer[7:]
		}
		return bearer
	}
	if cookie, _ := r.Cookie(CookieName); cookie != nil {
		return cookie.Value
	}
	return ""
}

// NewJwtMiddleware returns a middleware handler to validate
// JWT bearer token.
//
// Java-Web-Token (JWT) are accepted as "Authorization: Bearer"
// header or as "Workfit-JWT"-cookie. Requests without token pass
// through without authorization.
//
// This is a final handler with regards to the bearer token. It will return
// http.StatusUnauthorized when a token is available but insufficent to
// authorize the request.
func NewJwtMiddleware(jmb *JwtMiddlewareBuilder) mux.MiddlewareFunc {
	if jmb.Issuer == nil {
		panic("token issuer is missing")
	}
	authCache := jmb.Cache
	if authCache == nil {
		authCache = NewAuthorizationCache()
	}

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizationFromContext(r.Context()) != nil {
				h.ServeHTTP(w, r)
				return
			}
			tokenString := bearerToken(r)
			if len(tokenString) == 0 {
				h.ServeHTTP(w, r)
				return
			}
			rlog := logger.FromContext(r.Context())

			claims, err := jmb.Issuer.Parse(tokenString)
			if err != nil {
				rlog.WithError(err).Debugln("rejected bearer token")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx, rlog := logger.ContextWithLoggerIdentity(r.Context(), claims.EMail)

			auth := authCache.Read(tokenString)
			if auth == nil {
				if jmb.Lookup == nil {
					auth = ForUser(userID)
				} else {
					auth, err = jmb.Lookup(ctx, userID)
					if errors.Is(err, ErrUnknownAccount) {
						http.Error(w, "invalid token", http.StatusUnauthorized)
						return
					}
					if err != nil {
						rlog.WithError(err).Errorln("Error 4723: cannot look up account")
						http.Error(w, "Error 4723", http.StatusInternalServerError)
						return
					}
				}
				expiresAt := jmb.Issuer.now().Add(jmb.Issuer.validity)
				if claims.ExpiresAt != nil {
					expiresAt = claims.ExpiresAt.Time
				}
				authCache.Write(tokenString, auth, expiresAt)
			}

			h.ServeHTTP(w, r.WithContext(auth.ContextWithAuthorization(ctx)))
		})
	}
}

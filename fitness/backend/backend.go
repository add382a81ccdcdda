/*
Package backend is the managed backend of the workfit app.

It registers the account, profile, friends, schedule, saved recipe, challenge
and catalog routes on a mux router, next to the relay routes. All routes below
/me act on the signed in user, identified by a JWT bearer token.
*/
package backend

import (
	"embed"
	"errors"
	"io/fs"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/relabs-tech/workfit/core/access"
	"github.com/relabs-tech/workfit/core/kss"
	"github.com/relabs-tech/workfit/core/logger"
	"github.com/relabs-tech/workfit/core/notifier"
	"github.com/relabs-tech/workfit/core/schema"
	"github.com/relabs-tech/workfit/fitness/catalog"
	"github.com/relabs-tech/workfit/fitness/challenge"
	"github.com/relabs-tech/workfit/fitness/relay"
)

//go:embed schemas
var schemaFS embed.FS

// schema IDs of the request bodies
const (
	profileSchemaID  = "https://workfit.app/schemas/profile.json"
	scheduleSchemaID = "https://workfit.app/schemas/schedule.json"
)

// Backend is the workfit backend
type Backend struct {
	store        Store
	router       *mux.Router
	tokens       *access.TokenIssuer
	relay        *relay.Relay
	catalog      *catalog.Catalog
	challenges   *challenge.Service
	blobs        kss.Driver
	notifier     notifier.Notifier
	validator    *schema.Validator
	location     *time.Location
	now          func() time.Time
	passwordCost int
	admins       map[string]bool

	rndMutex sync.Mutex
	rnd      *rand.Rand
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Store is the persistence of the backend. This is mandatory.
	Store Store
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Tokens issues and verifies the bearer tokens. This is mandatory.
	Tokens *access.TokenIssuer
	// Relay talks to the third party services. This is mandatory.
	Relay *relay.Relay
	// Catalog is the static exercise data. This is mandatory.
	Catalog *catalog.Catalog
	// Challenges assigns the daily challenges. This is mandatory.
	Challenges *challenge.Service
	// Blobs stores profile images. Without it, the image routes answer 503. This is optional.
	Blobs kss.Driver
	// Notifier receives change events. Defaults to notifier.Log. This is optional.
	Notifier notifier.Notifier
	// Location is the time zone of schedule dates. Defaults to time.Local.
	Location *time.Location
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Rand is used for friend IDs and program recommendations. This is optional.
	Rand *rand.Rand
	// PasswordCost is the bcrypt cost. Defaults to bcrypt.DefaultCost.
	PasswordCost int
	// Admins are the e-mail addresses of accounts with the admin role. This is optional.
	Admins []string
}

// New realizes the backend and adds all routes to the router
func New(bb *Builder) *Backend {
	if bb.Store == nil {
		panic("Store is missing")
	}
	if bb.Router == nil {
		panic("Router is missing")
	}
	if bb.Tokens == nil {
		panic("Tokens is missing")
	}
	if bb.Relay == nil || bb.Catalog == nil || bb.Challenges == nil {
		panic("Relay, Catalog and Challenges are mandatory")
	}

	schemas, err := fs.Sub(schemaFS, "schemas")
	if err != nil {
		panic(err)
	}
	validator, err := schema.NewValidatorFromFS(schemas, ".")
	if err != nil {
		panic(err)
	}

	b := &Backend{
		store:        bb.Store,
		router:       bb.Router,
		tokens:       bb.Tokens,
		relay:        bb.Relay,
		catalog:      bb.Catalog,
		challenges:   bb.Challenges,
		blobs:        bb.Blobs,
		notifier:     bb.Notifier,
		validator:    validator,
		location:     bb.Location,
		now:          bb.Now,
		passwordCost: bb.PasswordCost,
		rnd:          bb.Rand,
		admins:       map[string]bool{},
	}
	for _, email := range bb.Admins {
		if email = normalizeEmail(email); email != "" {
			b.admins[email] = true
		}
	}
	if b.notifier == nil {
		b.notifier = notifier.Log{}
	}
	if b.location == nil {
		b.location = time.Local
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.passwordCost == 0 {
		b.passwordCost = bcrypt.DefaultCost
	}
	if b.rnd == nil {
		b.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	logger.AddRequestID(b.router)
	b.handleCORS()
	b.handleCompression()
	b.router.Use(access.NewJwtMiddleware(&access.JwtMiddlewareBuilder{
		Issuer: b.tokens,
		Lookup: b.lookupAuthorization,
	}))

	access.HandleAuthorizationRoute(b.router)
	b.handleVersion()
	b.handleHealth()
	b.relay.HandleRoutes(b.router)
	b.catalog.HandleRoutes(b.router)
	b.handleAccounts()
	b.handleProfiles()
	b.handleFriends()
	b.handleSchedules()
	b.handleRecipes()
	b.handleChallenges()
	b.handlePrograms()
	return b
}

// handle adds a route which also answers CORS preflight requests
func (b *Backend) handle(path string, f http.HandlerFunc, methods ...string) {
	logger.Default().Debugln("  handle route:", path, methods)
	b.router.HandleFunc(path, f).Methods(append(methods, http.MethodOptions)...)
}

// userHandlerFunc is a handler for routes of the signed in user
type userHandlerFunc func(w http.ResponseWriter, r *http.Request, user *User)

// handleUser adds a route which requires a signed in user
func (b *Backend) handleUser(path string, f userHandlerFunc, methods ...string) {
	logger.Default().Debugln("  handle route:", path, methods)
	b.router.Handle(path, access.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rlog := logger.FromContext(r.Context())
		rlog.Infoln("called route for", r.URL, r.Method)
		userID, _ := access.UserFromContext(r.Context())
		user, err := b.store.UserByID(r.Context(), userID)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "not authorized", http.StatusUnauthorized)
			return
		}
		if err != nil {
			rlog.WithError(err).Errorln("Error 4701: cannot read user")
			http.Error(w, "Error 4701", http.StatusInternalServerError)
			return
		}
		f(w, r, user)
	}))).Methods(append(methods, http.MethodOptions)...)
}

func (b *Backend) random(n int) int {
	b.rndMutex.Lock()
	defer b.rndMutex.Unlock()
	return b.rnd.Intn(n)
}

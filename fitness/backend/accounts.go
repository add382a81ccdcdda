package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/relabs-tech/workfit/core"
	"github.com/relabs-tech/workfit/core/access"
	"github.com/relabs-tech/workfit/core/logger"
)

type signUpRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Token  string    `json:"token"`
}

// normalizeEmail makes e-mail lookups case insensitive
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// lookupAuthorization is the account lookup of the jwt middleware. Accounts
// listed as admins get the admin role on top of the user role.
func (b *Backend) lookupAuthorization(ctx context.Context, userID uuid.UUID) (*access.Authorization, error) {
	user, err := b.store.UserByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, access.ErrUnknownAccount
	}
	if err != nil {
		return nil, err
	}
	auth := access.ForUser(userID)
	auth.Properties = map[string]string{"email": user.Email}
	if b.admins[normalizeEmail(user.Email)] {
		auth.Roles = append(auth.Roles, access.RoleAdmin)
	}
	return auth, nil
}

func (b *Backend) handleAccounts() {
	logger.Default().Debugln("accounts")
	b.handle("/auth/signup", b.signUp, http.MethodPost)
	b.handle("/auth/signin", b.signIn, http.MethodPost)
}

func (b *Backend) signUp(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Infoln("called route for", r.URL, r.Method)

	var req signUpRequest
	if _, err := readJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		http.Error(w, "Please fill in all fields.", http.StatusBadRequest)
		return
	}
	if req.Password != req.ConfirmPassword {
		http.Error(w, "Passwords do not match.", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), b.passwordCost)
	if err != nil {
		// bcrypt rejects passwords longer than 72 bytes
		http.Error(w, "invalid password: "+err.Error(), http.StatusBadRequest)
		return
	}
	user := &User{
		UserID:       uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    b.now().UTC(),
	}
	err = b.store.CreateUser(r.Context(), user)
	if errors.Is(err, ErrConflict) {
		http.Error(w, "An account with this email already exists.", http.StatusConflict)
		return
	}
	if err != nil {
		rlog.WithError(err).Errorln("Error 4702: cannot create user")
		http.Error(w, "Error 4702", http.StatusInternalServerError)
		return
	}

	token, err := b.tokens.Issue(user.UserID, user.Email)
	if err != nil {
		rlog.WithError(err).Errorln("Error 4703: cannot issue token")
		http.Error(w, "Error 4703", http.StatusInternalServerError)
		return
	}
	b.notify(r.Context(), "user", core.OperationCreate, user.UserID, map[string]interface{}{
		"name":             user.Name,
		"email":            user.Email,
		"profile_complete": false,
	})
	writeJSON(w, http.StatusCreated, tokenResponse{UserID: user.UserID, Token: token})
}

func (b *Backend) signIn(w http.ResponseWriter, r *http.Request) {
	rlog := logger.FromContext(r.Context())
	rlog.Infoln("called route for", r.URL, r.Method)

	var req signInRequest
	if _, err := readJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		http.Error(w, "Please fill in all fields.", http.StatusBadRequest)
		return
	}

	user, err := b.store.UserByEmail(r.Context(), req.Email)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Invalid email or password.", http.StatusUnauthorized)
		return
	}
	if err != nil {
		rlog.WithError(err).Errorln("Error 4704: cannot read user")
		http.Error(w, "Error 4704", http.StatusInternalServerError)
		return
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)) != nil {
		http.Error(w, "Invalid email or password.", http.StatusUnauthorized)
		return
	}

	token, err := b.tokens.Issue(user.UserID, user.Email)
	if err != nil {
		rlog.WithError(err).Errorln("Error 4703: cannot issue token")
		http.Error(w, "Error 4703", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{UserID: user.UserID, Token: token})
}

// notify publishes a change event. Failures are logged, they never fail the request.
func (b *Backend) notify(ctx context.Context, resource string, operation core.Operation, resourceID uuid.UUID, payload interface{}) {
	if err := b.notifier.Notify(ctx, resource, operation, resourceID, payload); err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("Error 4705: cannot publish notification")
	}
}

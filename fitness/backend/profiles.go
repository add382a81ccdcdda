package backend

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/workfit/core"
	"github.com/relabs-tech/workfit/core/kss"
	"github.com/relabs-tech/workfit/core/logger"
	"github.com/relabs-tech/workfit/core/schema"
	"github.com/relabs-tech/workfit/fitness/relay"
)

// friend IDs are "WA" followed by four digits
const (
	friendIDPrefix   = "WA"
	friendIDAttempts = 20
)

// profile fallbacks for accounts without name or e-mail
const (
	unnamedUser     = "Unnamed User"
	noEmailProvided = "No Email Provided"
)

// imageURLExpiry is the validity of pre-signed profile image URLs
const imageURLExpiry = 15 * time.Minute

var nonDigits = regexp.MustCompile(`\D`)

// ProfileView is the profile as returned to clients
type ProfileView struct {
	UserID          uuid.UUID `json:"user_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	FriendID        string    `json:"friend_id,omitempty"`
	ProfileComplete bool      `json:"profile_complete"`
	HasImage        bool      `json:"has_image"`
	Profile
}

func profileView(user *User, withEmail bool) ProfileView {
	view := ProfileView{
		UserID:          user.UserID,
		Name:            user.Name,
		FriendID:        user.FriendID,
		ProfileComplete: user.ProfileComplete,
		HasImage:        user.ImageKey != "",
		Profile:         user.Profile,
	}
	if view.Name == "" {
		view.Name = unnamedUser
	}
	if withEmail {
		view.Email = user.Email
		if view.Email == "" {
			view.Email = noEmailProvided
		}
	}
	return view
}

func (p Profile) complete() bool {
	for _, s := range []string{p.Age, p.Gender, p.DietaryType, p.Experience, p.GymFrequency, p.FitnessGoals,
		p.PrivacySetting, p.HeightFeet, p.HeightInches, p.Weight, p.ActivityLevel} {
		if strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

func (b *Backend) newFriendID() string {
	return fmt.Sprintf("%s%d", friendIDPrefix, 1000+b.random(9000))
}

func imageKey(userID uuid.UUID) string {
	return "user/" + userID.String() + "/profile-image"
}

func (b *Backend) handleProfiles() {
	logger.Default().Debugln("profiles")
	b.handleUser("/me/profile", b.getProfile, http.MethodGet)
	b.handleUser("/me/profile", b.putProfile, http.MethodPut)
	b.handleUser("/me/profile/image", b.postProfileImage, http.MethodPost)
	b.handleUser("/me/profile/image", b.getProfileImage, http.MethodGet)
	b.handleUser("/me/profile/image", b.deleteProfileImage, http.MethodDelete)
	b.handleUser("/me/nutrition", b.getNutrition, http.MethodGet)
}

func (b *Backend) getProfile(w http.ResponseWriter, r *http.Request, user *User) {
	if !user.ProfileComplete {
		http.Error(w, "profile not set up", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, profileView(user, true))
}

func (b *Backend) putProfile(w http.ResponseWriter, r *http.Request, user *User) {
	rlog := logger.FromContext(r.Context())

	var profile Profile
	body, err := readJSON(r, &profile)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !profile.complete() {
		http.Error(w, "Please fill in all fields.", http.StatusBadRequest)
		return
	}
	if err = b.validator.ValidateBytes(body, profileSchemaID); err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		rlog.WithError(err).Errorln("Error 4710: cannot validate profile")
		http.Error(w, "Error 4710", http.StatusInternalServerError)
		return
	}
	profile.Weight += " lbs"

	friendID := user.FriendID
	keep := friendID != ""
	for attempt := 0; ; attempt++ {
		if !keep {
			friendID = b.newFriendID()
		}
		err = b.store.UpdateProfile(r.Context(), user.UserID, friendID, profile)
		if !errors.Is(err, ErrConflict) || keep || attempt >= friendIDAttempts {
			break
		}
		rlog.Debugln("friend id collision", friendID)
	}
	if err != nil {
		rlog.WithError(err).Errorln("Error 4711: cannot update profile")
		http.Error(w, "Error 4711", http.StatusInternalServerError)
		return
	}

	user.FriendID = friendID
	user.Profile = profile
	user.ProfileComplete = true
	view := profileView(user, true)
	b.notify(r.Context(), "user", core.OperationUpdate, user.UserID, view)
	writeJSON(w, http.StatusOK, view)
}

type imageURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (b *Backend) postProfileImage(w http.ResponseWriter, r *http.Request, user *User) {
	rlog := logger.FromContext(r.Context())
	if b.blobs == nil {
		http.Error(w, "image storage is not configured", http.StatusServiceUnavailable)
		return
	}
	key := imageKey(user.UserID)
	url, err := b.blobs.GetPreSignedURL(r.Context(), kss.Put, key, imageURLExpiry)
	if err != nil {
		rlog.WithError(err).Errorln("Error 4712: cannot presign upload")
		http.Error(w, "Error 4712", http.StatusInternalServerError)
		return
	}
	if err = b.store.SetImageKey(r.Context(), user.UserID, key); err != nil {
		rlog.WithError(err).Errorln("Error 4713: cannot record image")
		http.Error(w, "Error 4713", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, imageURLResponse{URL: url, ExpiresAt: b.now().Add(imageURLExpiry).UTC()})
}

func (b *Backend) getProfileImage(w http.ResponseWriter, r *http.Request, user *User) {
	if b.blobs == nil {
		http.Error(w, "image storage is not configured", http.StatusServiceUnavailable)
		return
	}
	if user.ImageKey == "" {
		http.Error(w, "no profile image", http.StatusNotFound)
		return
	}
	url, err := b.blobs.GetPreSignedURL(r.Context(), kss.Get, user.ImageKey, imageURLExpiry)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4714: cannot presign download")
		http.Error(w, "Error 4714", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, imageURLResponse{URL: url, ExpiresAt: b.now().Add(imageURLExpiry).UTC()})
}

func (b *Backend) deleteProfileImage(w http.ResponseWriter, r *http.Request, user *User) {
	rlog := logger.FromContext(r.Context())
	if b.blobs == nil {
		http.Error(w, "image storage is not configured", http.StatusServiceUnavailable)
		return
	}
	if user.ImageKey == "" {
		http.Error(w, "no profile image", http.StatusNotFound)
		return
	}
	if err := b.blobs.Delete(r.Context(), user.ImageKey); err != nil {
		rlog.WithError(err).Errorln("Error 4715: cannot delete image")
		http.Error(w, "Error 4715", http.StatusInternalServerError)
		return
	}
	if err := b.store.SetImageKey(r.Context(), user.UserID, ""); err != nil {
		rlog.WithError(err).Errorln("Error 4713: cannot record image")
		http.Error(w, "Error 4713", http.StatusInternalServerError)
		return
	}
	user.ImageKey = ""
	b.notify(r.Context(), "user", core.OperationUpdate, user.UserID, profileView(user, false))
	w.WriteHeader(http.StatusNoContent)
}

// nutritionQuery derives the nutrition calculator parameters from a profile
func nutritionQuery(p Profile) relay.NutritionQuery {
	return relay.NutritionQuery{
		MeasurementUnits: "std",
		Sex:              strings.ToLower(p.Gender),
		AgeValue:         p.Age,
		AgeType:          "yrs",
		Feet:             p.HeightFeet,
		Inches:           p.HeightInches,
		Lbs:              nonDigits.ReplaceAllString(p.Weight, ""),
		ActivityLevel:    p.ActivityLevel,
	}
}

func (b *Backend) getNutrition(w http.ResponseWriter, r *http.Request, user *User) {
	if !user.ProfileComplete {
		http.Error(w, "profile not set up", http.StatusNotFound)
		return
	}
	body, err := b.relay.NutritionInfo(r.Context(), nutritionQuery(user.Profile))
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Failed to fetch nutrition data")
		relay.WriteError(w, "Failed to fetch nutrition data", err, false)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

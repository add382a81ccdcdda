package backend

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/workfit/core"
	"github.com/relabs-tech/workfit/core/logger"
)

// friendLookups limits the concurrent profile lookups of a friends list
const friendLookups = 8

// FriendSummary is what a user sees of another user before adding them
type FriendSummary struct {
	UserID         uuid.UUID `json:"user_id"`
	Name           string    `json:"name"`
	FriendID       string    `json:"friend_id"`
	PrivacySetting string    `json:"privacy_setting"`
	FitnessGoals   string    `json:"fitness_goals"`
}

func friendSummary(user *User) FriendSummary {
	s := FriendSummary{
		UserID:         user.UserID,
		Name:           user.Name,
		FriendID:       user.FriendID,
		PrivacySetting: user.Profile.PrivacySetting,
		FitnessGoals:   user.Profile.FitnessGoals,
	}
	if s.Name == "" {
		s.Name = unnamedUser
	}
	if s.FitnessGoals == "" {
		s.FitnessGoals = unnamedUser
	}
	return s
}

func (b *Backend) handleFriends() {
	logger.Default().Debugln("friends")
	b.handleUser("/friends/lookup/{friend_id}", b.lookupFriend, http.MethodGet)
	b.handleUser("/friends/{friend_id}/profile", b.friendProfile, http.MethodGet)
	b.handleUser("/me/friends/{friend_id}", b.addFriend, http.MethodPost)
	b.handleUser("/me/friends", b.listFriends, http.MethodGet)
}

// findFriend resolves the friend_id route variable. It writes the error response
// and returns nil if there is no such user.
func (b *Backend) findFriend(w http.ResponseWriter, r *http.Request) *User {
	friendID := strings.TrimSpace(mux.Vars(r)["friend_id"])
	if friendID == "" {
		http.Error(w, "Please enter a valid Friend ID.", http.StatusBadRequest)
		return nil
	}
	friend, err := b.store.UserByFriendID(r.Context(), friendID)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "No user found with the entered Friend ID.", http.StatusNotFound)
		return nil
	}
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4730: cannot look up friend")
		http.Error(w, "Error 4730", http.StatusInternalServerError)
		return nil
	}
	return friend
}

func (b *Backend) lookupFriend(w http.ResponseWriter, r *http.Request, user *User) {
	if friend := b.findFriend(w, r); friend != nil {
		writeJSON(w, http.StatusOK, friendSummary(friend))
	}
}

func (b *Backend) friendProfile(w http.ResponseWriter, r *http.Request, user *User) {
	if friend := b.findFriend(w, r); friend != nil {
		writeJSON(w, http.StatusOK, profileView(friend, false))
	}
}

func (b *Backend) addFriend(w http.ResponseWriter, r *http.Request, user *User) {
	friend := b.findFriend(w, r)
	if friend == nil {
		return
	}
	if friend.UserID == user.UserID {
		http.Error(w, "You cannot add yourself as a friend.", http.StatusBadRequest)
		return
	}
	err := b.store.AddFriend(r.Context(), user.UserID, friend.FriendID)
	if errors.Is(err, ErrConflict) {
		http.Error(w, "This friend is already in your friends list.", http.StatusConflict)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4731: cannot add friend")
		http.Error(w, "Error 4731", http.StatusInternalServerError)
		return
	}
	summary := friendSummary(friend)
	b.notify(r.Context(), "user/friend", core.OperationCreate, user.UserID, summary)
	writeJSON(w, http.StatusCreated, summary)
}

func (b *Backend) listFriends(w http.ResponseWriter, r *http.Request, user *User) {
	rlog := logger.FromContext(r.Context())
	friendIDs, err := b.store.Friends(r.Context(), user.UserID)
	if err != nil {
		rlog.WithError(err).Errorln("Error 4732: cannot read friends")
		http.Error(w, "Error 4732", http.StatusInternalServerError)
		return
	}

	profiles := make([]*ProfileView, len(friendIDs))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(friendLookups)
	for i, friendID := range friendIDs {
		i, friendID := i, friendID
		g.Go(func() error {
			friend, err := b.store.UserByFriendID(ctx, friendID)
			if errors.Is(err, ErrNotFound) {
				rlog.Warnln("No user found with friendId:", friendID)
				return nil
			}
			if err != nil {
				return err
			}
			view := profileView(friend, false)
			profiles[i] = &view
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		rlog.WithError(err).Errorln("Error 4733: cannot resolve friends")
		http.Error(w, "Error 4733", http.StatusInternalServerError)
		return
	}

	result := []ProfileView{}
	for _, p := range profiles {
		if p != nil {
			result = append(result, *p)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

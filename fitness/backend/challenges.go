package backend

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/workfit/core/logger"
	"github.com/relabs-tech/workfit/fitness/catalog"
	"github.com/relabs-tech/workfit/fitness/challenge"
	"github.com/relabs-tech/workfit/fitness/relay"
)

func (b *Backend) handleChallenges() {
	logger.Default().Debugln("challenges")
	b.handleUser("/challenges/daily/{level}", b.getDaily, http.MethodGet)
	b.handleUser("/challenges/daily/{level}/complete", b.completeDaily, http.MethodPut)
	b.handleUser("/challenges/daily/{level}/complete/{part}", b.completeDailyPart, http.MethodPut)
	b.handleUser("/challenges/cardio", b.getCardio, http.MethodGet)
	b.handleUser("/challenges/cardio/complete/{exercise_id}", b.completeCardio, http.MethodPut)
}

func levelFromRequest(w http.ResponseWriter, r *http.Request) (catalog.Level, bool) {
	level, err := catalog.ParseLevel(mux.Vars(r)["level"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return level, true
}

// writeChallenge writes the result of a challenge operation
func writeChallenge(w http.ResponseWriter, r *http.Request, value interface{}, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, value)
	case errors.Is(err, challenge.ErrUnknownPart), errors.Is(err, catalog.ErrUnknownLevel):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, challenge.ErrUnknownExercise):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4760: challenge failed")
		http.Error(w, "Error 4760", http.StatusInternalServerError)
	}
}

func (b *Backend) getDaily(w http.ResponseWriter, r *http.Request, user *User) {
	if level, ok := levelFromRequest(w, r); ok {
		daily, err := b.challenges.Daily(r.Context(), user.UserID, level)
		writeChallenge(w, r, daily, err)
	}
}

func (b *Backend) completeDaily(w http.ResponseWriter, r *http.Request, user *User) {
	if level, ok := levelFromRequest(w, r); ok {
		daily, err := b.challenges.MarkAllComplete(r.Context(), user.UserID, level)
		writeChallenge(w, r, daily, err)
	}
}

func (b *Backend) completeDailyPart(w http.ResponseWriter, r *http.Request, user *User) {
	if level, ok := levelFromRequest(w, r); ok {
		daily, err := b.challenges.MarkComplete(r.Context(), user.UserID, level, mux.Vars(r)["part"])
		writeChallenge(w, r, daily, err)
	}
}

func (b *Backend) getCardio(w http.ResponseWriter, r *http.Request, user *User) {
	cardio, err := b.challenges.Cardio(r.Context(), user.UserID)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Failed to fetch exercises")
		relay.WriteError(w, "Failed to fetch exercises", err, false)
		return
	}
	writeJSON(w, http.StatusOK, cardio)
}

func (b *Backend) completeCardio(w http.ResponseWriter, r *http.Request, user *User) {
	cardio, err := b.challenges.MarkCardioComplete(r.Context(), user.UserID, mux.Vars(r)["exercise_id"])
	writeChallenge(w, r, cardio, err)
}

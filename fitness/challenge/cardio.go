package challenge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/workfit/core/logger"
	"github.com/relabs-tech/workfit/fitness/relay"
)

// CardioChallengeSize is the number of exercises of a cardio challenge
const CardioChallengeSize = 10

// repetitions are the possible random values of a cardio exercise
var repetitions = []int{10, 20, 30}

// CardioExercise is an exercise of the cardio challenge with its number of repetitions
type CardioExercise struct {
	relay.Exercise
	RandomValue int `json:"randomValue"`
}

// Cardio is the cardio challenge of a user
type Cardio struct {
	Exercises      []CardioExercise `json:"exercises"`
	Completed      map[string]bool  `json:"completed"`
	CompletedCount int              `json:"completed_count"`
	FetchedAt      time.Time        `json:"fetched_at"`
	NextReset      time.Time        `json:"next_reset"`
	TimeUntilReset string           `json:"time_until_reset"`
}

// expired tells whether a challenge fetched at fetchedAt must be replaced at now
func (s *Service) expired(fetchedAt, now time.Time) bool {
	if fetchedAt.IsZero() {
		return true
	}
	return now.Sub(fetchedAt) >= DailyWindow || !now.Before(NextReset(fetchedAt, s.location))
}

// Cardio returns the cardio challenge of the user. An expired challenge is
// dropped together with its completions and a new one is assembled.
func (s *Service) Cardio(ctx context.Context, userID uuid.UUID) (*Cardio, error) {
	defer s.lockUser(userID)()
	return s.cardioChallenge(ctx, userID)
}

func (s *Service) cardioChallenge(ctx context.Context, userID uuid.UUID) (*Cardio, error) {
	key := userKey(userID, "")
	now := s.now()

	var stored Cardio
	timestamp, err := s.cardioStore.Read(ctx, key, &stored)
	if err != nil {
		return nil, fmt.Errorf("cannot read cardio challenge: %w", err)
	}
	if timestamp.IsZero() || s.expired(stored.FetchedAt, now) {
		if !timestamp.IsZero() {
			logger.FromContext(ctx).Infoln("cardio challenge expired")
			if err = s.cardioStore.Delete(ctx, key); err != nil {
				return nil, fmt.Errorf("cannot clear cardio challenge: %w", err)
			}
		}
		stored, err = s.newCardio(ctx, now)
		if err != nil {
			return nil, err
		}
		if err = s.cardioStore.Write(ctx, key, &stored); err != nil {
			return nil, fmt.Errorf("cannot store cardio challenge: %w", err)
		}
	}
	s.decorate(&stored, now)
	return &stored, nil
}

func (s *Service) newCardio(ctx context.Context, now time.Time) (Cardio, error) {
	all, err := s.cardio.CardioExerciseList(ctx)
	if err != nil {
		return Cardio{}, fmt.Errorf("cannot fetch cardio exercises: %w", err)
	}
	exercises := make([]CardioExercise, len(all))
	s.rndMutex.Lock()
	for i, e := range all {
		exercises[i] = CardioExercise{Exercise: e, RandomValue: repetitions[s.rnd.Intn(len(repetitions))]}
	}
	s.rnd.Shuffle(len(exercises), func(i, j int) {
		exercises[i], exercises[j] = exercises[j], exercises[i]
	})
	s.rndMutex.Unlock()
	if len(exercises) > CardioChallengeSize {
		exercises = exercises[:CardioChallengeSize]
	}
	return Cardio{
		Exercises: exercises,
		Completed: map[string]bool{},
		FetchedAt: now.UTC(),
	}, nil
}

func (s *Service) decorate(c *Cardio, now time.Time) {
	if c.Completed == nil {
		c.Completed = map[string]bool{}
	}
	c.CompletedCount = 0
	for _, done := range c.Completed {
		if done {
			c.CompletedCount++
		}
	}
	c.NextReset = NextReset(now, s.location)
	c.TimeUntilReset = FormatCountdown(c.NextReset.Sub(now))
}

// MarkCardioComplete marks an exercise of the current cardio challenge as done
func (s *Service) MarkCardioComplete(ctx context.Context, userID uuid.UUID, exerciseID string) (*Cardio, error) {
	defer s.lockUser(userID)()

	c, err := s.cardioChallenge(ctx, userID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, e := range c.Exercises {
		if e.ID == exerciseID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w '%s'", ErrUnknownExercise, exerciseID)
	}
	c.Completed[exerciseID] = true
	if err = s.cardioStore.Write(ctx, userKey(userID, ""), c); err != nil {
		return nil, fmt.Errorf("cannot store cardio challenge: %w", err)
	}
	s.decorate(c, s.now())
	return c, nil
}

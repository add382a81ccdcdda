package challenge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/workfit/core/logger"
	"github.com/relabs-tech/workfit/fitness/catalog"
)

// the parts of a daily challenge program
const (
	PartResistance = "resistance"
	PartCardio     = "cardio"
	PartStretching = "stretching"
)

// Completion tracks which parts of a daily challenge are done
type Completion struct {
	Resistance bool `json:"resistance"`
	Cardio     bool `json:"cardio"`
	Stretching bool `json:"stretching"`
}

// Daily is the daily challenge of a user for one level
type Daily struct {
	Level      catalog.Level          `json:"level"`
	Challenge  catalog.DailyChallenge `json:"challenge"`
	Completed  Completion             `json:"completed"`
	AssignedAt time.Time              `json:"assigned_at"`
	ExpiresAt  time.Time              `json:"expires_at"`
}

// Daily returns the challenge of the user for level. A challenge stays assigned
// for DailyWindow, after that a new random one is picked with a fresh completion.
func (s *Service) Daily(ctx context.Context, userID uuid.UUID, level catalog.Level) (*Daily, error) {
	defer s.lockUser(userID)()
	return s.daily(ctx, userID, level)
}

func (s *Service) daily(ctx context.Context, userID uuid.UUID, level catalog.Level) (*Daily, error) {
	challenges, err := s.catalog.DailyChallenges(level)
	if err != nil {
		return nil, err
	}
	key := userKey(userID, string(level))
	now := s.now()

	var stored Daily
	timestamp, err := s.dailyStore.Read(ctx, key, &stored)
	if err != nil {
		return nil, fmt.Errorf("cannot read daily challenge: %w", err)
	}
	if !timestamp.IsZero() && now.Sub(stored.AssignedAt) <= DailyWindow {
		return &stored, nil
	}
	if len(challenges) == 0 {
		return nil, fmt.Errorf("no challenges for level %s", level)
	}

	daily := Daily{
		Level:      level,
		Challenge:  challenges[s.intn(len(challenges))],
		AssignedAt: now.UTC(),
		ExpiresAt:  now.Add(DailyWindow).UTC(),
	}
	if err = s.dailyStore.Write(ctx, key, &daily); err != nil {
		return nil, fmt.Errorf("cannot store daily challenge: %w", err)
	}
	logger.FromContext(ctx).Infof("assigned daily challenge %d (%s) for level %s", daily.Challenge.ID, daily.Challenge.Name, level)
	return &daily, nil
}

// MarkComplete marks one part of the current daily challenge as done
func (s *Service) MarkComplete(ctx context.Context, userID uuid.UUID, level catalog.Level, part string) (*Daily, error) {
	defer s.lockUser(userID)()

	daily, err := s.daily(ctx, userID, level)
	if err != nil {
		return nil, err
	}
	switch part {
	case PartResistance:
		daily.Completed.Resistance = true
	case PartCardio:
		daily.Completed.Cardio = true
	case PartStretching:
		daily.Completed.Stretching = true
	default:
		return nil, fmt.Errorf("%w '%s'", ErrUnknownPart, part)
	}
	return daily, s.dailyStore.Write(ctx, userKey(userID, string(level)), daily)
}

// MarkAllComplete marks all parts of the current daily challenge as done
func (s *Service) MarkAllComplete(ctx context.Context, userID uuid.UUID, level catalog.Level) (*Daily, error) {
	defer s.lockUser(userID)()

	daily, err := s.daily(ctx, userID, level)
	if err != nil {
		return nil, err
	}
	daily.Completed = Completion{Resistance: true, Cardio: true, Stretching: true}
	return daily, s.dailyStore.Write(ctx, userKey(userID, string(level)), daily)
}

package test

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/relabs-tech/workfit/core/client"
	"github.com/relabs-tech/workfit/fitness/backend"
	"github.com/relabs-tech/workfit/fitness/challenge"
)

func (s *WorkfitTestSuite) signUp(name string) client.Client {
	var res struct {
		UserID uuid.UUID `json:"user_id"`
		Token  string    `json:"token"`
	}
	email := uuid.NewString() + "@example.com"
	status, err := s.Client.RawPost("/auth/signup", map[string]string{
		"name": name, "email": email, "password": "password", "confirm_password": "password",
	}, &res)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusCreated, status)
	return s.Client.WithToken(res.Token)
}

func (s *WorkfitTestSuite) TestProfileAndFriendsOverHTTP() {
	profile := map[string]string{
		"age": "25", "gender": "Male", "dietary_type": "Omnivore", "experience": "Beginner",
		"gym_frequency": "1-2 times per week", "fitness_goals": "Endurance", "privacy_setting": "Friends Only",
		"height_feet": "6", "height_inches": "0", "weight": "180", "activity_level": "Low Active",
	}
	alice := s.signUp("Alice")
	bob := s.signUp("Bob")

	var aliceProfile, bobProfile backend.ProfileView
	_, err := alice.RawPut("/me/profile", profile, &aliceProfile)
	s.Require().NoError(err)
	_, err = bob.RawPut("/me/profile", profile, &bobProfile)
	s.Require().NoError(err)
	s.NotEqual(aliceProfile.FriendID, bobProfile.FriendID)

	_, err = alice.RawPost("/me/friends/"+bobProfile.FriendID, nil, nil)
	s.Require().NoError(err)

	var friends []backend.ProfileView
	_, err = alice.RawGet("/me/friends", &friends)
	s.Require().NoError(err)
	s.Require().Len(friends, 1)
	s.Equal("Bob", friends[0].Name)
	s.Equal("180 lbs", friends[0].Weight)
}

func (s *WorkfitTestSuite) TestChallengesOverHTTP() {
	c := s.signUp("Carol")

	var daily, again challenge.Daily
	_, err := c.RawGet("/challenges/daily/Advanced", &daily)
	s.Require().NoError(err)
	_, err = c.RawPut("/challenges/daily/Advanced/complete/stretching", nil, &again)
	s.Require().NoError(err)
	s.Equal(daily.Challenge.ID, again.Challenge.ID)
	s.True(again.Completed.Stretching)

	var cardio challenge.Cardio
	_, err = c.RawGet("/challenges/cardio", &cardio)
	s.Require().NoError(err)
	s.Len(cardio.Exercises, challenge.CardioChallengeSize)
	_, err = c.RawPut("/challenges/cardio/complete/"+cardio.Exercises[3].ID, nil, &cardio)
	s.Require().NoError(err)
	s.Equal(1, cardio.CompletedCount)

	// the stored challenge survives a read from the registry
	_, err = c.RawGet("/challenges/cardio", &cardio)
	s.Require().NoError(err)
	s.Equal(1, cardio.CompletedCount)
}

func (s *WorkfitTestSuite) TestHealthOverHTTP() {
	_, err := s.Client.RawGet("/health", nil)
	s.Require().NoError(err)
}

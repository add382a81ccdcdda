package test

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/workfit/fitness/backend"
)

func (s *WorkfitTestSuite) newUser(name string) *backend.User {
	user := &backend.User{
		UserID:       uuid.New(),
		Name:         name,
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: []byte("hash"),
		CreatedAt:    time.Now().UTC(),
	}
	s.Require().NoError(s.Store.CreateUser(context.Background(), user))
	return user
}

func (s *WorkfitTestSuite) TestStoreUsers() {
	ctx := context.Background()
	user := s.newUser("Alice")

	read, err := s.Store.UserByID(ctx, user.UserID)
	s.Require().NoError(err)
	s.Equal("Alice", read.Name)
	s.Equal(user.Email, read.Email)
	s.False(read.ProfileComplete)

	read, err = s.Store.UserByEmail(ctx, user.Email)
	s.Require().NoError(err)
	s.Equal(user.UserID, read.UserID)

	_, err = s.Store.UserByID(ctx, uuid.New())
	s.ErrorIs(err, backend.ErrNotFound)

	duplicate := *user
	duplicate.UserID = uuid.New()
	s.ErrorIs(s.Store.CreateUser(ctx, &duplicate), backend.ErrConflict)
}

func (s *WorkfitTestSuite) TestStoreProfile() {
	ctx := context.Background()
	alice := s.newUser("Alice")
	bob := s.newUser("Bob")
	profile := backend.Profile{Age: "30", Gender: "Female", Weight: "140 lbs", Experience: "Advanced"}
	friendID := "WA" + uuid.NewString()[:6]

	s.Require().NoError(s.Store.UpdateProfile(ctx, alice.UserID, friendID, profile))
	read, err := s.Store.UserByFriendID(ctx, friendID)
	s.Require().NoError(err)
	s.Equal(alice.UserID, read.UserID)
	s.True(read.ProfileComplete)
	s.Equal(profile, read.Profile)

	s.ErrorIs(s.Store.UpdateProfile(ctx, bob.UserID, friendID, profile), backend.ErrConflict)
	s.ErrorIs(s.Store.UpdateProfile(ctx, uuid.New(), "WA-none", profile), backend.ErrNotFound)

	s.Require().NoError(s.Store.SetImageKey(ctx, alice.UserID, "user/image"))
	read, err = s.Store.UserByID(ctx, alice.UserID)
	s.Require().NoError(err)
	s.Equal("user/image", read.ImageKey)

	s.Require().NoError(s.Store.SetImageKey(ctx, alice.UserID, ""))
	read, err = s.Store.UserByID(ctx, alice.UserID)
	s.Require().NoError(err)
	s.Empty(read.ImageKey)
}

func (s *WorkfitTestSuite) TestStoreFriends() {
	ctx := context.Background()
	alice := s.newUser("Alice")

	s.Require().NoError(s.Store.AddFriend(ctx, alice.UserID, "WA2000"))
	s.Require().NoError(s.Store.AddFriend(ctx, alice.UserID, "WA1000"))
	s.ErrorIs(s.Store.AddFriend(ctx, alice.UserID, "WA2000"), backend.ErrConflict)

	friends, err := s.Store.Friends(ctx, alice.UserID)
	s.Require().NoError(err)
	s.Equal([]string{"WA2000", "WA1000"}, friends)
}

func (s *WorkfitTestSuite) TestStoreSchedule() {
	ctx := context.Background()
	alice := s.newUser("Alice")
	entry := backend.ScheduleEntry{Date: "2030-01-02", ProgramName: "Legs", Exercises: json.RawMessage(`[{"name":"Squat"}]`)}

	s.Require().NoError(s.Store.PutSchedule(ctx, alice.UserID, entry))
	entry.ProgramName = "Legs and Glutes"
	s.Require().NoError(s.Store.PutSchedule(ctx, alice.UserID, entry))
	s.Require().NoError(s.Store.PutSchedule(ctx, alice.UserID, backend.ScheduleEntry{Date: "2030-01-01", ProgramName: "Arms", Exercises: json.RawMessage(`[]`)}))

	entries, err := s.Store.Schedule(ctx, alice.UserID, "2030-01-01", "2030-01-31")
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("2030-01-01", entries[0].Date)
	s.Equal("Legs and Glutes", entries[1].ProgramName)
	s.JSONEq(`[{"name":"Squat"}]`, string(entries[1].Exercises))

	s.Require().NoError(s.Store.DeleteSchedule(ctx, alice.UserID, "2030-01-02"))
	s.ErrorIs(s.Store.DeleteSchedule(ctx, alice.UserID, "2030-01-02"), backend.ErrNotFound)
}

func (s *WorkfitTestSuite) TestStoreRecipes() {
	ctx := context.Background()
	alice := s.newUser("Alice")
	recipe := backend.SavedRecipe{
		ID:           "716429",
		Title:        "Pasta",
		Calories:     543.36,
		Ingredients:  []backend.Ingredient{{Name: "pasta"}},
		Instructions: []backend.Instruction{{Step: "Boil."}},
		SavedAt:      time.Now().UTC(),
	}

	created, err := s.Store.SaveRecipe(ctx, alice.UserID, recipe)
	s.Require().NoError(err)
	s.True(created)
	recipe.Title = "Garlic Pasta"
	created, err = s.Store.SaveRecipe(ctx, alice.UserID, recipe)
	s.Require().NoError(err)
	s.False(created)

	recipes, err := s.Store.Recipes(ctx, alice.UserID)
	s.Require().NoError(err)
	s.Require().Len(recipes, 1)
	s.Equal("Garlic Pasta", recipes[0].Title)
	s.Equal(recipe.Ingredients, recipes[0].Ingredients)

	s.Require().NoError(s.Store.DeleteRecipe(ctx, alice.UserID, "716429"))
	s.ErrorIs(s.Store.DeleteRecipe(ctx, alice.UserID, "716429"), backend.ErrNotFound)
}

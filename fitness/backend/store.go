package backend

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// sentinel errors of the store. Handlers map them to http status codes.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// DateFormat is the format of schedule dates
const DateFormat = "2006-01-02"

// Profile is the data entered during profile setup
type Profile struct {
	Age            string `json:"age"`
	Gender         string `json:"gender"`
	DietaryType    string `json:"dietary_type"`
	Experience     string `json:"experience"`
	GymFrequency   string `json:"gym_frequency"`
	FitnessGoals   string `json:"fitness_goals"`
	PrivacySetting string `json:"privacy_setting"`
	HeightFeet     string `json:"height_feet"`
	HeightInches   string `json:"height_inches"`
	Weight         string `json:"weight"`
	ActivityLevel  string `json:"activity_level"`
}

// User is a user account together with its profile
type User struct {
	UserID          uuid.UUID
	Name            string
	Email           string
	PasswordHash    []byte
	FriendID        string
	ProfileComplete bool
	Profile         Profile
	ImageKey        string
	CreatedAt       time.Time
}

// ScheduleEntry is a program scheduled for one day
type ScheduleEntry struct {
	Date        string          `json:"date"`
	ProgramName string          `json:"program_name"`
	Exercises   json.RawMessage `json:"exercises"`
}

// Ingredient is an ingredient of a saved recipe
type Ingredient struct {
	Name string `json:"name"`
}

// Instruction is a step of a saved recipe
type Instruction struct {
	Step string `json:"step"`
}

// SavedRecipe is the display form of a recipe a user saved
type SavedRecipe struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	WeightPerServing  json.RawMessage `json:"weight_per_serving,omitempty"`
	Calories          float64         `json:"calories"`
	CaloriesUnit      string          `json:"calories_unit,omitempty"`
	Protein           float64         `json:"protein"`
	ProteinUnit       string          `json:"protein_unit,omitempty"`
	Fat               float64         `json:"fat"`
	FatUnit           string          `json:"fat_unit,omitempty"`
	Carbohydrates     float64         `json:"carbohydrates"`
	CarbohydratesUnit string          `json:"carbohydrates_unit,omitempty"`
	CaloricBreakdown  json.RawMessage `json:"caloric_breakdown,omitempty"`
	Ingredients       []Ingredient    `json:"ingredients"`
	Instructions      []Instruction   `json:"instructions"`
	SavedAt           time.Time       `json:"saved_at"`
}

// Store is the persistence of the backend
type Store interface {
	Ping(ctx context.Context) error

	// CreateUser returns ErrConflict if the email is taken
	CreateUser(ctx context.Context, user *User) error
	UserByID(ctx context.Context, userID uuid.UUID) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UserByFriendID(ctx context.Context, friendID string) (*User, error)
	// UpdateProfile completes the profile. It returns ErrConflict if the friend ID is taken.
	UpdateProfile(ctx context.Context, userID uuid.UUID, friendID string, profile Profile) error
	SetImageKey(ctx context.Context, userID uuid.UUID, key string) error

	// AddFriend returns ErrConflict if the friend is already in the list
	AddFriend(ctx context.Context, userID uuid.UUID, friendID string) error
	// Friends returns the friend IDs in insertion order
	Friends(ctx context.Context, userID uuid.UUID) ([]string, error)

	// PutSchedule creates or replaces the entry for its date
	PutSchedule(ctx context.Context, userID uuid.UUID, entry ScheduleEntry) error
	// Schedule returns the entries between from and to inclusive, ordered by date
	Schedule(ctx context.Context, userID uuid.UUID, from, to string) ([]ScheduleEntry, error)
	DeleteSchedule(ctx context.Context, userID uuid.UUID, date string) error

	// SaveRecipe creates or replaces the recipe and tells whether it was created
	SaveRecipe(ctx context.Context, userID uuid.UUID, recipe SavedRecipe) (bool, error)
	Recipes(ctx context.Context, userID uuid.UUID) ([]SavedRecipe, error)
	DeleteRecipe(ctx context.Context, userID uuid.UUID, recipeID string) error
}

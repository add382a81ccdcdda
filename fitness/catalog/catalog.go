/*
Package catalog serves the static workout data of the app: resistance exercises
by muscle group, cardio exercises, stretches, workout programs and the daily
challenges per level.

The data is embedded into the binary and never modified after loading.
*/
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"math/rand"
	"strings"

	"github.com/goccy/go-json"
)

//go:embed data/*.json
var embedded embed.FS

// ErrUnknownLevel is returned for levels other than Beginner, Intermediate and Advanced
var ErrUnknownLevel = errors.New("unknown level")

// ErrNotFound is returned when a requested catalog entry does not exist
var ErrNotFound = errors.New("not found")

// Level is a training level
type Level string

// all training levels
const (
	Beginner     Level = "Beginner"
	Intermediate Level = "Intermediate"
	Advanced     Level = "Advanced"
)

// Levels are all valid levels in ascending order
var Levels = []Level{Beginner, Intermediate, Advanced}

// ParseLevel returns the level for s. Levels are case sensitive.
func ParseLevel(s string) (Level, error) {
	for _, l := range Levels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w '%s'", ErrUnknownLevel, s)
}

// IntensityAll selects exercises of all intensities
const IntensityAll = "All"

// recommendedPrograms is the number of programs RecommendPrograms returns at most
const recommendedPrograms = 7

// Exercise is a resistance exercise
type Exercise struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Video        string   `json:"video"`
	Instructions []string `json:"instructions"`
	Intensity    string   `json:"intensity"`
}

// MuscleGroup is a group of resistance exercises
type MuscleGroup struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Exercises []Exercise `json:"exercises"`
}

// CardioExercise is an endurance exercise
type CardioExercise struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	EnduranceLevel string `json:"enduranceLevel"`
	Duration       string `json:"duration"`
	CalorieBurn    string `json:"calorieBurn,omitempty"`
}

// Stretch is a stretching exercise
type Stretch struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	Category           string `json:"category"`
	DurationRepetition string `json:"durationRepetition,omitempty"`
	Video              string `json:"video,omitempty"`
}

// ProgramExercise is an exercise of a program. Reps are either a number or a
// text like "30 seconds".
type ProgramExercise struct {
	Name        string          `json:"name"`
	MuscleGroup string          `json:"muscleGroup"`
	Sets        int             `json:"sets"`
	Reps        json.RawMessage `json:"reps"`
}

// Program is a workout program
type Program struct {
	Name      string            `json:"name"`
	Exercises []ProgramExercise `json:"exercises"`
}

// ChallengeProgram is the three part program of a daily challenge
type ChallengeProgram struct {
	Resistance string `json:"resistance"`
	Cardio     string `json:"cardio"`
	Stretching string `json:"stretching"`
}

// DailyChallenge is a challenge for one day
type DailyChallenge struct {
	ID          int              `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Program     ChallengeProgram `json:"program"`
}

// Catalog holds the static data
type Catalog struct {
	muscleGroups []MuscleGroup
	cardio       []CardioExercise
	stretches    []Stretch
	programs     []Program
	daily        map[Level][]DailyChallenge
}

// Load loads the embedded catalog
func Load() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}
	return New(sub)
}

// New loads a catalog from resistance.json, cardio.json, stretch.json, programs.json
// and challenges.json in fsys
func New(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{}
	var challenges struct {
		DailyChallenges map[Level][]DailyChallenge `json:"dailyChallenges"`
	}
	for file, target := range map[string]interface{}{
		"resistance.json": &c.muscleGroups,
		"cardio.json":     &c.cardio,
		"stretch.json":    &c.stretches,
		"programs.json":   &c.programs,
		"challenges.json": &challenges,
	} {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("cannot read catalog %s: %w", file, err)
		}
		if err = json.Unmarshal(data, target); err != nil {
			return nil, fmt.Errorf("cannot parse catalog %s: %w", file, err)
		}
	}
	for level := range challenges.DailyChallenges {
		if _, err := ParseLevel(string(level)); err != nil {
			return nil, fmt.Errorf("challenges.json: %w", err)
		}
	}
	c.daily = challenges.DailyChallenges
	return c, nil
}

// MuscleGroups returns all muscle groups
func (c *Catalog) MuscleGroups() []MuscleGroup {
	return append([]MuscleGroup(nil), c.muscleGroups...)
}

// MuscleGroup returns the muscle group with the given id
func (c *Catalog) MuscleGroup(id int) (MuscleGroup, error) {
	for _, g := range c.muscleGroups {
		if g.ID == id {
			return g, nil
		}
	}
	return MuscleGroup{}, fmt.Errorf("muscle group %d: %w", id, ErrNotFound)
}

// FilterByIntensity returns the exercises whose intensity contains intensity.
// An empty intensity or IntensityAll returns all exercises.
func FilterByIntensity(exercises []Exercise, intensity string) []Exercise {
	result := []Exercise{}
	for _, e := range exercises {
		if intensity == "" || intensity == IntensityAll || strings.Contains(e.Intensity, intensity) {
			result = append(result, e)
		}
	}
	return result
}

// CardioByEnduranceLevel returns the cardio exercises of an endurance level, e.g. "Low Endurance"
func (c *Catalog) CardioByEnduranceLevel(level string) []CardioExercise {
	result := []CardioExercise{}
	for _, e := range c.cardio {
		if e.EnduranceLevel == level {
			result = append(result, e)
		}
	}
	return result
}

// StretchesByCategory returns the stretches of a category, either "Dynamic" or "Static"
func (c *Catalog) StretchesByCategory(category string) []Stretch {
	result := []Stretch{}
	for _, s := range c.stretches {
		if s.Category == category {
			result = append(result, s)
		}
	}
	return result
}

// AdjustSets scales the number of sets of a program exercise to the experience
func AdjustSets(sets int, experience string) int {
	switch experience {
	case string(Beginner):
		return int(math.Ceil(float64(sets) / 3))
	case string(Intermediate):
		return int(math.Ceil(float64(sets) / 2))
	default:
		return sets
	}
}

// RecommendPrograms returns up to seven shuffled programs with the sets adjusted to
// the experience. An empty experience counts as Beginner.
func (c *Catalog) RecommendPrograms(experience string, rnd *rand.Rand) []Program {
	if experience == "" {
		experience = string(Beginner)
	}
	order := rnd.Perm(len(c.programs))
	if len(order) > recommendedPrograms {
		order = order[:recommendedPrograms]
	}
	result := make([]Program, 0, len(order))
	for _, i := range order {
		p := c.programs[i]
		exercises := make([]ProgramExercise, len(p.Exercises))
		for j, e := range p.Exercises {
			e.Sets = AdjustSets(e.Sets, experience)
			exercises[j] = e
		}
		result = append(result, Program{Name: p.Name, Exercises: exercises})
	}
	return result
}

// DailyChallenges returns the daily challenges of a level
func (c *Catalog) DailyChallenges(level Level) ([]DailyChallenge, error) {
	challenges, ok := c.daily[level]
	if !ok {
		return nil, fmt.Errorf("%w '%s'", ErrUnknownLevel, level)
	}
	return append([]DailyChallenge(nil), challenges...), nil
}

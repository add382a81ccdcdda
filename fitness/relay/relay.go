/*
Package relay forwards requests to the RapidAPI hosted third-party services.

The relay holds the RapidAPI key, so that clients never see it. Upstream JSON is
passed through unmodified, with the exception of recipe searches, where only the
results array is returned.
*/
package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/workfit/core/logger"
)

// default upstream base URLs
const (
	DefaultExerciseDBURL  = "https://exercisedb.p.rapidapi.com"
	DefaultSpoonacularURL = "https://spoonacular-recipe-food-nutrition-v1.p.rapidapi.com"
	DefaultNutritionURL   = "https://nutrition-calculator.p.rapidapi.com"
)

// upstream paging parameters
const (
	exerciseLimit  = "200"
	challengeLimit = "150"
	recipeNumber   = "30"
)

// Configuration is the configuration of the relay. Empty URLs fall back to the
// RapidAPI defaults.
type Configuration struct {
	APIKey         string
	ExerciseDBURL  string
	SpoonacularURL string
	NutritionURL   string
	Timeout        time.Duration
}

// Relay is a client for the upstream services
type Relay struct {
	apiKey      string
	httpClient  *http.Client
	exerciseDB  *url.URL
	spoonacular *url.URL
	nutrition   *url.URL
}

// UpstreamError is returned when an upstream service answers with a non-2xx status
type UpstreamError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.URL, e.StatusCode)
}

// Exercise is an exercise as returned by ExerciseDB
type Exercise struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	BodyPart         string   `json:"bodyPart"`
	Target           string   `json:"target"`
	Equipment        string   `json:"equipment"`
	GifURL           string   `json:"gifUrl"`
	SecondaryMuscles []string `json:"secondaryMuscles,omitempty"`
	Instructions     []string `json:"instructions,omitempty"`
}

// RecipeQuery are the search parameters of a recipe search
type RecipeQuery struct {
	Protein              string
	AdditionalIngredient string
	Intolerance          string
	ExcludeIngredient    string
	RecipeType           string
	DietaryType          string
}

// NutritionQuery are the parameters of the nutrition calculator
type NutritionQuery struct {
	MeasurementUnits string
	Sex              string
	AgeValue         string
	AgeType          string
	Feet             string
	Inches           string
	Lbs              string
	ActivityLevel    string
}

// New creates a relay
func New(config Configuration) (*Relay, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("relay needs a RapidAPI key")
	}
	if config.Timeout == 0 {
		config.Timeout = 20 * time.Second
	}
	r := &Relay{
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
	var err error
	if r.exerciseDB, err = parseBaseURL(config.ExerciseDBURL, DefaultExerciseDBURL); err != nil {
		return nil, err
	}
	if r.spoonacular, err = parseBaseURL(config.SpoonacularURL, DefaultSpoonacularURL); err != nil {
		return nil, err
	}
	if r.nutrition, err = parseBaseURL(config.NutritionURL, DefaultNutritionURL); err != nil {
		return nil, err
	}
	return r, nil
}

func parseBaseURL(raw, fallback string) (*url.URL, error) {
	if raw == "" {
		raw = fallback
	}
	u, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url %s: %w", raw, err)
	}
	return u, nil
}

// get calls the upstream and returns the raw response body
func (r *Relay) get(ctx context.Context, base *url.URL, path string, query url.Values) ([]byte, error) {
	u := *base
	u.Path = base.Path + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-rapidapi-key", r.apiKey)
	req.Header.Set("x-rapidapi-host", base.Host)
	req.Header.Set("Accept", "application/json")

	logger.FromContext(ctx).Debugln("relay GET", u.Path)
	res, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", u.Path, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read upstream response of %s: %w", u.Path, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &UpstreamError{URL: u.Path, StatusCode: res.StatusCode, Body: string(body)}
	}
	return body, nil
}

func paging(limit string) url.Values {
	return url.Values{"limit": {limit}, "offset": {"0"}}
}

// Exercises returns the exercises for a target muscle group
func (r *Relay) Exercises(ctx context.Context, muscleGroup string) (json.RawMessage, error) {
	return r.get(ctx, r.exerciseDB, "/exercises/target/"+strings.ToLower(muscleGroup), paging(exerciseLimit))
}

// BodyWeightExercises returns exercises which need no equipment
func (r *Relay) BodyWeightExercises(ctx context.Context) (json.RawMessage, error) {
	return r.get(ctx, r.exerciseDB, "/exercises/equipment/body weight", paging(challengeLimit))
}

// CardioExercises returns the cardio exercises
func (r *Relay) CardioExercises(ctx context.Context) (json.RawMessage, error) {
	return r.get(ctx, r.exerciseDB, "/exercises/bodyPart/cardio", paging(challengeLimit))
}

// CardioExerciseList returns the cardio exercises decoded
func (r *Relay) CardioExerciseList(ctx context.Context) ([]Exercise, error) {
	body, err := r.CardioExercises(ctx)
	if err != nil {
		return nil, err
	}
	var exercises []Exercise
	if err = json.Unmarshal(body, &exercises); err != nil {
		return nil, fmt.Errorf("cannot decode cardio exercises: %w", err)
	}
	return exercises, nil
}

// Values returns the upstream query of a recipe search
func (q RecipeQuery) Values() url.Values {
	v := url.Values{}
	v.Set("query", "entree")
	var include []string
	for _, s := range []string{q.Protein, q.AdditionalIngredient} {
		if s != "" {
			include = append(include, s)
		}
	}
	if len(include) > 0 {
		v.Set("includeIngredients", strings.Join(include, ","))
	}
	if q.Intolerance != "" {
		v.Set("intolerances", q.Intolerance)
	}
	if q.ExcludeIngredient != "" {
		v.Set("excludeIngredients", q.ExcludeIngredient)
	}
	if q.DietaryType != "" {
		v.Set("diet", strings.ToLower(q.DietaryType))
	}
	if q.RecipeType != "" {
		v.Set("type", q.RecipeType)
	} else {
		v.Set("type", "main course")
	}
	v.Set("addRecipeInformation", "true")
	v.Set("addRecipeInstructions", "true")
	v.Set("addRecipeNutrition", "true")
	v.Set("ignorePantry", "true")
	v.Set("sort", "max-used-ingredients")
	v.Set("number", recipeNumber)
	return v
}

// Recipes searches recipes and returns the results array, or an empty array
func (r *Relay) Recipes(ctx context.Context, query RecipeQuery) (json.RawMessage, error) {
	body, err := r.get(ctx, r.spoonacular, "/recipes/complexSearch", query.Values())
	if err != nil {
		return nil, err
	}
	var response struct {
		Results json.RawMessage `json:"results"`
	}
	if err = json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("cannot decode recipe search: %w", err)
	}
	if len(response.Results) == 0 || string(response.Results) == "null" {
		return json.RawMessage("[]"), nil
	}
	return response.Results, nil
}

// Values returns the non-empty upstream query parameters
func (q NutritionQuery) Values() url.Values {
	v := url.Values{}
	for key, value := range map[string]string{
		"measurement_units": q.MeasurementUnits,
		"sex":               q.Sex,
		"age_value":         q.AgeValue,
		"age_type":          q.AgeType,
		"feet":              q.Feet,
		"inches":            q.Inches,
		"lbs":               q.Lbs,
		"activity_level":    q.ActivityLevel,
	} {
		if value != "" {
			v.Set(key, value)
		}
	}
	return v
}

// NutritionInfo returns the nutrition info from the nutrition calculator
func (r *Relay) NutritionInfo(ctx context.Context, query NutritionQuery) (json.RawMessage, error) {
	return r.get(ctx, r.nutrition, "/api/nutrition-info", query.Values())
}

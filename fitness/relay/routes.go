package relay

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/workfit/core/logger"
)

// HandleRoutes adds the relay routes to the router. The routes are public.
func (r *Relay) HandleRoutes(router *mux.Router) {
	logger.Default().Debugln("relay")
	logger.Default().Debugln("  handle route: /api/nutrition-info GET")
	router.HandleFunc("/api/nutrition-info", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		r.pass(w, req, "Failed to fetch nutrition data", func(ctx context.Context) (json.RawMessage, error) {
			return r.NutritionInfo(ctx, NutritionQuery{
				MeasurementUnits: q.Get("measurement_units"),
				Sex:              q.Get("sex"),
				AgeValue:         q.Get("age_value"),
				AgeType:          q.Get("age_type"),
				Feet:             q.Get("feet"),
				Inches:           q.Get("inches"),
				Lbs:              q.Get("lbs"),
				ActivityLevel:    q.Get("activity_level"),
			})
		}, false)
	}).Methods(http.MethodGet)

	logger.Default().Debugln("  handle route: /api/exercises/{muscleGroup} GET")
	router.HandleFunc("/api/exercises/{muscleGroup}", func(w http.ResponseWriter, req *http.Request) {
		muscleGroup := mux.Vars(req)["muscleGroup"]
		r.pass(w, req, "Failed to fetch exercises. Please try again later.", func(ctx context.Context) (json.RawMessage, error) {
			return r.Exercises(ctx, muscleGroup)
		}, false)
	}).Methods(http.MethodGet)

	logger.Default().Debugln("  handle route: /api/challenges GET")
	router.HandleFunc("/api/challenges", func(w http.ResponseWriter, req *http.Request) {
		r.pass(w, req, "Failed to fetch exercises", r.BodyWeightExercises, false)
	}).Methods(http.MethodGet)

	logger.Default().Debugln("  handle route: /api/cardiochallenges GET")
	router.HandleFunc("/api/cardiochallenges", func(w http.ResponseWriter, req *http.Request) {
		r.pass(w, req, "Failed to fetch exercises", r.CardioExercises, false)
	}).Methods(http.MethodGet)

	logger.Default().Debugln("  handle route: /recipes GET")
	router.HandleFunc("/recipes", func(w http.ResponseWriter, req *http.Request) {
		query := RecipeQueryFromRequest(req)
		r.pass(w, req, "Failed to fetch recipes", func(ctx context.Context) (json.RawMessage, error) {
			return r.Recipes(ctx, query)
		}, true)
	}).Methods(http.MethodGet)
}

// RecipeQueryFromRequest reads the recipe search parameters from the request query
func RecipeQueryFromRequest(req *http.Request) RecipeQuery {
	q := req.URL.Query()
	return RecipeQuery{
		Protein:              q.Get("protein"),
		AdditionalIngredient: q.Get("additionalIngredient"),
		Intolerance:          q.Get("intolerance"),
		ExcludeIngredient:    q.Get("excludeIngredient"),
		RecipeType:           q.Get("recipeType"),
		DietaryType:          q.Get("dietaryType"),
	}
}

// errorResponse is the body of failed relay requests
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (r *Relay) pass(w http.ResponseWriter, req *http.Request, message string, call func(ctx context.Context) (json.RawMessage, error), withDetails bool) {
	rlog := logger.FromContext(req.Context())
	rlog.Infoln("called route for", req.URL, req.Method)
	body, err := call(req.Context())
	if err != nil {
		var upstreamErr *UpstreamError
		if errors.As(err, &upstreamErr) {
			rlog.WithError(err).WithField("body", upstreamErr.Body).Errorln(message)
		} else {
			rlog.WithError(err).Errorln(message)
		}
		WriteError(w, message, err, withDetails)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// WriteError writes a relay error response with status 500
func WriteError(w http.ResponseWriter, message string, err error, withDetails bool) {
	res := errorResponse{Error: message}
	if withDetails && err != nil {
		res.Details = err.Error()
	}
	jsonData, _ := json.Marshal(res)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write(jsonData)
}

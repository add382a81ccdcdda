package backend

import (
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/workfit/core"
	"github.com/relabs-tech/workfit/core/logger"
	"github.com/relabs-tech/workfit/fitness/relay"
)

// positions of the nutrients in a spoonacular recipe
const (
	nutrientCalories      = 0
	nutrientFat           = 1
	nutrientCarbohydrates = 3
	nutrientProtein       = 10
)

// fallbacks of saved recipes
const (
	unknownTitle      = "Unknown Title"
	untitled          = "Untitled"
	noIngredientName  = "No ingredient name available"
	noInstructionStep = "No instruction available"
)

type nutrient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// spoonacularRecipe is the part of a spoonacular search result a saved recipe is built from
type spoonacularRecipe struct {
	ID        json.RawMessage `json:"id"`
	Title     string          `json:"title"`
	Nutrition struct {
		WeightPerServing json.RawMessage `json:"weightPerServing"`
		Nutrients        []nutrient      `json:"nutrients"`
		CaloricBreakdown json.RawMessage `json:"caloricBreakdown"`
		Ingredients      []struct {
			Name string `json:"name"`
		} `json:"ingredients"`
	} `json:"nutrition"`
	AnalyzedInstructions []struct {
		Steps []struct {
			Step string `json:"step"`
		} `json:"steps"`
	} `json:"analyzedInstructions"`
}

func (s *spoonacularRecipe) nutrient(i int) nutrient {
	if i < len(s.Nutrition.Nutrients) {
		return s.Nutrition.Nutrients[i]
	}
	return nutrient{}
}

// displayRecipe converts a spoonacular recipe into its saved form
func displayRecipe(s *spoonacularRecipe) SavedRecipe {
	recipe := SavedRecipe{
		ID:               strings.Trim(strings.TrimSpace(string(s.ID)), `"`),
		Title:            s.Title,
		WeightPerServing: s.Nutrition.WeightPerServing,
		CaloricBreakdown: s.Nutrition.CaloricBreakdown,
		Ingredients:      []Ingredient{},
		Instructions:     []Instruction{},
	}
	if recipe.Title == "" {
		recipe.Title = unknownTitle
	}
	n := s.nutrient(nutrientCalories)
	recipe.Calories, recipe.CaloriesUnit = n.Amount, n.Unit
	n = s.nutrient(nutrientFat)
	recipe.Fat, recipe.FatUnit = n.Amount, n.Unit
	n = s.nutrient(nutrientCarbohydrates)
	recipe.Carbohydrates, recipe.CarbohydratesUnit = n.Amount, n.Unit
	n = s.nutrient(nutrientProtein)
	recipe.Protein, recipe.ProteinUnit = n.Amount, n.Unit

	for _, i := range s.Nutrition.Ingredients {
		name := i.Name
		if name == "" {
			name = noIngredientName
		}
		recipe.Ingredients = append(recipe.Ingredients, Ingredient{Name: name})
	}
	if len(s.AnalyzedInstructions) > 0 {
		for _, step := range s.AnalyzedInstructions[0].Steps {
			text := step.Step
			if text == "" {
				text = noInstructionStep
			}
			recipe.Instructions = append(recipe.Instructions, Instruction{Step: text})
		}
	}
	return recipe
}

// withFallbacks fills the gaps of a stored recipe
func withFallbacks(recipe SavedRecipe) SavedRecipe {
	if recipe.Title == "" {
		recipe.Title = untitled
	}
	if recipe.Ingredients == nil {
		recipe.Ingredients = []Ingredient{}
	}
	if recipe.Instructions == nil {
		recipe.Instructions = []Instruction{}
	}
	return recipe
}

func (b *Backend) handleRecipes() {
	logger.Default().Debugln("recipes")
	b.handleUser("/me/recipes/search", b.searchRecipes, http.MethodGet)
	b.handleUser("/me/recipes", b.saveRecipe, http.MethodPost)
	b.handleUser("/me/recipes", b.listRecipes, http.MethodGet)
	b.handleUser("/me/recipes/{recipe_id}", b.deleteRecipe, http.MethodDelete)
}

func (b *Backend) saveRecipe(w http.ResponseWriter, r *http.Request, user *User) {
	var source spoonacularRecipe
	if _, err := readJSON(r, &source); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	recipe := displayRecipe(&source)
	if recipe.ID == "" || recipe.ID == "null" || recipe.ID == "0" {
		http.Error(w, "recipe id is missing", http.StatusBadRequest)
		return
	}
	recipe.SavedAt = b.now().UTC()

	created, err := b.store.SaveRecipe(r.Context(), user.UserID, recipe)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4750: cannot save recipe")
		http.Error(w, "Error 4750", http.StatusInternalServerError)
		return
	}
	status, operation := http.StatusOK, core.OperationUpdate
	if created {
		status, operation = http.StatusCreated, core.OperationCreate
	}
	b.notify(r.Context(), "user/recipe", operation, user.UserID, recipe)
	writeJSON(w, status, recipe)
}

func (b *Backend) listRecipes(w http.ResponseWriter, r *http.Request, user *User) {
	recipes, err := b.store.Recipes(r.Context(), user.UserID)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4751: cannot read recipes")
		http.Error(w, "Error 4751", http.StatusInternalServerError)
		return
	}
	result := make([]SavedRecipe, len(recipes))
	for i, recipe := range recipes {
		result[i] = withFallbacks(recipe)
	}
	writeJSON(w, http.StatusOK, result)
}

func (b *Backend) deleteRecipe(w http.ResponseWriter, r *http.Request, user *User) {
	recipeID := mux.Vars(r)["recipe_id"]
	err := b.store.DeleteRecipe(r.Context(), user.UserID, recipeID)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "recipe not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 4752: cannot delete recipe")
		http.Error(w, "Error 4752", http.StatusInternalServerError)
		return
	}
	b.notify(r.Context(), "user/recipe", core.OperationDelete, user.UserID, map[string]string{"id": recipeID})
	w.WriteHeader(http.StatusNoContent)
}

// searchRecipes searches with the dietary type of the profile unless the query names one
func (b *Backend) searchRecipes(w http.ResponseWriter, r *http.Request, user *User) {
	query := relay.RecipeQueryFromRequest(r)
	if query.DietaryType == "" {
		query.DietaryType = user.Profile.DietaryType
	}
	body, err := b.relay.Recipes(r.Context(), query)
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Failed to fetch recipes")
		relay.WriteError(w, "Failed to fetch recipes", err, true)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

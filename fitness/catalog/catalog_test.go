package catalog

import (
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadCatalog(t *testing.T) *Catalog {
	c, err := Load()
	require.NoError(t, err)
	return c
}

func TestFilterByIntensity(t *testing.T) {
	exercises := []Exercise{
		{Name: "a", Intensity: "Beginner"},
		{Name: "b", Intensity: "Beginner, Intermediate"},
		{Name: "c", Intensity: "Advanced"},
	}
	assert.Len(t, FilterByIntensity(exercises, IntensityAll), 3)
	assert.Len(t, FilterByIntensity(exercises, ""), 3)

	intermediate := FilterByIntensity(exercises, "Intermediate")
	require.Len(t, intermediate, 1)
	assert.Equal(t, "b", intermediate[0].Name)
	assert.Len(t, FilterByIntensity(exercises, "Beginner"), 2)
	assert.NotNil(t, FilterByIntensity(exercises, "Expert"))
	assert.Empty(t, FilterByIntensity(exercises, "Expert"))
}

func TestExactMatchFilters(t *testing.T) {
	c := loadCatalog(t)
	low := c.CardioByEnduranceLevel("Low Endurance")
	require.NotEmpty(t, low)
	for _, e := range low {
		assert.Equal(t, "Low Endurance", e.EnduranceLevel)
	}
	assert.Empty(t, c.CardioByEnduranceLevel("low endurance"))

	static := c.StretchesByCategory("Static")
	require.NotEmpty(t, static)
	for _, s := range static {
		assert.Equal(t, "Static", s.Category)
	}
	assert.Empty(t, c.StretchesByCategory("Static "))
}

func TestAdjustSets(t *testing.T) {
	assert.Equal(t, 2, AdjustSets(4, "Beginner"))
	assert.Equal(t, 1, AdjustSets(3, "Beginner"))
	assert.Equal(t, 3, AdjustSets(5, "Intermediate"))
	assert.Equal(t, 5, AdjustSets(5, "Advanced"))
	assert.Equal(t, 5, AdjustSets(5, "Expert"))
}

func TestRecommendPrograms(t *testing.T) {
	c := loadCatalog(t)
	require.Greater(t, len(c.programs), recommendedPrograms)
	original := c.programs[0].Exercises[0].Sets

	programs := c.RecommendPrograms("", rand.New(rand.NewSource(1)))
	require.Len(t, programs, recommendedPrograms)

	seen := map[string]bool{}
	for _, p := range programs {
		assert.False(t, seen[p.Name], "duplicate program %s", p.Name)
		seen[p.Name] = true
		source := findProgram(t, c, p.Name)
		for i, e := range p.Exercises {
			assert.Equal(t, AdjustSets(source.Exercises[i].Sets, "Beginner"), e.Sets)
		}
	}
	assert.Equal(t, original, c.programs[0].Exercises[0].Sets)

	advanced := c.RecommendPrograms("Advanced", rand.New(rand.NewSource(1)))
	for _, p := range advanced {
		source := findProgram(t, c, p.Name)
		for i, e := range p.Exercises {
			assert.Equal(t, source.Exercises[i].Sets, e.Sets)
		}
	}
}

func findProgram(t *testing.T, c *Catalog, name string) Program {
	for _, p := range c.programs {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("program %s not found", name)
	return Program{}
}

func TestDailyChallenges(t *testing.T) {
	c := loadCatalog(t)
	for _, level := range Levels {
		challenges, err := c.DailyChallenges(level)
		require.NoError(t, err)
		assert.NotEmpty(t, challenges)
	}
	_, err := c.DailyChallenges("Expert")
	assert.ErrorIs(t, err, ErrUnknownLevel)

	_, err = ParseLevel("beginner")
	assert.ErrorIs(t, err, ErrUnknownLevel)
	level, err := ParseLevel("Advanced")
	assert.NoError(t, err)
	assert.Equal(t, Advanced, level)
}

func TestRoutes(t *testing.T) {
	c := loadCatalog(t)
	router := mux.NewRouter()
	c.HandleRoutes(router)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := get("/catalog/muscle-groups/1?intensity=Advanced")
	require.Equal(t, http.StatusOK, rec.Code)
	var group MuscleGroup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &group))
	assert.Equal(t, 1, group.ID)
	require.NotEmpty(t, group.Exercises)
	for _, e := range group.Exercises {
		assert.Contains(t, e.Intensity, "Advanced")
	}

	assert.Equal(t, http.StatusNotFound, get("/catalog/muscle-groups/999").Code)
	assert.Equal(t, http.StatusBadRequest, get("/catalog/muscle-groups/chest").Code)

	rec = get("/catalog/stretches?category=Dynamic")
	require.Equal(t, http.StatusOK, rec.Code)
	var stretches []Stretch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stretches))
	assert.Len(t, stretches, len(c.StretchesByCategory("Dynamic")))

	rec = get("/catalog/cardio?enduranceLevel=Nothing")
	assert.JSONEq(t, "[]", rec.Body.String())
}

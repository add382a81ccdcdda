package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/workfit/core/logger"
)

// HandleRoutes adds the public catalog routes to the router
func (c *Catalog) HandleRoutes(router *mux.Router) {
	logger.Default().Debugln("catalog")
	logger.Default().Debugln("  handle route: /catalog/muscle-groups GET")
	router.HandleFunc("/catalog/muscle-groups", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		writeJSON(w, c.MuscleGroups())
	}).Methods(http.MethodGet)

	logger.Default().Debugln("  handle route: /catalog/muscle-groups/{id} GET")
	router.HandleFunc("/catalog/muscle-groups/{id}", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			http.Error(w, "invalid muscle group id", http.StatusBadRequest)
			return
		}
		group, err := c.MuscleGroup(id)
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "Muscle group not found!", http.StatusNotFound)
			return
		}
		group.Exercises = FilterByIntensity(group.Exercises, r.URL.Query().Get("intensity"))
		writeJSON(w, group)
	}).Methods(http.MethodGet)

	logger.Default().Debugln("  handle route: /catalog/cardio GET")
	router.HandleFunc("/catalog/cardio", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		writeJSON(w, c.CardioByEnduranceLevel(r.URL.Query().Get("enduranceLevel")))
	}).Methods(http.MethodGet)

	logger.Default().Debugln("  handle route: /catalog/stretches GET")
	router.HandleFunc("/catalog/stretches", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		writeJSON(w, c.StretchesByCategory(r.URL.Query().Get("category")))
	}).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, value interface{}) {
	jsonData, _ := json.Marshal(value)
	w.Header().Set("Content-Type", "application/json")
	w.Write(jsonData)
}

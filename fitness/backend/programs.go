package backend

import (
	"net/http"

	"github.com/relabs-tech/workfit/core/logger"
	"github.com/relabs-tech/workfit/fitness/catalog"
)

func (b *Backend) handlePrograms() {
	logger.Default().Debugln("programs")
	b.handleUser("/programs/recommended", b.recommendedPrograms, http.MethodGet)
}

// recommendedPrograms recommends programs for the experience of the user
func (b *Backend) recommendedPrograms(w http.ResponseWriter, r *http.Request, user *User) {
	b.rndMutex.Lock()
	programs := b.catalog.RecommendPrograms(user.Profile.Experience, b.rnd)
	b.rndMutex.Unlock()
	if programs == nil {
		programs = []catalog.Program{}
	}
	writeJSON(w, http.StatusOK, programs)
}

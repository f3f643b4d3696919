package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"crashd/domain/entities"
)

const (
	defaultFairnessLimit = 25
	maxFairnessLimit     = 100
)

// handleFairnessRounds serves the public audit trail. Server seeds of rounds
// still inside the reveal grace period come back null; everything needed to
// verify older rounds is included.
func (s *Server) handleFairnessRounds(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > maxFairnessLimit {
		limit = defaultFairnessLimit
	}

	rounds, err := s.roundRepo.GetRecentCrashed(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	now := time.Now().UTC()
	records := make([]entities.FairnessRecord, 0, len(rounds))
	for _, round := range rounds {
		record := entities.FairnessRecord{
			RoundNumber:    round.Number,
			ServerSeedHash: round.ServerSeedHash,
			ClientSeed:     round.ClientSeed,
			Nonce:          round.Nonce,
			CrashPoint:     round.CrashPoint,
			EndedAt:        round.EndedAt,
		}
		if round.SeedRevealedAfter(now, s.cfg.SeedRevealGrace) {
			seed := round.ServerSeed
			record.ServerSeed = &seed
		}
		records = append(records, record)
	}

	writeJSON(w, http.StatusOK, struct {
		Rounds []entities.FairnessRecord `json:"rounds"`
	}{records})
}

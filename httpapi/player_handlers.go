package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"crashd/domain/entities"
	"crashd/domain/interfaces"
	"crashd/domain/services"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(r.Context()); err != nil {
		writeError(w, r, fmt.Errorf("failed to begin transaction: %w", err))
		return
	}
	defer uow.Rollback()

	settings, err := services.NewSettingsService(uow).Get(r.Context(), identityFrom(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch interfaces.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(r.Context()); err != nil {
		writeError(w, r, fmt.Errorf("failed to begin transaction: %w", err))
		return
	}
	defer uow.Rollback()

	settings, err := services.NewSettingsService(uow).Update(r.Context(), identityFrom(r).UserID, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := uow.Commit(); err != nil {
		writeError(w, r, fmt.Errorf("failed to commit settings: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleFarmingStatus(w http.ResponseWriter, r *http.Request) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(r.Context()); err != nil {
		writeError(w, r, fmt.Errorf("failed to begin transaction: %w", err))
		return
	}
	defer uow.Rollback()

	wallet := services.NewWalletService(uow, s.cfg.FarmingCycle, s.cfg.FarmingReward)
	status, err := wallet.FarmingStatus(r.Context(), identityFrom(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		CanClaim           bool       `json:"canClaim"`
		Reward             int64      `json:"reward"`
		NextClaimInSeconds int64      `json:"nextClaimInSeconds"`
		LastClaimAt        *time.Time `json:"lastClaimAt"`
	}{status.CanClaim, status.Reward, int64(status.NextClaimIn.Seconds()), status.LastClaimAt})
}

func (s *Server) handleFarmingClaim(w http.ResponseWriter, r *http.Request) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(r.Context()); err != nil {
		writeError(w, r, fmt.Errorf("failed to begin transaction: %w", err))
		return
	}
	defer uow.Rollback()

	wallet := services.NewWalletService(uow, s.cfg.FarmingCycle, s.cfg.FarmingReward)
	balance, err := wallet.ClaimFarming(r.Context(), identityFrom(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := uow.Commit(); err != nil {
		writeError(w, r, fmt.Errorf("failed to commit claim: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	by := entities.LeaderboardSort(r.URL.Query().Get("by"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.leaderboard.Top(r.Context(), by, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Entries []*entities.LeaderboardEntry `json:"entries"`
	}{entries})
}

package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"crashd/domain/apperr"
	"crashd/domain/entities"
	"crashd/domain/services"
)

func pagination(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.AdminStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 200)

	users, err := s.userRepo.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	writeJSON(w, http.StatusOK, struct {
		Users []userView `json:"users"`
	}{views})
}

// handleAdminUserPatch applies an allowlisted partial update. A non-zero
// balanceDelta runs through the wallet so it leaves a ledger trail.
func (s *Server) handleAdminUserPatch(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, apperr.New(apperr.InvalidArgument, "invalid user id"))
		return
	}

	var req struct {
		Role         *string `json:"role"`
		IsActive     *bool   `json:"isActive"`
		Username     *string `json:"username"`
		BalanceDelta *int64  `json:"balanceDelta"`
		Reason       string  `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	fields := make(map[string]any)
	if req.Role != nil {
		role := entities.Role(*req.Role)
		if role != entities.RolePlayer && role != entities.RoleAdmin {
			writeError(w, r, apperr.Newf(apperr.InvalidArgument, "unknown role %q", *req.Role))
			return
		}
		fields["role"] = string(role)
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.Username != nil {
		if len(*req.Username) < 3 || len(*req.Username) > 32 {
			writeError(w, r, apperr.New(apperr.InvalidArgument, "username must be 3-32 characters"))
			return
		}
		fields["username"] = *req.Username
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(r.Context()); err != nil {
		writeError(w, r, fmt.Errorf("failed to begin transaction: %w", err))
		return
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByIDForUpdate(r.Context(), userID)
	if err != nil {
		writeError(w, r, fmt.Errorf("failed to load user: %w", err))
		return
	}
	if user == nil {
		writeError(w, r, apperr.New(apperr.NotFound, "user not found"))
		return
	}

	if len(fields) > 0 {
		if err := uow.UserRepository().UpdateFields(r.Context(), userID, fields); err != nil {
			writeError(w, r, fmt.Errorf("failed to update user: %w", err))
			return
		}
	}
	if req.BalanceDelta != nil && *req.BalanceDelta != 0 {
		description := req.Reason
		if description == "" {
			description = fmt.Sprintf("admin adjustment by %s", identityFrom(r).Username)
		}
		wallet := services.NewWalletService(uow, s.cfg.FarmingCycle, s.cfg.FarmingReward)
		if _, err := wallet.AdjustBalance(r.Context(), userID, *req.BalanceDelta, entities.TransactionTypeAdjustment, description); err != nil {
			writeError(w, r, err)
			return
		}
	}

	updated, err := uow.UserRepository().GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, fmt.Errorf("failed to reload user: %w", err))
		return
	}
	if err := uow.Commit(); err != nil {
		writeError(w, r, fmt.Errorf("failed to commit update: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, toUserView(updated))
}

type roundView struct {
	ID             int64      `json:"id"`
	Number         int64      `json:"roundNumber"`
	ServerSeedHash string     `json:"serverSeedHash"`
	ClientSeed     string     `json:"clientSeed"`
	Nonce          int64      `json:"nonce"`
	CrashPoint     int64      `json:"crashPoint"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt"`
}

func (s *Server) handleAdminRounds(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50, 200)

	rounds, err := s.roundRepo.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]roundView, 0, len(rounds))
	for _, round := range rounds {
		views = append(views, roundView{
			ID:             round.ID,
			Number:         round.Number,
			ServerSeedHash: round.ServerSeedHash,
			ClientSeed:     round.ClientSeed,
			Nonce:          round.Nonce,
			CrashPoint:     round.CrashPoint,
			Status:         string(round.Status),
			CreatedAt:      round.CreatedAt,
			StartedAt:      round.StartedAt,
			EndedAt:        round.EndedAt,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Rounds []roundView `json:"rounds"`
	}{views})
}

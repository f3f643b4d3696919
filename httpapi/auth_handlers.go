package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"crashd/auth"
	"crashd/domain/apperr"
	"crashd/domain/entities"
)

// errUserGone covers tokens that outlive their account row
var errUserGone = apperr.New(apperr.Unauthenticated, "account is unavailable")

// userView is the public JSON shape of a user. Internal columns like the
// password hash never leave the server.
type userView struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Role         string     `json:"role"`
	Balance      int64      `json:"balance"`
	TotalWagered int64      `json:"totalWagered"`
	TotalWon     int64      `json:"totalWon"`
	TotalLost    int64      `json:"totalLost"`
	NetProfit    int64      `json:"netProfit"`
	GamesPlayed  int64      `json:"gamesPlayed"`
	GamesWon     int64      `json:"gamesWon"`
	WinRate      float64    `json:"winRate"`
	BiggestWin   int64      `json:"biggestWin"`
	BiggestLoss  int64      `json:"biggestLoss"`
	XP           int64      `json:"xp"`
	Level        int        `json:"level"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt"`
}

func toUserView(u *entities.User) userView {
	return userView{
		ID:           u.ID,
		Username:     u.Username,
		Role:         string(u.Role),
		Balance:      u.Balance,
		TotalWagered: u.TotalWagered,
		TotalWon:     u.TotalWon,
		TotalLost:    u.TotalLost,
		NetProfit:    u.NetProfit(),
		GamesPlayed:  u.GamesPlayed,
		GamesWon:     u.GamesWon,
		WinRate:      u.WinRate(),
		BiggestWin:   u.BiggestWin,
		BiggestLoss:  u.BiggestLoss,
		XP:           u.XP,
		Level:        u.Level,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		LastLoginAt:  u.LastLoginAt,
	}
}

type authResponse struct {
	User         userView `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
}

func authResponseOf(user *entities.User, pair *auth.TokenPair) authResponse {
	return authResponse{
		User:         toUserView(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}
}

func (s *Server) handleTelegramLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InitData string `json:"initData"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, pair, err := s.creds.LoginTelegram(r.Context(), req.InitData)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponseOf(user, pair))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, pair, err := s.creds.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponseOf(user, pair))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Key      string `json:"key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, pair, err := s.creds.Register(r.Context(), req.Username, req.Password, req.Key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponseOf(user, pair))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	access, err := s.creds.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.creds.Logout(identityFrom(r).UserID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ledgerEntryView struct {
	ID            int64     `json:"id"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	BalanceBefore int64     `json:"balanceBefore"`
	BalanceAfter  int64     `json:"balanceAfter"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"createdAt"`
}

const profileLedgerTail = 20

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	uow := s.uowFactory.Create()
	if err := uow.Begin(r.Context()); err != nil {
		writeError(w, r, fmt.Errorf("failed to begin transaction: %w", err))
		return
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, r, fmt.Errorf("failed to load user: %w", err))
		return
	}
	if user == nil {
		s.creds.Logout(identity.UserID)
		writeError(w, r, errUserGone)
		return
	}
	entries, err := uow.LedgerRepository().GetByUser(r.Context(), identity.UserID, profileLedgerTail)
	if err != nil {
		writeError(w, r, fmt.Errorf("failed to load ledger: %w", err))
		return
	}

	ledger := make([]ledgerEntryView, 0, len(entries))
	for _, e := range entries {
		ledger = append(ledger, ledgerEntryView{
			ID:            e.ID,
			Type:          string(e.Type),
			Amount:        e.Amount,
			BalanceBefore: e.BalanceBefore,
			BalanceAfter:  e.BalanceAfter,
			Description:   e.Description,
			CreatedAt:     e.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, struct {
		User   userView          `json:"user"`
		Ledger []ledgerEntryView `json:"ledger"`
	}{toUserView(user), ledger})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Old string `json:"old"`
		New string `json:"new"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.creds.ChangePassword(r.Context(), identityFrom(r).UserID, req.Old, req.New); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

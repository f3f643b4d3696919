// Package httpapi is the request front-end: a JSON surface over the
// credential service, wallet, settings, fairness audit and admin queries.
// Game actions never pass through here; those ride the websocket.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"crashd/auth"
	"crashd/config"
	"crashd/domain/entities"
	"crashd/domain/interfaces"
	"crashd/domain/services"

	"golang.org/x/time/rate"
)

// CredentialService is the server's view of the credential layer
type CredentialService interface {
	Authenticator
	Register(ctx context.Context, username, password, registrationKey string) (*entities.User, *auth.TokenPair, error)
	Login(ctx context.Context, username, password string) (*entities.User, *auth.TokenPair, error)
	LoginTelegram(ctx context.Context, initData string) (*entities.User, *auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(userID int64)
	ChangePassword(ctx context.Context, userID int64, current, next string) error
}

// Server routes the HTTP surface. Mutating player operations go through a
// unit of work per request; read-only queries run on pool-backed
// repositories.
type Server struct {
	cfg           *config.Config
	authenticator Authenticator
	creds         CredentialService
	uowFactory    interfaces.UnitOfWorkFactory
	userRepo      interfaces.UserRepository
	roundRepo     interfaces.RoundRepository
	leaderboard   *services.LeaderboardService
	stats         *services.StatsService

	allowAllOrigins bool
	allowedOrigins  map[string]bool
	adminAllowlist  map[string]bool
	authLimiter     *limiterRegistry
	settingsLimiter *limiterRegistry
	adminLimiter    *limiterRegistry

	mux *http.ServeMux
}

// NewServer wires the HTTP surface
func NewServer(
	cfg *config.Config,
	creds CredentialService,
	uowFactory interfaces.UnitOfWorkFactory,
	userRepo interfaces.UserRepository,
	roundRepo interfaces.RoundRepository,
	leaderboard *services.LeaderboardService,
	stats *services.StatsService,
) *Server {
	s := &Server{
		cfg:            cfg,
		authenticator:  creds,
		creds:          creds,
		uowFactory:     uowFactory,
		userRepo:       userRepo,
		roundRepo:      roundRepo,
		leaderboard:    leaderboard,
		stats:          stats,
		allowedOrigins: make(map[string]bool),
		adminAllowlist: make(map[string]bool),
		authLimiter:    newLimiterRegistry(rate.Limit(5), 10),
		// Settings writes are capped at 12 per minute per user
		settingsLimiter: newLimiterRegistry(rate.Every(5*time.Second), 12),
		adminLimiter:    newLimiterRegistry(rate.Limit(1), 5),
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			s.allowAllOrigins = true
		}
		s.allowedOrigins[origin] = true
	}
	for _, ip := range cfg.AdminIPAllowlist {
		s.adminAllowlist[ip] = true
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/auth/telegram", rateLimited(s.authLimiter, s.handleTelegramLogin))
	mux.HandleFunc("POST /api/auth/admin/login", rateLimited(s.authLimiter, s.handleLogin))
	mux.HandleFunc("POST /api/auth/admin/register", rateLimited(s.authLimiter, s.handleRegister))
	mux.HandleFunc("POST /api/auth/refresh", rateLimited(s.authLimiter, s.handleRefresh))
	mux.HandleFunc("POST /api/auth/logout", s.requireAuth(s.handleLogout))
	mux.HandleFunc("GET /api/auth/profile", s.requireAuth(s.handleProfile))
	mux.HandleFunc("POST /api/auth/password", s.requireAuth(s.handleChangePassword))

	mux.HandleFunc("GET /api/player/settings", s.requireAuth(s.handleGetSettings))
	mux.HandleFunc("PUT /api/player/settings", s.requireAuth(rateLimitedPerUser(s.settingsLimiter, s.handleUpdateSettings)))
	mux.HandleFunc("GET /api/farming/status", s.requireAuth(s.handleFarmingStatus))
	mux.HandleFunc("POST /api/farming/claim", s.requireAuth(s.handleFarmingClaim))

	mux.HandleFunc("GET /api/fairness/rounds", s.handleFairnessRounds)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)

	mux.HandleFunc("GET /api/admin/stats", s.requireAdmin(rateLimitedPerUser(s.adminLimiter, s.handleAdminStats)))
	mux.HandleFunc("GET /api/admin/users", s.requireAdmin(rateLimitedPerUser(s.adminLimiter, s.handleAdminUsers)))
	mux.HandleFunc("PATCH /api/admin/users/{id}", s.requireAdmin(rateLimitedPerUser(s.adminLimiter, s.handleAdminUserPatch)))
	mux.HandleFunc("GET /api/admin/rounds", s.requireAdmin(rateLimitedPerUser(s.adminLimiter, s.handleAdminRounds)))

	s.mux = mux
}

// Handler returns the full middleware chain
func (s *Server) Handler() http.Handler {
	return s.cors(s.mux)
}

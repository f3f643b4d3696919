package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crashd/database"
	"crashd/domain/entities"
	"crashd/infrastructure/observability"

	"github.com/jackc/pgx/v5"
)

const userColumns = `
	id, telegram_id, username, role, balance,
	total_wagered, total_won, total_lost, games_played, games_won,
	biggest_win, biggest_loss, xp, level, is_active,
	password_hash, last_farming_at, created_at, last_login_at`

// UserRepository implements user data access
type UserRepository struct {
	q Queryable
}

// NewUserRepository creates a new user repository over the pool
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

func newUserRepository(tx Queryable) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var u entities.User
	err := row.Scan(
		&u.ID,
		&u.TelegramID,
		&u.Username,
		&u.Role,
		&u.Balance,
		&u.TotalWagered,
		&u.TotalWon,
		&u.TotalLost,
		&u.GamesPlayed,
		&u.GamesWon,
		&u.BiggestWin,
		&u.BiggestLoss,
		&u.XP,
		&u.Level,
		&u.IsActive,
		&u.PasswordHash,
		&u.LastFarmingAt,
		&u.CreatedAt,
		&u.LastLoginAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// GetByIDForUpdate retrieves a user by id with a row lock so concurrent
// balance mutations for the same user serialize.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error) {
	defer observability.GetMetrics().MeasureDatabaseQuery("user", "GetByIDForUpdate")()
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	user, err := scanUser(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", id, err)
	}
	return user, nil
}

// GetByTelegramID retrieves a user by their external messaging-platform id
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE telegram_id = $1`
	user, err := scanUser(r.q.QueryRow(ctx, query, telegramID))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram id %d: %w", telegramID, err)
	}
	return user, nil
}

// GetByUsername retrieves a user by display handle
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE username = $1`
	user, err := scanUser(r.q.QueryRow(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username %q: %w", username, err)
	}
	return user, nil
}

// Create inserts a user row together with its default settings row.
func (r *UserRepository) Create(ctx context.Context, user *entities.User) (*entities.User, error) {
	query := `
		INSERT INTO users (telegram_id, username, role, balance, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if user.Role == "" {
		user.Role = entities.RolePlayer
	}
	err := r.q.QueryRow(ctx, query,
		user.TelegramID,
		user.Username,
		user.Role,
		user.Balance,
		user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", user.Username, err)
	}
	user.IsActive = true
	user.Level = 1

	settings := entities.DefaultPlayerSettings(user.ID)
	settingsQuery := `
		INSERT INTO player_settings (
			user_id, auto_cashout_enabled, auto_cashout_multiplier, sound_enabled,
			daily_limits_enabled, max_daily_wager, max_daily_loss, max_games_per_day
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.q.Exec(ctx, settingsQuery,
		settings.UserID,
		settings.AutoCashoutEnabled,
		settings.AutoCashoutMultiplier,
		settings.SoundEnabled,
		settings.DailyLimitsEnabled,
		settings.MaxDailyWager,
		settings.MaxDailyLoss,
		settings.MaxGamesPerDay,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create default settings for user %d: %w", user.ID, err)
	}

	return user, nil
}

// UpdateBalance sets a user's balance
func (r *UserRepository) UpdateBalance(ctx context.Context, userID int64, newBalance int64) error {
	query := `UPDATE users SET balance = $1 WHERE id = $2`
	tag, err := r.q.Exec(ctx, query, newBalance, userID)
	if err != nil {
		return fmt.Errorf("failed to update balance for user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no user %d to update balance for", userID)
	}
	return nil
}

// ApplyWagerOutcome bumps aggregate counters after a wager settles.
func (r *UserRepository) ApplyWagerOutcome(ctx context.Context, userID int64, wagered, netWin, stakeLost int64, won bool) error {
	query := `
		UPDATE users SET
			total_wagered = total_wagered + $1,
			total_won = total_won + $2,
			total_lost = total_lost + $3,
			games_played = games_played + 1,
			games_won = games_won + CASE WHEN $4 THEN 1 ELSE 0 END,
			biggest_win = GREATEST(biggest_win, $2),
			biggest_loss = GREATEST(biggest_loss, $3)
		WHERE id = $5
	`
	if _, err := r.q.Exec(ctx, query, wagered, netWin, stakeLost, won, userID); err != nil {
		return fmt.Errorf("failed to apply wager outcome for user %d: %w", userID, err)
	}
	return nil
}

// allowed admin-updatable columns
var adminUpdatableColumns = map[string]string{
	"username": "username",
	"role":     "role",
	"isActive": "is_active",
	"balance":  "balance",
}

// UpdateFields applies an admin partial update over an allowlist of columns.
func (r *UserRepository) UpdateFields(ctx context.Context, userID int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	set := ""
	args := make([]any, 0, len(fields)+1)
	for name, value := range fields {
		column, ok := adminUpdatableColumns[name]
		if !ok {
			return fmt.Errorf("field %q is not updatable", name)
		}
		if set != "" {
			set += ", "
		}
		args = append(args, value)
		set += fmt.Sprintf("%s = $%d", column, len(args))
	}
	args = append(args, userID)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", set, len(args))
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no user %d to update", userID)
	}
	return nil
}

// UpdatePassword sets a new password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1 WHERE id = $2`
	if _, err := r.q.Exec(ctx, query, passwordHash, userID); err != nil {
		return fmt.Errorf("failed to update password for user %d: %w", userID, err)
	}
	return nil
}

// TouchLogin records a successful authentication
func (r *UserRepository) TouchLogin(ctx context.Context, userID int64, at time.Time) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`
	if _, err := r.q.Exec(ctx, query, at, userID); err != nil {
		return fmt.Errorf("failed to touch login for user %d: %w", userID, err)
	}
	return nil
}

// SetLastFarmingAt records a farming claim timestamp
func (r *UserRepository) SetLastFarmingAt(ctx context.Context, userID int64, at time.Time) error {
	query := `UPDATE users SET last_farming_at = $1 WHERE id = $2`
	if _, err := r.q.Exec(ctx, query, at, userID); err != nil {
		return fmt.Errorf("failed to set farming claim for user %d: %w", userID, err)
	}
	return nil
}

// AddXP adds experience points and recomputes the level (1000 XP per level).
func (r *UserRepository) AddXP(ctx context.Context, userID int64, xp int64) error {
	query := `UPDATE users SET xp = xp + $1, level = (xp + $1) / 1000 + 1 WHERE id = $2`
	if _, err := r.q.Exec(ctx, query, xp, userID); err != nil {
		return fmt.Errorf("failed to add xp for user %d: %w", userID, err)
	}
	return nil
}

// List returns users ordered by creation, newest first
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*entities.User, error) {
	query := `SELECT` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*entities.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Count returns the total and active user counts
func (r *UserRepository) Count(ctx context.Context) (int64, int64, error) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM users`
	var total, active int64
	if err := r.q.QueryRow(ctx, query).Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, active, nil
}

// Leaderboard returns the top users under the given ordering.
func (r *UserRepository) Leaderboard(ctx context.Context, by entities.LeaderboardSort, limit, minGames int) ([]*entities.LeaderboardEntry, error) {
	var orderBy, where string
	switch by {
	case entities.LeaderboardByBalance:
		orderBy = "balance DESC"
	case entities.LeaderboardByTotalWon:
		orderBy = "total_won DESC"
	case entities.LeaderboardByLevel:
		orderBy = "level DESC, xp DESC"
	case entities.LeaderboardByWinRate:
		orderBy = "(games_won::float / games_played) DESC"
		where = fmt.Sprintf("AND games_played >= %d", minGames)
	default:
		return nil, fmt.Errorf("unsupported leaderboard sort %q", by)
	}

	query := fmt.Sprintf(`
		SELECT username, balance, total_won, games_played, games_won, level
		FROM users
		WHERE is_active %s
		ORDER BY %s
		LIMIT $1
	`, where, orderBy)

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var result []*entities.LeaderboardEntry
	rank := 0
	for rows.Next() {
		var e entities.LeaderboardEntry
		var gamesWon int64
		if err := rows.Scan(&e.Username, &e.Balance, &e.TotalWon, &e.GamesPlayed, &gamesWon, &e.Level); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		if e.GamesPlayed > 0 {
			e.WinRate = float64(gamesWon) / float64(e.GamesPlayed)
		}
		rank++
		e.Rank = rank
		result = append(result, &e)
	}
	return result, rows.Err()
}

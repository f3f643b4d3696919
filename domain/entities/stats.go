package entities

// LeaderboardSort enumerates the supported leaderboard orderings
type LeaderboardSort string

const (
	LeaderboardByBalance  LeaderboardSort = "balance"
	LeaderboardByTotalWon LeaderboardSort = "totalWon"
	LeaderboardByWinRate  LeaderboardSort = "winRate"
	LeaderboardByLevel    LeaderboardSort = "level"
)

// MinGamesForWinRate excludes low-volume users from the winRate ordering.
const MinGamesForWinRate = 10

// ValidLeaderboardSort checks a client-supplied sort key
func ValidLeaderboardSort(s LeaderboardSort) bool {
	switch s {
	case LeaderboardByBalance, LeaderboardByTotalWon, LeaderboardByWinRate, LeaderboardByLevel:
		return true
	}
	return false
}

// LeaderboardEntry is one row of the public leaderboard.
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	Username    string  `json:"username"`
	Balance     int64   `json:"balance"`
	TotalWon    int64   `json:"totalWon"`
	WinRate     float64 `json:"winRate"`
	Level       int     `json:"level"`
	GamesPlayed int64   `json:"gamesPlayed"`
}

// AdminStats aggregates operator-facing totals across the whole system.
// HouseProfit is total stakes minus total payouts.
type AdminStats struct {
	TotalUsers  int64 `json:"totalUsers"`
	ActiveUsers int64 `json:"activeUsers"`
	TotalRounds int64 `json:"totalRounds"`
	TotalWagers int64 `json:"totalWagers"`
	TotalStaked int64 `json:"totalStaked"`
	TotalPayout int64 `json:"totalPayout"`
	HouseProfit int64 `json:"houseProfit"`
}

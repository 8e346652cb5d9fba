package entity

import "time"

const (
	ResultWin  = "win"
	ResultLoss = "loss"
	ResultDraw = "draw"
)

// Leaderboard score deltas. Applied uniformly, including on the first game a
// player ever records.
const (
	ScoreWin  = 10
	ScoreDraw = 5
	ScoreLoss = -5
)

// GameRecord - one finished game, append-only. WinnerID is empty for a draw.
type GameRecord struct {
	PlayerX  PlayerRef `json:"player_x"`
	PlayerO  PlayerRef `json:"player_o"`
	WinnerID string    `json:"winner_id,omitempty"`
	EndedAt  time.Time `json:"ended_at"`
}

// StatsDelta - the leaderboard counter increments for one finished game.
type StatsDelta struct {
	TotalGames int
	Wins       int
	Losses     int
	Draws      int
	Score      int
}

// DeltaFor - the counter increments one player earns for a result.
func DeltaFor(result string) StatsDelta {
	delta := StatsDelta{TotalGames: 1}

	switch result {
	case ResultWin:
		delta.Wins = 1
		delta.Score = ScoreWin
	case ResultLoss:
		delta.Losses = 1
		delta.Score = ScoreLoss
	case ResultDraw:
		delta.Draws = 1
		delta.Score = ScoreDraw
	}

	return delta
}

// PlayerStats - one leaderboard row.
type PlayerStats struct {
	PlayerID   string    `json:"player_id"`
	Nickname   string    `json:"nickname"`
	TotalGames int       `json:"total_games"`
	Wins       int       `json:"wins"`
	Losses     int       `json:"losses"`
	Draws      int       `json:"draws"`
	Score      int       `json:"score"`
	LastPlayed time.Time `json:"last_played"`
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clickwinreign/tictactoe-backend/internal/apperror"
	"github.com/clickwinreign/tictactoe-backend/internal/entity"
)

type LeaderboardRepository interface {
	IncrementStats(ctx context.Context, playerID, nickname string, delta entity.StatsDelta) error
	GetByPlayerID(ctx context.Context, playerID string) (*entity.PlayerStats, error)
	TopPlayers(ctx context.Context, limit int) ([]*entity.PlayerStats, error)
}

type leaderboardRepository struct {
	conn *sql.DB
}

func NewLeaderboardRepository(conn *sql.DB) LeaderboardRepository {
	return &leaderboardRepository{
		conn: conn,
	}
}

// IncrementStats - upsert: a missing row is created with zeroed counters and
// the same delta applied, so the scoring convention is uniform for new and
// existing players.
func (that *leaderboardRepository) IncrementStats(ctx context.Context, playerID, nickname string, delta entity.StatsDelta) error {
	query := `INSERT INTO leaderboard (player_id, nickname, total_games, wins, losses, draws, score, last_played)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			nickname = excluded.nickname,
			total_games = total_games + excluded.total_games,
			wins = wins + excluded.wins,
			losses = losses + excluded.losses,
			draws = draws + excluded.draws,
			score = score + excluded.score,
			last_played = excluded.last_played`

	_, err := that.conn.ExecContext(ctx, query,
		playerID, nickname,
		delta.TotalGames, delta.Wins, delta.Losses, delta.Draws, delta.Score,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("can't update leaderboard: %w", err)
	}

	return nil
}

func (that *leaderboardRepository) GetByPlayerID(ctx context.Context, playerID string) (*entity.PlayerStats, error) {
	query := `SELECT player_id, nickname, total_games, wins, losses, draws, score, last_played
		FROM leaderboard WHERE player_id = ?`

	var stats entity.PlayerStats

	err := that.conn.QueryRowContext(ctx, query, playerID).Scan(
		&stats.PlayerID, &stats.Nickname,
		&stats.TotalGames, &stats.Wins, &stats.Losses, &stats.Draws, &stats.Score,
		&stats.LastPlayed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't find leaderboard row: %w", err)
	}

	return &stats, nil
}

// TopPlayers - highest score first.
func (that *leaderboardRepository) TopPlayers(ctx context.Context, limit int) ([]*entity.PlayerStats, error) {
	query := `SELECT player_id, nickname, total_games, wins, losses, draws, score, last_played
		FROM leaderboard ORDER BY score DESC, wins DESC LIMIT ?`

	rows, err := that.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("can't list leaderboard: %w", err)
	}
	defer rows.Close()

	var players []*entity.PlayerStats
	for rows.Next() {
		var stats entity.PlayerStats
		err = rows.Scan(
			&stats.PlayerID, &stats.Nickname,
			&stats.TotalGames, &stats.Wins, &stats.Losses, &stats.Draws, &stats.Score,
			&stats.LastPlayed,
		)
		if err != nil {
			return nil, fmt.Errorf("can't scan leaderboard row: %w", err)
		}

		players = append(players, &stats)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't read leaderboard rows: %w", err)
	}

	return players, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clickwinreign/tictactoe-backend/internal/entity"
)

type GameRecordRepository interface {
	Save(ctx context.Context, record *entity.GameRecord) error
	List(ctx context.Context, limit int) ([]*entity.GameRecord, error)
}

type gameRecordRepository struct {
	conn *sql.DB
}

func NewGameRecordRepository(conn *sql.DB) GameRecordRepository {
	return &gameRecordRepository{
		conn: conn,
	}
}

// Save - appends one finished game. Records are never updated or deleted.
func (that *gameRecordRepository) Save(ctx context.Context, record *entity.GameRecord) error {
	query := `INSERT INTO game_history (player_x_id, player_x_name, player_o_id, player_o_name, winner_id, ended_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := that.conn.ExecContext(ctx, query,
		record.PlayerX.ID, record.PlayerX.DisplayName,
		record.PlayerO.ID, record.PlayerO.DisplayName,
		record.WinnerID, record.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("can't save game record: %w", err)
	}

	return nil
}

// List - most recent games first.
func (that *gameRecordRepository) List(ctx context.Context, limit int) ([]*entity.GameRecord, error) {
	query := `SELECT player_x_id, player_x_name, player_o_id, player_o_name, winner_id, ended_at
		FROM game_history ORDER BY ended_at DESC, id DESC LIMIT ?`

	rows, err := that.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("can't list game records: %w", err)
	}
	defer rows.Close()

	var records []*entity.GameRecord
	for rows.Next() {
		var record entity.GameRecord
		err = rows.Scan(
			&record.PlayerX.ID, &record.PlayerX.DisplayName,
			&record.PlayerO.ID, &record.PlayerO.DisplayName,
			&record.WinnerID, &record.EndedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("can't scan game record: %w", err)
		}

		records = append(records, &record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't read game records: %w", err)
	}

	return records, nil
}
